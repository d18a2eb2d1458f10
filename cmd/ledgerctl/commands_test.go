package main

import (
	"strings"
	"testing"
)

func TestFindCommand(t *testing.T) {
	cmd, err := findCommand("GetBestTip")
	if err != nil {
		t.Fatalf("findCommand: %s", err)
	}
	if cmd.name != "getbesttip" {
		t.Fatalf("unexpected command %s", cmd.name)
	}

	_, err = findCommand("getpeerinfo")
	if err == nil {
		t.Fatalf("findCommand: expected an error for an unknown command")
	}
}

func TestCheckArgs(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		isValid bool
	}{
		{"no parameters", "getbesttip", nil, true},
		{"unexpected parameter", "getbesttip", []string{"x"}, false},
		{"optional parameter", "getblocklocator", []string{"00"}, true},
		{"missing parameter", "submitblock", nil, false},
		{"repeating parameter", "findcommonancestor", []string{"a", "b", "c"}, true},
		{"missing repeating parameter", "findcommonancestor", nil, false},
	}

	for _, test := range tests {
		cmd, err := findCommand(test.command)
		if err != nil {
			t.Fatalf("%s: findCommand: %s", test.name, err)
		}
		err = cmd.checkArgs(test.args)
		if (err == nil) != test.isValid {
			t.Errorf("%s: checkArgs: got %v, want valid=%t", test.name, err, test.isValid)
		}
	}
}

func TestParseHashes(t *testing.T) {
	const genesisHash = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	hashes, err := parseHashes([]string{genesisHash})
	if err != nil {
		t.Fatalf("parseHashes: %s", err)
	}
	if hashes[0].String() != genesisHash {
		t.Fatalf("unexpected hash %s", hashes[0])
	}

	_, err = parseHashes([]string{"not a hash"})
	if err == nil {
		t.Fatalf("parseHashes: expected an error for a malformed hash")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"--regtest", "-s", "127.0.0.1", "getbesttip"})
	if err != nil {
		t.Fatalf("parseConfig: %s", err)
	}
	if cfg.NetParams().Name != "regtest" || cfg.RPCServer != "127.0.0.1" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if strings.Join(cfg.CommandAndParameters, " ") != "getbesttip" {
		t.Fatalf("unexpected command %v", cfg.CommandAndParameters)
	}

	_, err = parseConfig([]string{"--regtest"})
	if err == nil {
		t.Fatalf("parseConfig: expected an error without a command")
	}
}
