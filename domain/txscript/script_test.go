// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// hexToBytes converts the passed hex string into bytes and will panic if there
// is an error. This is only provided for the hard-coded constants so errors in
// the source code can be detected. It will only (and must only) be called with
// hard-coded values.
func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	return b
}

const p2pkhScriptHex = "76a914ad06dd6ddee55cbca9a9e3713bd7587509a3056488ac"

// TestParseScript ensures scripts tokenize and fail on truncated pushes.
func TestParseScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   []byte
		numOps   int
		checkErr bool
	}{
		{name: "empty", script: nil, numOps: 0},
		{name: "pay-to-pubkey-hash", script: hexToBytes(p2pkhScriptHex), numOps: 5},
		{name: "pushdata1", script: append([]byte{OP_PUSHDATA1, 0x02}, 0x01, 0x02), numOps: 1},
		{name: "pushdata2", script: append([]byte{OP_PUSHDATA2, 0x01, 0x00}, 0x01), numOps: 1},
		{name: "pushdata4", script: append([]byte{OP_PUSHDATA4, 0x01, 0x00, 0x00, 0x00}, 0x01), numOps: 1},
		{name: "truncated data push", script: []byte{OP_DATA_20, 0x01, 0x02}, numOps: 0, checkErr: true},
		{name: "truncated pushdata2 prefix", script: []byte{OP_TRUE, OP_PUSHDATA2, 0x01}, numOps: 1, checkErr: true},
		{name: "oversized pushdata4", script: []byte{OP_PUSHDATA4, 0xff, 0xff, 0xff, 0xff}, numOps: 0, checkErr: true},
	}

	for _, test := range tests {
		pops, err := parseScript(test.script)
		if test.checkErr {
			if !IsErrorCode(err, ErrMalformedPush) {
				t.Errorf("%s: expected ErrMalformedPush, got %v", test.name, err)
			}
		} else if err != nil {
			t.Errorf("%s: unexpected error: %s", test.name, err)
			continue
		}
		if len(pops) != test.numOps {
			t.Errorf("%s: expected %d opcodes, got %d", test.name, test.numOps, len(pops))
			continue
		}
		if !test.checkErr && !bytes.Equal(unparseScript(pops), test.script) {
			t.Errorf("%s: unparsed script %x does not match %x", test.name,
				unparseScript(pops), test.script)
		}
	}
}

// TestIsPushOnlyScript ensures the IsPushOnlyScript function returns the
// expected results.
func TestIsPushOnlyScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   []byte
		expected bool
	}{
		{"empty", nil, true},
		{"small integers", []byte{OP_0, OP_1, OP_16, OP_1NEGATE}, true},
		{"data pushes", []byte{OP_DATA_1, 0x01, OP_PUSHDATA1, 0x01, 0x02}, true},
		{"pay-to-pubkey-hash", hexToBytes(p2pkhScriptHex), false},
		{"malformed", []byte{OP_DATA_32, 0x01}, false},
	}

	for _, test := range tests {
		if IsPushOnlyScript(test.script) != test.expected {
			t.Errorf("%s: IsPushOnlyScript returned %t, want %t", test.name,
				!test.expected, test.expected)
		}
	}
}

// TestGetSigOpCount ensures signature operations are counted, including the
// part of a script that parsed before an error.
func TestGetSigOpCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   []byte
		expected int
	}{
		{"pay-to-pubkey-hash", hexToBytes(p2pkhScriptHex), 1},
		{"checksigverify and checksig", []byte{OP_CHECKSIGVERIFY, OP_CHECKSIG}, 2},
		{"multisig", []byte{OP_CHECKMULTISIG}, MaxPubKeysPerMultiSig},
		{"truncated after checksig", []byte{OP_CHECKSIG, OP_DATA_20, 0x01}, 1},
		{"no sigops", []byte{OP_TRUE}, 0},
	}

	for _, test := range tests {
		count := GetSigOpCount(test.script)
		if count != test.expected {
			t.Errorf("%s: got %d sigops, want %d", test.name, count, test.expected)
		}
	}
}

func TestDisasmString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   []byte
		expected string
		isErr    bool
	}{
		{
			name:     "pay-to-pubkey-hash",
			script:   hexToBytes(p2pkhScriptHex),
			expected: "OP_DUP OP_HASH160 ad06dd6ddee55cbca9a9e3713bd7587509a30564 OP_EQUALVERIFY OP_CHECKSIG",
		},
		{
			name:     "small integers",
			script:   []byte{OP_0, OP_1NEGATE, OP_1, OP_16},
			expected: "0 -1 1 16",
		},
		{
			name:     "unknown opcode",
			script:   []byte{0xba},
			expected: "OP_UNKNOWN186",
		},
		{
			name:     "malformed",
			script:   []byte{OP_RETURN, OP_DATA_32, 0x01},
			expected: "OP_RETURN [error]",
			isErr:    true,
		},
	}

	for _, test := range tests {
		disasm, err := DisasmString(test.script)
		if (err != nil) != test.isErr {
			t.Errorf("%s: unexpected error state: %v", test.name, err)
			continue
		}
		if disasm != test.expected {
			t.Errorf("%s: got %q, want %q", test.name, disasm, test.expected)
		}
	}
}
