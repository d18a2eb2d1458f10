// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// TestGenesisBlocks ensures the genesis block of every default network hashes
// to the hash stored in its parameters, commits to its coinbase and satisfies
// its own proof of work.
func TestGenesisBlocks(t *testing.T) {
	tests := []struct {
		params   *Params
		wantHash string
	}{
		{&MainNetParams, "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"},
		{&TestNetParams, "000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"},
		{&RegressionNetParams, "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"},
		{&SimNetParams, "683e86bd5c6d110d91b94b97137ba6bfe02dbbdb8e3dff722a669b5d69d77af6"},
	}

	for _, test := range tests {
		block := test.params.GenesisBlock
		hash := block.BlockHash()
		if hash.String() != test.wantHash {
			t.Errorf("%s: genesis hash got %s, want %s", test.params.Name, hash, test.wantHash)
			continue
		}
		if *hash != *test.params.GenesisHash {
			t.Errorf("%s: GenesisHash %s does not match the block", test.params.Name,
				test.params.GenesisHash)
		}
		if block.Header.MerkleRoot != *block.Transactions[0].TxHash() {
			t.Errorf("%s: merkle root does not commit to the coinbase", test.params.Name)
		}
		if block.Header.Bits != test.params.PowLimitBits {
			t.Errorf("%s: genesis bits %08x differ from the pow limit bits", test.params.Name,
				block.Header.Bits)
		}
		if util.CompactToBig(test.params.PowLimitBits).Cmp(test.params.PowLimit) > 0 {
			t.Errorf("%s: PowLimitBits exceed PowLimit", test.params.Name)
		}
		if util.HashToBig(hash).Cmp(util.CompactToBig(block.Header.Bits)) > 0 {
			t.Errorf("%s: genesis hash is above its target", test.params.Name)
		}

		var buf bytes.Buffer
		err := block.Serialize(&buf)
		if err != nil {
			t.Errorf("%s: Serialize: %v", test.params.Name, err)
			continue
		}
		if buf.Len() != block.SerializeSize() {
			t.Errorf("%s: SerializeSize mismatch:\n%s", test.params.Name, spew.Sdump(block))
		}
	}
}

func TestRegister(t *testing.T) {
	err := Register(&MainNetParams)
	if !errors.Is(err, ErrDuplicateNet) {
		t.Fatalf("Register: expected ErrDuplicateNet, got %v", err)
	}

	mockNetParams := Params{Name: "mocknet", Net: 1<<32 - 1}
	err = Register(&mockNetParams)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer delete(registeredNets, mockNetParams.Net)

	params, err := ParamsByName("mocknet")
	if err != nil || params != &mockNetParams {
		t.Fatalf("ParamsByName: got %v, %v", params, err)
	}

	_, err = ParamsByName("nosuchnet")
	if !errors.Is(err, ErrUnknownNet) {
		t.Fatalf("ParamsByName: expected ErrUnknownNet, got %v", err)
	}
}

func TestNormalizeRPCServerAddress(t *testing.T) {
	addr, err := RegressionNetParams.NormalizeRPCServerAddress("127.0.0.1")
	if err != nil {
		t.Fatalf("NormalizeRPCServerAddress: %v", err)
	}
	if addr != "127.0.0.1:18334" {
		t.Fatalf("NormalizeRPCServerAddress: got %s", addr)
	}
	addr, err = RegressionNetParams.NormalizeRPCServerAddress("127.0.0.1:9000")
	if err != nil || addr != "127.0.0.1:9000" {
		t.Fatalf("NormalizeRPCServerAddress: got %s, %v", addr, err)
	}
}
