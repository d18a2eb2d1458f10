// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"bytes"
	"encoding/hex"
	"testing"
)

const mainNetGenesisHashStr = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"

// mainNetGenesisHashInternal is mainNetGenesisHashStr in internal byte order.
const mainNetGenesisHashInternal = "6fe28c0ab6f1b372c1a6a246ae63f74f931e8365e15a089c68d6190000000000"

// TestHash tests the Hash API.
func TestHash(t *testing.T) {
	hash, err := NewHashFromStr(mainNetGenesisHashStr)
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}

	want, _ := hex.DecodeString(mainNetGenesisHashInternal)
	if !bytes.Equal(hash[:], want) {
		t.Errorf("NewHashFromStr: got %x, want %x", hash[:], want)
	}
	if hash.String() != mainNetGenesisHashStr {
		t.Errorf("String: got %s, want %s", hash, mainNetGenesisHashStr)
	}

	fromBytes, err := NewHash(want)
	if err != nil {
		t.Fatalf("NewHash: unexpected error %v", err)
	}
	if !fromBytes.IsEqual(hash) {
		t.Errorf("IsEqual: hashes built from the same bytes differ")
	}

	_, err = NewHash(want[:HashSize-1])
	if err == nil {
		t.Errorf("NewHash: expected an error for a short slice")
	}

	var nilHash *Hash
	if !nilHash.IsEqual(nil) {
		t.Errorf("IsEqual: two nil hashes should be equal")
	}
	if hash.IsEqual(nil) {
		t.Errorf("IsEqual: non-nil hash should differ from nil")
	}

	clone := hash.CloneBytes()
	clone[0] ^= 0xff
	if hash[0] == clone[0] {
		t.Errorf("CloneBytes: returned slice aliases the hash")
	}
}

// TestNewHashFromStr executes tests against the NewHashFromStr function.
func TestNewHashFromStr(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty string", in: "", want: "0000000000000000000000000000000000000000000000000000000000000000"},
		{name: "single digit", in: "1", want: "0000000000000000000000000000000000000000000000000000000000000001"},
		{name: "genesis", in: mainNetGenesisHashStr, want: mainNetGenesisHashStr},
		{name: "too long", in: "01234567890123456789012345678901234567890123456789012345678912345", wantErr: true},
		{name: "invalid hex", in: "abcdefg", wantErr: true},
	}

	for _, test := range tests {
		result, err := NewHashFromStr(test.in)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: expected an error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if result.String() != test.want {
			t.Errorf("%s: got %s, want %s", test.name, result, test.want)
		}
	}
}

func TestLess(t *testing.T) {
	small, _ := NewHashFromStr("01")
	big, _ := NewHashFromStr("0100")
	if !Less(small, big) {
		t.Errorf("Less: %s should be less than %s", small, big)
	}
	if Less(big, small) || Less(small, small) {
		t.Errorf("Less: wrong ordering")
	}
}

func TestDoubleHashWriter(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	writer := NewDoubleHashWriter()
	_, _ = writer.Write(data[:10])
	_, _ = writer.Write(data[10:])
	if writer.Finalize() != DoubleHashH(data) {
		t.Errorf("DoubleHashWriter result differs from DoubleHashH")
	}
	doubleHash := DoubleHashH(data)
	if !bytes.Equal(DoubleHashB(data), doubleHash.CloneBytes()) {
		t.Errorf("DoubleHashB and DoubleHashH disagree")
	}
	if HashH(data) == DoubleHashH(data) {
		t.Errorf("single and double hashes should differ")
	}
}
