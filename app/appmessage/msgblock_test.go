// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package appmessage

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// genesisCoinbaseHex is the serialized coinbase transaction of the main
// network genesis block.
const genesisCoinbaseHex = "01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff4d04ffff001d0104455468652054696d65732030332f4a616e2f32303039204368616e63656c6c6f72206f6e206272696e6b206f66207365636f6e64206261696c6f757420666f722062616e6b73ffffffff0100f2052a01000000434104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac00000000"

func genesisBlockForTest(t *testing.T) *MsgBlock {
	serializedCoinbase, err := hex.DecodeString(genesisCoinbaseHex)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	coinbase, err := NewMsgTxFromBytes(serializedCoinbase)
	if err != nil {
		t.Fatalf("NewMsgTxFromBytes: %v", err)
	}
	return &MsgBlock{
		Header: BlockHeader{
			Version:    1,
			PrevBlock:  chainhash.Hash{},
			MerkleRoot: *coinbase.TxHash(),
			Timestamp:  time.Unix(1231006505, 0),
			Bits:       0x1d00ffff,
			Nonce:      2083236893,
		},
		Transactions: []*MsgTx{coinbase},
	}
}

// TestGenesisBlock checks the codec against a known block and its hash.
func TestGenesisBlock(t *testing.T) {
	block := genesisBlockForTest(t)

	const wantMerkleRoot = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	if block.Transactions[0].TxHash().String() != wantMerkleRoot {
		t.Fatalf("TxHash: got %s, want %s", block.Transactions[0].TxHash(), wantMerkleRoot)
	}

	const wantHash = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	if block.BlockHash().String() != wantHash {
		t.Fatalf("BlockHash: got %s, want %s", block.BlockHash(), wantHash)
	}
	if *block.ContentHash() == *block.BlockHash() {
		t.Fatalf("ContentHash must cover the transactions")
	}
	if !block.Header.IsGenesis() {
		t.Fatalf("IsGenesis: expected true")
	}
	if !block.Transactions[0].IsCoinBase() {
		t.Fatalf("IsCoinBase: expected true")
	}

	serialized, err := block.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(serialized) != block.SerializeSize() {
		t.Fatalf("SerializeSize: got %d, want %d", block.SerializeSize(), len(serialized))
	}

	decoded, err := NewMsgBlockFromBytes(serialized)
	if err != nil {
		t.Fatalf("NewMsgBlockFromBytes: %v", err)
	}
	if !reflect.DeepEqual(decoded, block) {
		t.Fatalf("NewMsgBlockFromBytes\n got: %s want: %s",
			spew.Sdump(decoded), spew.Sdump(block))
	}

	txLocs, err := block.TxLoc()
	if err != nil {
		t.Fatalf("TxLoc: %v", err)
	}
	wantTxLocs := []TxLoc{{TxStart: BlockHeaderLen + 1, TxLen: 204}}
	if !reflect.DeepEqual(txLocs, wantTxLocs) {
		t.Fatalf("TxLoc: got %v, want %v", txLocs, wantTxLocs)
	}
	txBytes := serialized[txLocs[0].TxStart : txLocs[0].TxStart+txLocs[0].TxLen]
	if hex.EncodeToString(txBytes) != genesisCoinbaseHex {
		t.Fatalf("TxLoc does not point at the coinbase bytes")
	}
}

// TestBlockTrailingBytes ensures exact decoding rejects leftover input.
func TestBlockTrailingBytes(t *testing.T) {
	block := genesisBlockForTest(t)
	serialized, err := block.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	_, err = NewMsgBlockFromBytes(append(serialized, 0x00))
	if !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("NewMsgBlockFromBytes: expected ErrTrailingBytes, got %v", err)
	}
}

// TestBlockTruncated decodes every strict prefix of a block and expects an
// error, never a panic.
func TestBlockTruncated(t *testing.T) {
	block := genesisBlockForTest(t)
	serialized, err := block.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	for i := 0; i < len(serialized); i++ {
		_, err := NewMsgBlockFromBytes(serialized[:i])
		if err == nil {
			t.Fatalf("NewMsgBlockFromBytes: prefix of length %d decoded without error", i)
		}
	}
}

// TestBlockOverflowErrors ensures absurd transaction counts are rejected
// before allocation.
func TestBlockOverflowErrors(t *testing.T) {
	header := genesisBlockForTest(t).Header
	var buf bytes.Buffer
	err := header.Serialize(&buf)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	_ = WriteVarInt(&buf, MaxTxPerBlock+1)

	var block MsgBlock
	err = block.Deserialize(&buf)
	var msgErr *MessageError
	if !errors.As(err, &msgErr) {
		t.Fatalf("Deserialize: expected MessageError, got %v", err)
	}
}

func TestBlockHeaderEncoding(t *testing.T) {
	header := genesisBlockForTest(t).Header
	serialized, err := header.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(serialized) != BlockHeaderLen {
		t.Fatalf("Bytes: got %d bytes, want %d", len(serialized), BlockHeaderLen)
	}

	var decoded BlockHeader
	err = decoded.Deserialize(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if *decoded.BlockHash() != *header.BlockHash() {
		t.Fatalf("decoded header hashes to %s, want %s", decoded.BlockHash(), header.BlockHash())
	}
}
