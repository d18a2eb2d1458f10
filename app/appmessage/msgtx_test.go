// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package appmessage

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

func multiTxForTest() *MsgTx {
	prevHash := chainhash.DoubleHashH([]byte("previous"))
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(NewTxIn(NewOutpoint(&prevHash, 1), []byte{0x51, 0x52}))
	tx.AddTxIn(&TxIn{
		PreviousOutpoint: Outpoint{TxID: prevHash, Index: 3},
		SignatureScript:  nil,
		Sequence:         7,
	})
	tx.AddTxOut(NewTxOut(5000000000, []byte{0x76, 0xa9}))
	tx.AddTxOut(NewTxOut(1, []byte{0x51}))
	tx.LockTime = 500
	return tx
}

// TestTx tests the MsgTx API.
func TestTx(t *testing.T) {
	tx := multiTxForTest()
	if tx.IsCoinBase() {
		t.Fatalf("IsCoinBase: two-input transaction reported as coinbase")
	}

	coinbase := NewMsgTx(TxVersion)
	coinbase.AddTxIn(NewTxIn(NewOutpoint(&chainhash.ZeroHash, MaxPrevOutIndex), []byte{0x01, 0x02}))
	if !coinbase.IsCoinBase() {
		t.Fatalf("IsCoinBase: null-outpoint transaction not reported as coinbase")
	}

	prevOut := tx.TxIn[0].PreviousOutpoint
	wantStr := prevOut.TxID.String() + ":1"
	if prevOut.String() != wantStr {
		t.Fatalf("Outpoint.String: got %s, want %s", prevOut, wantStr)
	}

	copied := tx.Copy()
	if !reflect.DeepEqual(copied, tx) {
		t.Fatalf("Copy: copy differs\n got: %s want: %s", spew.Sdump(copied), spew.Sdump(tx))
	}
	copied.TxIn[0].SignatureScript[0] = 0x00
	if tx.TxIn[0].SignatureScript[0] == 0x00 {
		t.Fatalf("Copy: scripts are shared with the original")
	}
	if *copied.TxHash() == *tx.TxHash() {
		t.Fatalf("TxHash: different transactions hash equally")
	}
}

// TestTxSerialize tests MsgTx serialize and deserialize.
func TestTxSerialize(t *testing.T) {
	tx := multiTxForTest()

	serialized, err := tx.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(serialized) != tx.SerializeSize() {
		t.Fatalf("SerializeSize: got %d, want %d", tx.SerializeSize(), len(serialized))
	}

	decoded, err := NewMsgTxFromBytes(serialized)
	if err != nil {
		t.Fatalf("NewMsgTxFromBytes: %v", err)
	}
	// A nil script decodes as an empty one.
	tx.TxIn[1].SignatureScript = []byte{}
	if !reflect.DeepEqual(decoded, tx) {
		t.Fatalf("NewMsgTxFromBytes\n got: %s want: %s", spew.Sdump(decoded), spew.Sdump(tx))
	}
	if *decoded.TxHash() != chainhash.DoubleHashH(serialized) {
		t.Fatalf("TxHash is not the double hash of the serialization")
	}

	_, err = NewMsgTxFromBytes(append(serialized, 0xff, 0xff))
	if !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("NewMsgTxFromBytes: expected ErrTrailingBytes, got %v", err)
	}

	for i := 0; i < len(serialized); i++ {
		_, err := NewMsgTxFromBytes(serialized[:i])
		if err == nil {
			t.Fatalf("NewMsgTxFromBytes: prefix of length %d decoded without error", i)
		}
	}
}

// TestTxOverflowErrors performs tests to ensure deserializing transactions
// which are intentionally crafted to use large values for the variable number
// of inputs and outputs are handled properly.
func TestTxOverflowErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{
			"too many inputs",
			[]byte{
				0x01, 0x00, 0x00, 0x00, // Version
				0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // Varint for number of input transactions
			},
		},
		{
			"too many outputs",
			[]byte{
				0x01, 0x00, 0x00, 0x00, // Version
				0x00,                                                 // Varint for number of input transactions
				0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // Varint for number of output transactions
			},
		},
		{
			"oversized signature script",
			func() []byte {
				var buf bytes.Buffer
				buf.Write([]byte{0x01, 0x00, 0x00, 0x00, 0x01})
				buf.Write(make([]byte, chainhash.HashSize+4))
				_ = WriteVarInt(&buf, MaxScriptSize+1)
				return buf.Bytes()
			}(),
		},
	}

	for _, test := range tests {
		var tx MsgTx
		err := tx.Deserialize(bytes.NewReader(test.buf))
		var msgErr *MessageError
		if !errors.As(err, &msgErr) {
			t.Errorf("%s: expected MessageError, got %v", test.name, err)
		}
	}
}
