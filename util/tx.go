// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"bytes"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// TxIndexUnknown is the value returned for a transaction index that is unknown.
// This is typically because the transaction has not been inserted into a block
// yet.
const TxIndexUnknown = -1

// Tx defines a transaction that provides easier and more efficient
// manipulation of raw transactions. It also memoizes the hash for the
// transaction on its first access so subsequent accesses don't have to repeat
// the relatively expensive hashing operations.
type Tx struct {
	msgTx   *appmessage.MsgTx // Underlying MsgTx
	txID    *chainhash.Hash   // Cached transaction ID
	txIndex int               // Position within a block or TxIndexUnknown
}

// MsgTx returns the underlying appmessage.MsgTx for the transaction.
func (t *Tx) MsgTx() *appmessage.MsgTx {
	// Return the cached transaction.
	return t.msgTx
}

// ID returns the id of the transaction. This is equivalent to calling TxID
// on the underlying appmessage.MsgTx, however it caches the result so
// subsequent calls are more efficient.
func (t *Tx) ID() *chainhash.Hash {
	// Return the cached hash if it has already been generated.
	if t.txID != nil {
		return t.txID
	}

	// Cache the hash and return it.
	t.txID = t.msgTx.TxID()
	return t.txID
}

// Hash is the same as ID. Blocks commit to transactions by this value.
func (t *Tx) Hash() *chainhash.Hash {
	return t.ID()
}

// Index returns the saved index of the transaction within a block. This value
// will be TxIndexUnknown if it hasn't already explicitly been set.
func (t *Tx) Index() int {
	return t.txIndex
}

// SetIndex sets the index of the transaction in within a block.
func (t *Tx) SetIndex(index int) {
	t.txIndex = index
}

// IsCoinBase determines whether or not the transaction is a coinbase.
func (t *Tx) IsCoinBase() bool {
	return t.msgTx.IsCoinBase()
}

// NewTx returns a new instance of a transaction given an underlying
// appmessage.MsgTx. See Tx.
func NewTx(msgTx *appmessage.MsgTx) *Tx {
	return &Tx{
		msgTx:   msgTx,
		txIndex: TxIndexUnknown,
	}
}

// NewTxFromBytes returns a new instance of a transaction given the
// serialized bytes. The bytes must hold exactly one transaction. See Tx.
func NewTxFromBytes(serializedTx []byte) (*Tx, error) {
	msgTx, err := appmessage.NewMsgTxFromBytes(serializedTx)
	if err != nil {
		return nil, err
	}
	return NewTx(msgTx), nil
}

// Bytes returns the serialized transaction.
func (t *Tx) Bytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, t.msgTx.SerializeSize()))
	err := t.msgTx.Serialize(buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
