// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package appmessage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes allowed
// per message.
const MaxBlockLocatorsPerMsg = 500

// MsgBlockLocator is a sparse list of main-chain block hashes ordered from the
// tip backwards: dense near the tip, then exponentially spaced, always ending
// with the genesis block. It is used to find the most recent block two nodes
// have in common.
type MsgBlockLocator struct {
	BlockLocatorHashes []*chainhash.Hash
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgBlockLocator) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes) >= MaxBlockLocatorsPerMsg {
		str := fmt.Sprintf("too many block locator hashes for message [max %d]",
			MaxBlockLocatorsPerMsg)
		return messageError("MsgBlockLocator.AddBlockLocatorHash", str)
	}

	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

// Deserialize decodes a locator from r into the receiver.
func (msg *MsgBlockLocator) Deserialize(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	// Limit to max block locator hashes per message.
	if count > MaxBlockLocatorsPerMsg {
		str := fmt.Sprintf("too many block locator hashes for message "+
			"[count %d, max %d]", count, MaxBlockLocatorsPerMsg)
		return messageError("MsgBlockLocator.Deserialize", str)
	}

	// Create a contiguous slice of hashes to deserialize into in order to
	// reduce the number of allocations.
	locatorHashes := make([]chainhash.Hash, count)
	msg.BlockLocatorHashes = make([]*chainhash.Hash, 0, count)
	for i := uint64(0); i < count; i++ {
		hash := &locatorHashes[i]
		err := ReadElement(r, hash)
		if err != nil {
			return err
		}
		msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	}
	return nil
}

// Serialize encodes the locator to w.
func (msg *MsgBlockLocator) Serialize(w io.Writer) error {
	count := len(msg.BlockLocatorHashes)
	if count > MaxBlockLocatorsPerMsg {
		str := fmt.Sprintf("too many block locator hashes for message "+
			"[count %d, max %d]", count, MaxBlockLocatorsPerMsg)
		return messageError("MsgBlockLocator.Serialize", str)
	}

	err := WriteVarInt(w, uint64(count))
	if err != nil {
		return err
	}

	for _, hash := range msg.BlockLocatorHashes {
		err := WriteElement(w, hash)
		if err != nil {
			return err
		}
	}

	return nil
}

// Bytes returns the serialized locator.
func (msg *MsgBlockLocator) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := msg.Serialize(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewMsgBlockLocator returns a new block locator with the given hashes.
func NewMsgBlockLocator(hashes []*chainhash.Hash) *MsgBlockLocator {
	return &MsgBlockLocator{
		BlockLocatorHashes: hashes,
	}
}

// NewMsgBlockLocatorFromBytes decodes a locator that must occupy exactly the
// given bytes.
func NewMsgBlockLocatorFromBytes(serialized []byte) (*MsgBlockLocator, error) {
	r := bytes.NewReader(serialized)
	msg := &MsgBlockLocator{}
	err := msg.Deserialize(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrTrailingBytes, "locator followed by %d bytes", r.Len())
	}
	return msg, nil
}
