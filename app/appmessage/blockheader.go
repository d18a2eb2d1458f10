// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package appmessage

import (
	"bytes"
	"io"
	"time"

	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// BlockVersion is the current latest supported block version.
const BlockVersion = 1

// BlockHeaderLen is the number of bytes of a serialized block header.
// Version 4 bytes + PrevBlock 32 bytes + MerkleRoot 32 bytes + Timestamp
// 4 bytes + Bits 4 bytes + Nonce 4 bytes.
const BlockHeaderLen = 80

// BlockHeader defines information about a block and is used in the block
// (MsgBlock) and headers messages.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version int32

	// Hash of the previous block header in the chain.
	PrevBlock chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash

	// Time the block was created. This is, unfortunately, encoded as a
	// uint32 on the wire and therefore is limited to 2106.
	Timestamp time.Time

	// Difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32
}

// BlockHash computes the block identifier hash for the given block header.
// Only the header is hashed.
func (h *BlockHeader) BlockHash() *chainhash.Hash {
	writer := chainhash.NewDoubleHashWriter()
	err := writeBlockHeader(writer, h)
	if err != nil {
		// Writing to a hash writer never fails.
		panic(err)
	}
	hash := writer.Finalize()
	return &hash
}

// IsGenesis returns true iff this block is a genesis block.
func (h *BlockHeader) IsGenesis() bool {
	return h.PrevBlock == chainhash.ZeroHash
}

// Deserialize decodes a block header from r into the receiver.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

// Serialize encodes the block header to w.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// Bytes returns the serialized header.
func (h *BlockHeader) Bytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderLen))
	err := h.Serialize(buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewBlockHeader returns a new BlockHeader using the provided version, previous
// block hash, merkle root hash, difficulty bits, and nonce used to generate the
// block with defaults for the remaining fields.
func NewBlockHeader(version int32, prevHash, merkleRootHash *chainhash.Hash,
	bits uint32, nonce uint32) *BlockHeader {

	// Limit the timestamp to one second precision since the protocol
	// doesn't support better.
	return &BlockHeader{
		Version:    version,
		PrevBlock:  *prevHash,
		MerkleRoot: *merkleRootHash,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}

// readBlockHeader reads a block header from r.
func readBlockHeader(r io.Reader, bh *BlockHeader) error {
	return ReadElements(r, &bh.Version, &bh.PrevBlock, &bh.MerkleRoot,
		(*uint32Time)(&bh.Timestamp), &bh.Bits, &bh.Nonce)
}

// writeBlockHeader writes a block header to w.
func writeBlockHeader(w io.Writer, bh *BlockHeader) error {
	return WriteElements(w, bh.Version, &bh.PrevBlock, &bh.MerkleRoot,
		uint32Time(bh.Timestamp), bh.Bits, bh.Nonce)
}
