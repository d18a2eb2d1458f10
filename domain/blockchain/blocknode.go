// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// nodeID addresses a blockNode inside the blockIndex arena.
type nodeID int32

// noNode is the nodeID used where no node is referenced: the parent of
// the genesis block, and the main chain successor of the best tip or of
// a node off the main chain.
const noNode nodeID = -1

// blockStatus is a bit field representing the validation state of the block.
type blockStatus byte

const (
	// statusDataStored indicates that the block's payload is stored on disk.
	statusDataStored blockStatus = 1 << iota

	// statusValid indicates that the block has been fully validated.
	statusValid

	// statusValidateFailed indicates that the block has failed validation.
	statusValidateFailed

	// statusInvalidAncestor indicates that one of the block's ancestors has
	// has failed validation, thus the block is also invalid.
	statusInvalidAncestor

	// statusNone indicates that the block has no validation state flags set.
	//
	// NOTE: This must be defined last in order to avoid influencing iota.
	statusNone blockStatus = 0
)

// HaveData returns whether the full block data is stored in the database.
func (status blockStatus) HaveData() bool {
	return status&statusDataStored != 0
}

// KnownValid returns whether the block is known to be valid. This will return
// false for a valid block that has not been fully validated yet.
func (status blockStatus) KnownValid() bool {
	return status&statusValid != 0
}

// KnownInvalid returns whether the block is known to be invalid. This may be
// because the block itself failed validation or any of its ancestors is
// invalid. This will return false for invalid blocks that have not been proven
// invalid yet.
func (status blockStatus) KnownInvalid() bool {
	return status&(statusValidateFailed|statusInvalidAncestor) != 0
}

// blockNode represents a block within the block chain and is primarily used
// to aid in selecting the best chain to be the main chain. Nodes reference
// each other by nodeID only, so the arena owns every node.
type blockNode struct {
	// workSum is the total amount of work in the chain up to and including
	// this node.
	workSum *big.Int

	// location is the flat-store handle of the block body.
	location database.StoreLocation

	// hash is the double sha 256 of the block header.
	hash chainhash.Hash

	// Some fields from block headers to aid in best chain selection and
	// reconstructing headers from memory.
	prevHash   chainhash.Hash
	merkleRoot chainhash.Hash
	timestamp  int64
	height     uint64
	version    int32
	bits       uint32
	nonce      uint32

	id                 nodeID
	parent             nodeID
	mainChainSuccessor nodeID

	// status is a bitfield representing the validation state of the block.
	status blockStatus
}

// newBlockNode returns a new block node for the given block header. It is
// not yet part of any arena.
func newBlockNode(header *appmessage.BlockHeader, location database.StoreLocation) *blockNode {
	return &blockNode{
		hash:               *header.BlockHash(),
		prevHash:           header.PrevBlock,
		merkleRoot:         header.MerkleRoot,
		timestamp:          header.Timestamp.Unix(),
		version:            header.Version,
		bits:               header.Bits,
		nonce:              header.Nonce,
		location:           location,
		id:                 noNode,
		parent:             noNode,
		mainChainSuccessor: noNode,
		workSum:            util.CalcWork(header.Bits),
	}
}

// Header constructs a block header from the node and returns it.
func (node *blockNode) Header() *appmessage.BlockHeader {
	return &appmessage.BlockHeader{
		Version:    node.version,
		PrevBlock:  node.prevHash,
		MerkleRoot: node.merkleRoot,
		Timestamp:  time.Unix(node.timestamp, 0),
		Bits:       node.bits,
		Nonce:      node.nonce,
	}
}

// isGenesis returns whether the node has no parent.
func (node *blockNode) isGenesis() bool {
	return node.parent == noNode
}

func (node *blockNode) String() string {
	return node.hash.String()
}
