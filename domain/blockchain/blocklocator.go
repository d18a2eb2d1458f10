// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// BlockLocator is used to help locate a specific block. The algorithm for
// building the block locator is to add the hashes in reverse order until
// the genesis block is reached. In order to keep the list of locator hashes
// to a reasonable number of entries, first the most recent previous 10
// block hashes are added, then the step is doubled each loop iteration to
// exponentially decrease the number of hashes as a function of the
// distance from the block being located.
//
// For example, assume a block chain with a side chain as depicted below:
//
//	genesis -> 1 -> 2 -> ... -> 15 -> 16  -> 17  -> 18
//	                              \-> 16a -> 17a
//
// The block locator for block 17a would be the hashes of blocks:
// [17a 16a 15 14 13 12 11 10 9 8 7 6 4 genesis]
type BlockLocator []*chainhash.Hash

// BlockLocator returns a block locator for the passed block hash. See
// BlockLocator for details on the algorithm used to create a block locator.
// A nil hash locates the current best tip.
//
// This function is safe for concurrent access.
func (bc *BlockChain) BlockLocator(hash *chainhash.Hash) (BlockLocator, error) {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	if err := bc.errIfHalted(); err != nil {
		return nil, err
	}
	id := bc.bestTip
	if hash != nil {
		var exists bool
		id, exists = bc.index.lookupNode(hash)
		if !exists {
			return nil, errors.Errorf("block %s is unknown", hash)
		}
	}
	return bc.blockLocator(id), nil
}

// blockLocator returns the block locator of the passed node. See the
// BlockLocator type comments for more details.
//
// This function MUST be called with the chain state lock held (for reads).
func (bc *BlockChain) blockLocator(id nodeID) BlockLocator {
	node := bc.index.node(id)

	// Calculate the max number of entries that will ultimately be in the
	// block locator. See the description of the algorithm for how these
	// numbers are derived.
	var maxEntries uint8
	if node.height <= 12 {
		maxEntries = uint8(node.height) + 1
	} else {
		// Requested hash itself + previous 10 entries + genesis block.
		// Then floor(log2(height-10)) entries for the skip portion.
		adjustedHeight := node.height - 10
		maxEntries = 12 + fastLog2Floor(adjustedHeight)
	}
	locator := make(BlockLocator, 0, maxEntries)

	step := uint64(1)
	for {
		locator = append(locator, &node.hash)

		// Nothing more to add once the genesis block has been added.
		if node.height == 0 {
			break
		}

		// Calculate height of previous node to include ensuring the
		// final node is the genesis block.
		var height uint64
		if node.height > step {
			height = node.height - step
		}
		node = bc.index.node(bc.index.ancestor(node.id, height))

		// Once 11 entries have been included, start doubling the
		// distance between included hashes.
		if len(locator) > 10 {
			step *= 2
		}
	}

	return locator
}

// FindCommonAncestor returns the most recent locator hash that is part of
// the main chain, falling back to the genesis hash when none of them are.
// Locator hashes are expected most recent first.
//
// This function is safe for concurrent access.
func (bc *BlockChain) FindCommonAncestor(locator BlockLocator) (*chainhash.Hash, error) {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	if err := bc.errIfHalted(); err != nil {
		return nil, err
	}
	return &bc.index.node(bc.commonAncestor(locator)).hash, nil
}

// commonAncestor is FindCommonAncestor on node ids.
//
// This function MUST be called with the chain state lock held (for reads).
func (bc *BlockChain) commonAncestor(locator BlockLocator) nodeID {
	for _, hash := range locator {
		id, exists := bc.index.lookupNode(hash)
		if exists && bc.isOnMainChain(id) {
			return id
		}
	}
	return bc.genesis
}

// MainChainHashesAfter returns up to maxHashes main chain block hashes that
// follow the common ancestor of the locator, oldest first. It is the block
// inventory a peer that sent the locator is missing.
//
// This function is safe for concurrent access.
func (bc *BlockChain) MainChainHashesAfter(locator BlockLocator, maxHashes int) ([]*chainhash.Hash, error) {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	if err := bc.errIfHalted(); err != nil {
		return nil, err
	}
	hashes := make([]*chainhash.Hash, 0, maxHashes)
	next := bc.index.mainChainSuccessor(bc.commonAncestor(locator))
	for next != noNode && len(hashes) < maxHashes {
		hashes = append(hashes, &bc.index.node(next).hash)
		next = bc.index.mainChainSuccessor(next)
	}
	return hashes, nil
}

// LocatorFromMessage converts a decoded locator message to a BlockLocator.
func LocatorFromMessage(msg *appmessage.MsgBlockLocator) BlockLocator {
	return BlockLocator(msg.BlockLocatorHashes)
}

// fastLog2Floor calculates and returns floor(log2(x)) in a constant 6 steps.
func fastLog2Floor(n uint64) uint8 {
	rv := uint8(0)
	exponent := uint8(32)
	for i := 0; i < 6; i++ {
		if n&log2FloorMasks[i] != 0 {
			rv += exponent
			n >>= exponent
		}
		exponent >>= 1
	}
	return rv
}

// log2FloorMasks defines the masks to use when quickly calculating
// floor(log2(x)) in a constant log2(64) = 6 steps.
var log2FloorMasks = []uint64{0xffffffff00000000, 0xffff0000, 0xff00, 0xf0, 0xc, 0x2}
