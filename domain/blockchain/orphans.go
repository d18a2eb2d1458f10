// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"time"

	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// maxOrphanBlocks is the maximum number of orphan blocks that can be
// queued.
const maxOrphanBlocks = 100

// orphanExpiration is how long an orphan is held before it is dropped.
const orphanExpiration = time.Hour

// orphanBlock represents a block that we don't yet have the parent for. It
// is a normal block plus an expiration time to prevent caching the orphan
// forever.
type orphanBlock struct {
	block      *util.Block
	expiration time.Time
}

// IsKnownOrphan returns whether the passed hash is currently a known orphan.
// Keep in mind that only a limited number of orphans are held onto for a
// limited amount of time, so this function must not be used as an absolute
// way to test if a block is an orphan block. A full block (as opposed to just
// its hash) must be passed to ProcessBlock for that purpose.
//
// This function is safe for concurrent access.
func (bc *BlockChain) IsKnownOrphan(hash *chainhash.Hash) bool {
	bc.orphanLock.RLock()
	defer bc.orphanLock.RUnlock()
	_, exists := bc.orphans[*hash]

	return exists
}

// OrphanRoot returns the head of the chain of orphans the passed hash is
// part of: the oldest known orphan whose parent is missing. It returns the
// passed hash itself when it is not a known orphan.
//
// This function is safe for concurrent access.
func (bc *BlockChain) OrphanRoot(hash *chainhash.Hash) *chainhash.Hash {
	bc.orphanLock.RLock()
	defer bc.orphanLock.RUnlock()

	orphanRoot := hash
	prevHash := hash
	for {
		orphan, exists := bc.orphans[*prevHash]
		if !exists {
			break
		}
		orphanRoot = prevHash
		prevHash = &orphan.block.MsgBlock().Header.PrevBlock
	}

	return orphanRoot
}

// removeOrphanBlock removes the passed orphan block from the orphan pool and
// previous orphan index.
//
// This function MUST be called with the orphan lock held (for writes).
func (bc *BlockChain) removeOrphanBlock(orphan *orphanBlock) {
	orphanHash := orphan.block.Hash()
	delete(bc.orphans, *orphanHash)

	// An indexing for loop is intentionally used over a range here as
	// range does not reevaluate the slice on each iteration nor does it
	// adjust the index for the modified slice.
	prevHash := &orphan.block.MsgBlock().Header.PrevBlock
	orphans := bc.prevOrphans[*prevHash]
	for i := 0; i < len(orphans); i++ {
		hash := orphans[i].block.Hash()
		if hash.IsEqual(orphanHash) {
			copy(orphans[i:], orphans[i+1:])
			orphans[len(orphans)-1] = nil
			orphans = orphans[:len(orphans)-1]
			i--
		}
	}

	// Remove the map entry altogether if there are no longer any orphans
	// which depend on the parent hash.
	if len(orphans) == 0 {
		delete(bc.prevOrphans, *prevHash)
	} else {
		bc.prevOrphans[*prevHash] = orphans
	}
	if bc.newestOrphan == orphan {
		bc.newestOrphan = nil
	}
	prometheusChainOrphanBlocks.Set(float64(len(bc.orphans)))
}

// addOrphanBlock adds the passed block (which is already determined to be
// an orphan prior calling this function) to the orphan pool. It lazily cleans
// up any expired blocks so a separate cleanup poller doesn't need to be run.
// It also imposes a maximum limit on the number of outstanding orphan
// blocks and will remove the newest received orphan block if the limit is
// exceeded.
func (bc *BlockChain) addOrphanBlock(block *util.Block) {
	bc.orphanLock.Lock()
	defer bc.orphanLock.Unlock()

	// Remove expired orphan blocks.
	now := time.Now()
	for _, oBlock := range bc.orphans {
		if now.After(oBlock.expiration) {
			bc.removeOrphanBlock(oBlock)
			continue
		}

		// Update the newest orphan block pointer so it can be discarded
		// in case the orphan pool fills up.
		if bc.newestOrphan == nil || oBlock.block.Timestamp().After(bc.newestOrphan.block.Timestamp()) {
			bc.newestOrphan = oBlock
		}
	}

	// Limit orphan blocks to prevent memory exhaustion.
	if len(bc.orphans)+1 > maxOrphanBlocks {
		// If the new orphan is newer than the newest orphan on the orphan
		// pool, don't add it.
		if block.Timestamp().After(bc.newestOrphan.block.Timestamp()) {
			return
		}
		// Remove the newest orphan to make room for the added one.
		bc.removeOrphanBlock(bc.newestOrphan)
	}

	oBlock := &orphanBlock{
		block:      block,
		expiration: now.Add(orphanExpiration),
	}
	bc.orphans[*block.Hash()] = oBlock

	// Add to previous hash lookup index for faster dependency lookups.
	prevHash := &block.MsgBlock().Header.PrevBlock
	bc.prevOrphans[*prevHash] = append(bc.prevOrphans[*prevHash], oBlock)
	prometheusChainOrphanBlocks.Set(float64(len(bc.orphans)))
}

// takeOrphansOf removes and returns the orphans whose parent is hash.
func (bc *BlockChain) takeOrphansOf(hash *chainhash.Hash) []*orphanBlock {
	bc.orphanLock.Lock()
	defer bc.orphanLock.Unlock()

	children := append([]*orphanBlock(nil), bc.prevOrphans[*hash]...)
	for _, orphan := range children {
		bc.removeOrphanBlock(orphan)
	}
	return children
}

// processOrphans determines if there are any orphans which depend on the passed
// block hash (they are no longer orphans if true) and potentially accepts them.
// It repeats the process for the newly accepted blocks (to detect further
// orphans which may no longer be orphans) until there are no more.
//
// The flags do not modify the behavior of this function directly, however they
// are needed to pass along to maybeAcceptBlock.
//
// This function MUST be called with the chain state lock held (for writes).
func (bc *BlockChain) processOrphans(hash *chainhash.Hash, flags BehaviorFlags) ([]*Notification, error) {
	var notifications []*Notification

	processHashes := make([]*chainhash.Hash, 0, 10)
	processHashes = append(processHashes, hash)
	for len(processHashes) > 0 {
		// Pop the first hash to process from the slice.
		processHash := processHashes[0]
		processHashes[0] = nil // Prevent GC leak.
		processHashes = processHashes[1:]

		for _, orphan := range bc.takeOrphansOf(processHash) {
			orphanHash := orphan.block.Hash()

			// Potentially accept the block into the block chain.
			orphanNotifications, err := bc.maybeAcceptBlock(orphan.block, flags|BFWasUnorphaned)
			if err != nil {
				// Since we don't want to reject the original block because of
				// a bad unorphaned child, only return an error if it's not a RuleError.
				if !errors.As(err, &RuleError{}) {
					return nil, err
				}
				log.Warnf("Verification failed for orphan block %s: %s", orphanHash, err)
				continue
			}
			notifications = append(notifications, orphanNotifications...)

			// Add this block to the list of blocks to process so
			// any orphan blocks that depend on this block are
			// handled too.
			processHashes = append(processHashes, orphanHash)
		}
	}
	return notifications, nil
}
