// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// BehaviorFlags is a bitmask defining tweaks to the normal behavior when
// performing chain processing and consensus rules checks.
type BehaviorFlags uint32

const (
	// BFNoPoWCheck may be set to indicate the proof of work check which
	// ensures a block hashes to a value less than the required target will
	// not be performed.
	BFNoPoWCheck BehaviorFlags = 1 << iota

	// BFWasUnorphaned may be set to indicate that a block was just
	// unorphaned.
	BFWasUnorphaned

	// BFNone is a convenience value to specifically indicate no flags.
	BFNone BehaviorFlags = 0
)

// ProcessBlock is the main workhorse for handling insertion of new blocks into
// the block chain. It includes functionality such as rejecting duplicate
// blocks, ensuring blocks follow all rules, orphan handling, and insertion into
// the block chain along with best chain selection and reorganization.
//
// When no errors occurred during processing, the first return value indicates
// whether or not the block is an orphan. Notifications are sent once the
// chain state lock has been released.
//
// This function is safe for concurrent access.
func (bc *BlockChain) ProcessBlock(block *util.Block, flags BehaviorFlags) (isOrphan bool, err error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ProcessBlock")
	defer onEnd()
	start := time.Now()
	defer func() {
		prometheusChainProcessBlockMicro.Observe(float64(time.Since(start).Microseconds()))
		var ruleErr RuleError
		if errors.As(err, &ruleErr) {
			prometheusChainRejectedBlocks.WithLabelValues(ruleErr.ErrorCode.String()).Inc()
		}
	}()

	blockHash := block.Hash()
	log.Tracef("Processing block %s", blockHash)

	// The block must not already exist in the block chain.
	if id, exists := bc.index.lookupNode(blockHash); exists && bc.index.status(id).HaveData() {
		str := fmt.Sprintf("already have block %s", blockHash)
		return false, ruleError(ErrDuplicateBlock, str)
	}

	// The block must not already exist as an orphan.
	if bc.IsKnownOrphan(blockHash) {
		str := fmt.Sprintf("already have block (orphan) %s", blockHash)
		return false, ruleError(ErrDuplicateBlock, str)
	}

	// Perform preliminary sanity checks on the block and its transactions.
	// They are context free, so they run before the chain state lock is
	// taken.
	err = CheckBlockSanity(block, bc.params, bc.timeSource, flags)
	if err != nil {
		return false, err
	}

	notifications, isOrphan, err := bc.processSaneBlock(block, flags)
	for _, notification := range notifications {
		bc.sendNotification(notification.Type, notification.Data)
	}
	if err != nil {
		return false, err
	}

	log.Debugf("Accepted block %s", blockHash)
	return isOrphan, nil
}

// processSaneBlock handles a block that passed the sanity checks under the
// chain state lock and returns the notifications to send once the lock is
// released.
func (bc *BlockChain) processSaneBlock(block *util.Block, flags BehaviorFlags) ([]*Notification, bool, error) {
	bc.chainLock.Lock()
	defer bc.chainLock.Unlock()

	if bc.halted {
		return nil, false, errors.WithStack(ErrChainHalted)
	}

	// A concurrent submission of the same block may have been pooled as an
	// orphan since the unlocked checks in ProcessBlock.
	if bc.IsKnownOrphan(block.Hash()) {
		str := fmt.Sprintf("already have block (orphan) %s", block.Hash())
		return nil, false, ruleError(ErrDuplicateBlock, str)
	}

	// Handle orphan blocks. A parent indexed without its body because it
	// descends from an invalid block is not missing: maybeAcceptBlock
	// rejects its children.
	prevHash := &block.MsgBlock().Header.PrevBlock
	if !bc.haveBlockData(prevHash) && !bc.IsKnownInvalid(prevHash) {
		log.Infof("Adding orphan block %s with parent %s", block.Hash(), prevHash)
		bc.addOrphanBlock(block)
		return nil, true, nil
	}

	// The block has passed all context independent checks and appears sane
	// enough to potentially accept it into the block chain.
	notifications, err := bc.maybeAcceptBlock(block, flags)
	if err != nil {
		return notifications, false, err
	}

	// Accept any orphan blocks that depend on this block (they are
	// no longer orphans) and repeat for those accepted blocks until
	// there are no more.
	orphanNotifications, err := bc.processOrphans(block.Hash(), flags)
	notifications = append(notifications, orphanNotifications...)
	if err != nil {
		return notifications, false, err
	}
	return notifications, false, nil
}

// maybeAcceptBlock potentially accepts a block into the block chain. It
// performs several validation checks which depend on its position within
// the block chain before storing it, then lets it compete for the best
// chain. The block is expected to have already gone through ProcessBlock
// before calling this function with it.
//
// This function MUST be called with the chain state lock held (for writes).
func (bc *BlockChain) maybeAcceptBlock(block *util.Block, flags BehaviorFlags) ([]*Notification, error) {
	blockHash := block.Hash()
	header := &block.MsgBlock().Header

	// The body may have been stored by a concurrent submission since the
	// unlocked duplicate check in ProcessBlock.
	if bc.haveBlockData(blockHash) {
		str := fmt.Sprintf("already have block %s", blockHash)
		return nil, ruleError(ErrDuplicateBlock, str)
	}

	parentID, exists := bc.index.lookupNode(&header.PrevBlock)
	if !exists {
		str := fmt.Sprintf("previous block %s is unknown", header.PrevBlock)
		return nil, ruleError(ErrParentUnknown, str)
	}
	if bc.index.status(parentID).KnownInvalid() {
		err := bc.addHeaderWithInvalidAncestor(parentID, block)
		if err != nil {
			return nil, err
		}
		str := fmt.Sprintf("previous block %s is known to be invalid", header.PrevBlock)
		return nil, ruleError(ErrInvalidAncestorBlock, str)
	}

	// The block must pass all of the validation rules which depend on the
	// position of the block within the block chain.
	err := bc.checkBlockContext(block, parentID)
	if err != nil {
		return nil, err
	}

	id, err := bc.storeBlockData(parentID, block)
	if err != nil {
		return nil, err
	}

	chainChanged, err := bc.considerCandidate(id)
	onMainChain := bc.isOnMainChain(id)
	notifications := []*Notification{{
		Type: NTBlockAdded,
		Data: &BlockAddedNotificationData{
			Hash:          blockHash,
			Height:        bc.index.node(id).height,
			OnMainChain:   onMainChain,
			WasUnorphaned: flags&BFWasUnorphaned == BFWasUnorphaned,
		},
	}}
	if chainChanged != nil {
		notifications = append(notifications, &Notification{Type: NTChainChanged, Data: chainChanged})
	}
	return notifications, err
}

// storeBlockData writes the body of the block to the block store and the
// node for it to the block index in one database transaction. A node that
// is already indexed without a body, for instance after an earlier failed
// attempt, gets the body attached.
//
// This function MUST be called with the chain state lock held (for writes).
func (bc *BlockChain) storeBlockData(parentID nodeID, block *util.Block) (nodeID, error) {
	blockBytes, err := block.Bytes()
	if err != nil {
		return noNode, err
	}
	hasSpace, err := bc.databaseContext.HasSpace(uint64(len(blockBytes)))
	if err != nil {
		return noNode, err
	}
	if !hasSpace {
		return noNode, errors.Wrapf(ErrNoDiskSpace, "cannot store block %s", block.Hash())
	}

	id, exists := bc.index.lookupNode(block.Hash())
	if !exists {
		id, err = bc.index.insertHeader(parentID, &block.MsgBlock().Header, nil)
		if err != nil {
			return noNode, err
		}
	}

	dbTx, err := bc.databaseContext.NewTx()
	if err != nil {
		return noNode, err
	}
	defer dbTx.RollbackUnlessClosed()

	location, err := dbaccess.StoreBlock(dbTx, block)
	if err != nil {
		return noNode, err
	}
	bc.index.setBlockData(id, location)
	err = bc.index.flushToDB(dbTx)
	if err == nil {
		err = dbTx.Commit()
	}
	if err != nil {
		bc.index.unsetStatusFlags(id, statusDataStored)
		return noNode, err
	}
	bc.index.clearDirtyEntries()
	return id, nil
}

// addHeaderWithInvalidAncestor indexes the header of a block whose parent
// is known to be invalid, so later lookups report it as invalid without
// revalidating it. Its body is not stored.
func (bc *BlockChain) addHeaderWithInvalidAncestor(parentID nodeID, block *util.Block) error {
	if _, exists := bc.index.lookupNode(block.Hash()); exists {
		return nil
	}
	id, err := bc.index.insertHeader(parentID, &block.MsgBlock().Header, nil)
	if err != nil {
		return err
	}
	bc.index.setStatusFlags(id, statusInvalidAncestor)
	return bc.flushIndex()
}
