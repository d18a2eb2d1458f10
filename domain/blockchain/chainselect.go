package blockchain

import (
	"fmt"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// considerCandidate makes candidate the best tip when its cumulative work
// is strictly greater than the work of the current best tip. On equal work
// the current best tip stays: the chain seen first wins. It returns the
// change notification data when the main chain changed, nil otherwise.
//
// This function MUST be called with the chain state lock held (for writes).
func (bc *BlockChain) considerCandidate(candidate nodeID) (*ChainChangedNotificationData, error) {
	if bc.halted {
		return nil, errors.WithStack(ErrChainHalted)
	}

	candidateWork := bc.index.cumulativeWork(candidate)
	if candidateWork.Cmp(bc.index.cumulativeWork(bc.bestTip)) <= 0 {
		log.Debugf("Block %s (height %d) is stored as an alternative of the "+
			"best chain", bc.index.node(candidate), bc.index.node(candidate).height)
		return nil, nil
	}
	return bc.reorganizeChain(candidate)
}

// reorganizeChain switches the main chain to end at candidate. The blocks
// from the best tip down to the fork point are disconnected, tip first,
// and the blocks from the fork point up to candidate are connected,
// ancestor first, all on one view. Nothing is written unless every block
// connects. When a block fails to connect, the view is brought back to the
// previous best chain, the failing block and its descendants are marked
// invalid and the error is returned. When even that restore fails, the
// chain halts.
//
// This function MUST be called with the chain state lock held (for writes).
func (bc *BlockChain) reorganizeChain(candidate nodeID) (*ChainChangedNotificationData, error) {
	if bc.halted {
		return nil, errors.WithStack(ErrChainHalted)
	}

	fork := bc.index.findFork(bc.bestTip, candidate)
	if fork == noNode {
		return nil, errors.WithStack(AssertError(fmt.Sprintf(
			"block %s shares no ancestor with the best chain", bc.index.node(candidate))))
	}
	detach, err := bc.index.pathToAncestor(bc.bestTip, fork)
	if err != nil {
		return nil, err
	}
	attachTipFirst, err := bc.index.pathToAncestor(candidate, fork)
	if err != nil {
		return nil, err
	}
	attach := make([]nodeID, len(attachTipFirst))
	for i, id := range attachTipFirst {
		attach[len(attach)-1-i] = id
	}

	for _, id := range attach {
		if bc.index.status(id).KnownInvalid() {
			str := fmt.Sprintf("block %s connects to an invalid ancestor",
				bc.index.node(id))
			return nil, ruleError(ErrInvalidAncestorBlock, str)
		}
	}

	// Blocks are read before any view mutation so a storage failure
	// cannot interrupt the switch halfway.
	detachBlocks, err := bc.fetchBlocks(detach)
	if err != nil {
		return nil, err
	}
	attachBlocks, err := bc.fetchBlocks(attach)
	if err != nil {
		return nil, err
	}

	view := newUxoViewpoint(bc.databaseContext.NoTx(), bc.uxoCommitment.Clone())
	for i, id := range detach {
		err := bc.disconnectBlock(bc.index.node(id), detachBlocks[i], view)
		if err != nil {
			return nil, bc.halt(err)
		}
	}

	for i, id := range attach {
		_, err := bc.connectBlock(bc.index.node(id), attachBlocks[i], view)
		if err == nil {
			continue
		}

		restoreErr := bc.restoreView(view, attach[:i], attachBlocks[:i], detach, detachBlocks)
		if restoreErr != nil {
			return nil, bc.halt(errors.Wrapf(restoreErr, "failed to restore the best chain "+
				"after block %s failed to connect: %s", bc.index.node(id), err))
		}

		var ruleErr RuleError
		if errors.As(err, &ruleErr) {
			bc.markBlockInvalid(id, ruleErr)
		}
		return nil, err
	}

	return bc.commitChainSwitch(view, fork, detach, detachBlocks, attach, attachBlocks)
}

// restoreView undoes a partial chain switch on view: the attached blocks
// are disconnected, tip first, and the detached blocks are connected back,
// ancestor first. The restored commitment must equal the one of the best
// chain.
func (bc *BlockChain) restoreView(view *UxoViewpoint, attached []nodeID, attachedBlocks []*util.Block,
	detached []nodeID, detachedBlocks []*util.Block) error {

	for i := len(attached) - 1; i >= 0; i-- {
		err := bc.disconnectBlock(bc.index.node(attached[i]), attachedBlocks[i], view)
		if err != nil {
			return err
		}
	}
	for i := len(detached) - 1; i >= 0; i-- {
		_, err := bc.connectBlock(bc.index.node(detached[i]), detachedBlocks[i], view)
		if err != nil {
			return errors.Wrapf(err, "failed to reconnect block %s", bc.index.node(detached[i]))
		}
	}

	restored := view.commitment.Finalize()
	current := bc.uxoCommitment.Finalize()
	if restored != current {
		return errors.WithStack(AssertError(fmt.Sprintf("restored UXO commitment %s "+
			"differs from the best chain commitment %s", restored, current)))
	}
	return nil
}

// commitChainSwitch persists a successful switch in one database
// transaction: the modified UXO entries, the dirty block index nodes and
// the chain state. The in-memory best tip, successor links and commitment
// are updated only after the commit succeeded.
func (bc *BlockChain) commitChainSwitch(view *UxoViewpoint, fork nodeID,
	detach []nodeID, detachBlocks []*util.Block,
	attach []nodeID, attachBlocks []*util.Block) (*ChainChangedNotificationData, error) {

	newTip := fork
	if len(attach) > 0 {
		newTip = attach[len(attach)-1]
	}
	for _, id := range attach {
		bc.index.setStatusFlags(id, statusValid)
	}

	dbTx, err := bc.databaseContext.NewTx()
	if err != nil {
		return nil, err
	}
	defer dbTx.RollbackUnlessClosed()

	err = view.commit(dbTx)
	if err != nil {
		return nil, err
	}
	err = bc.index.flushToDB(dbTx)
	if err != nil {
		return nil, err
	}
	newState := &chainState{tipHash: bc.index.node(newTip).hash, commitment: view.commitment}
	err = storeChainState(dbTx, newState)
	if err != nil {
		return nil, err
	}
	err = dbTx.Commit()
	if err != nil {
		return nil, err
	}
	bc.index.clearDirtyEntries()

	for _, id := range detach {
		bc.index.setMainChainSuccessor(id, noNode)
	}
	previous := fork
	for _, id := range attach {
		bc.index.setMainChainSuccessor(previous, id)
		previous = id
	}
	bc.index.setMainChainSuccessor(newTip, noNode)
	bc.bestTip = newTip
	bc.uxoCommitment = view.commitment
	bc.updateStateSnapshot()

	prometheusChainBlocksConnected.Add(float64(len(attach)))
	prometheusChainBlocksDisconnect.Add(float64(len(detach)))
	if len(detach) > 0 {
		prometheusChainReorgs.Inc()
		prometheusChainReorgDepth.Observe(float64(len(detach)))
		log.Infof("Chain reorganization: disconnected %d blocks down to %s, "+
			"connected %d blocks up to %s", len(detach), bc.index.node(fork),
			len(attach), bc.index.node(newTip))
	}
	for _, block := range attachBlocks {
		log.Debugf("Connected block %s", block.Hash())
	}

	return newChainChangedData(view, detachBlocks, attachBlocks), nil
}

// newChainChangedData assembles the notification of a chain switch.
func newChainChangedData(view *UxoViewpoint, detachBlocks, attachBlocks []*util.Block) *ChainChangedNotificationData {
	data := &ChainChangedNotificationData{
		DisconnectedBlockHashes: make([]*chainhash.Hash, len(detachBlocks)),
		ConnectedBlockHashes:    make([]*chainhash.Hash, len(attachBlocks)),
		OutputChanges:           view.changes.outputChanges(),
		TxChanges:               view.changes.txChanges(),
	}

	connectedTxIDs := make(map[chainhash.Hash]struct{})
	for i, block := range attachBlocks {
		data.ConnectedBlockHashes[i] = block.Hash()
		data.InvVects = append(data.InvVects, appmessage.NewInvVect(appmessage.InvTypeBlock, block.Hash()))
		for _, tx := range block.Transactions() {
			connectedTxIDs[*tx.ID()] = struct{}{}
			data.ConnectedTransactions = append(data.ConnectedTransactions, tx.MsgTx())
		}
	}
	for i, block := range detachBlocks {
		data.DisconnectedBlockHashes[i] = block.Hash()
		for _, tx := range block.Transactions() {
			if tx.IsCoinBase() {
				continue
			}
			if _, ok := connectedTxIDs[*tx.ID()]; ok {
				continue
			}
			data.DisconnectedTransactions = append(data.DisconnectedTransactions, tx.MsgTx())
		}
	}
	for _, txChange := range data.TxChanges {
		if txChange.Kind == Confirmed {
			txID := txChange.TxID
			data.InvVects = append(data.InvVects, appmessage.NewInvVect(appmessage.InvTypeTx, &txID))
		}
	}
	return data
}

// fetchBlocks loads the bodies of the given nodes from the block store.
func (bc *BlockChain) fetchBlocks(ids []nodeID) ([]*util.Block, error) {
	blocks := make([]*util.Block, len(ids))
	for i, id := range ids {
		block, err := bc.fetchNodeBlock(bc.index.node(id))
		if err != nil {
			return nil, err
		}
		blocks[i] = block
	}
	return blocks, nil
}

func (bc *BlockChain) fetchNodeBlock(node *blockNode) (*util.Block, error) {
	if !node.status.HaveData() {
		return nil, errors.Errorf("block %s has no stored data", node)
	}
	block, err := dbaccess.FetchBlockByLocation(bc.databaseContext.NoTx(), node.location)
	if err != nil {
		return nil, err
	}
	block.SetHeight(node.height)
	return block, nil
}

// markBlockInvalid flags id as failed, flags its descendants, forgets the
// derived facts about it and persists only those status changes.
func (bc *BlockChain) markBlockInvalid(id nodeID, ruleErr RuleError) {
	node := bc.index.node(id)
	log.Warnf("Block %s failed to connect: %s", node, ruleErr)
	prometheusChainRejectedBlocks.WithLabelValues(ruleErr.ErrorCode.String()).Inc()

	bc.index.setStatusFlags(id, statusValidateFailed)
	bc.derivedCache.invalidate(&node.hash)
	for _, descendant := range bc.index.markInvalidDescendants(id) {
		bc.derivedCache.invalidate(&bc.index.node(descendant).hash)
	}

	err := bc.flushIndex()
	if err != nil {
		log.Errorf("Failed to persist the invalid status of block %s: %s", node, err)
	}
}

// flushIndex writes the dirty block index nodes in their own transaction.
func (bc *BlockChain) flushIndex() error {
	dbTx, err := bc.databaseContext.NewTx()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = bc.index.flushToDB(dbTx)
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}
	bc.index.clearDirtyEntries()
	return nil
}

// halt moves the chain to the halted state after an unrecoverable
// inconsistency and returns ErrChainHalted wrapping the cause. No further
// mutation is accepted.
func (bc *BlockChain) halt(cause error) error {
	bc.halted = true
	prometheusChainHalted.Set(1)
	log.Criticalf("Chain state is inconsistent, refusing further changes "+
		"until resynchronized: %+v", cause)
	return errors.Wrapf(ErrChainHalted, "%s", cause)
}
