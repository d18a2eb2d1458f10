// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"

	"github.com/kaspanet/go-muhash"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// serializedChainStateLen is the size of the chain state record: the best
// tip hash followed by the serialized UXO commitment.
const serializedChainStateLen = chainhash.HashSize + muhash.SerializedMuHashSize

// chainState is the durable record of the main chain: its tip and the
// commitment to the UXO index as of that tip.
type chainState struct {
	tipHash    chainhash.Hash
	commitment *muhash.MuHash
}

func serializeChainState(state *chainState) []byte {
	serialized := make([]byte, serializedChainStateLen)
	copy(serialized, state.tipHash[:])
	copy(serialized[chainhash.HashSize:], state.commitment.Serialize()[:])
	return serialized
}

func deserializeChainState(serialized []byte) (*chainState, error) {
	if len(serialized) != serializedChainStateLen {
		return nil, errors.Errorf("chain state record is %d bytes long, "+
			"expected %d", len(serialized), serializedChainStateLen)
	}
	state := &chainState{}
	copy(state.tipHash[:], serialized[:chainhash.HashSize])

	var serializedCommitment muhash.SerializedMuHash
	copy(serializedCommitment[:], serialized[chainhash.HashSize:])
	commitment, err := muhash.DeserializeMuHash(&serializedCommitment)
	if err != nil {
		return nil, errors.Wrap(err, "failed to deserialize the UXO commitment")
	}
	state.commitment = commitment
	return state, nil
}

// storeChainState writes the chain state record through dbContext.
func storeChainState(dbContext dbaccess.Context, state *chainState) error {
	return dbaccess.StoreChainState(dbContext, serializeChainState(state))
}

// initChainState attempts to load and initialize the chain state from the
// database. When the db does not yet contain any chain state, both it and
// the chain state are initialized to the genesis block. When the stored
// state is unusable, or a reindex was requested, the UXO index is rebuilt
// by replaying the stored blocks.
func (bc *BlockChain) initChainState(reindex bool) error {
	// Fetch the stored chain state from the database. If it doesn't
	// exist, it means that the node is running for the first time.
	serializedChainState, err := dbaccess.FetchChainState(bc.databaseContext.NoTx())
	if dbaccess.IsNotFoundError(err) {
		return bc.createChainState()
	}
	if err != nil {
		return err
	}

	log.Debugf("Loading block index...")
	err = bc.initBlockIndex()
	if err != nil {
		return err
	}
	log.Infof("Loaded %d block index entries", bc.index.nodeCount())

	state, err := deserializeChainState(serializedChainState)
	if err == nil {
		err = bc.verifyChainState(state)
	}
	switch {
	case err != nil:
		log.Warnf("The stored chain state is unusable, rebuilding it: %s", err)
		err = bc.reindexChainState()
	case reindex:
		log.Infof("Rebuilding the chain state as requested")
		err = bc.reindexChainState()
	default:
		tip, _ := bc.index.lookupNode(&state.tipHash)
		bc.setMainChain(tip)
		bc.uxoCommitment = state.commitment
		bc.updateStateSnapshot()
	}
	if err != nil {
		return err
	}

	// Stored blocks that never got the chance to compete, for instance
	// because the node stopped right after storing them, are considered
	// now.
	err = bc.catchUpToBestCandidate()
	if err != nil {
		return err
	}

	log.Infof("Chain state initialized: best block %s at height %d",
		bc.index.node(bc.bestTip), bc.index.node(bc.bestTip).height)
	return nil
}

// createChainState initializes both the database and the chain state to
// the genesis block. The genesis block is stored and indexed but never
// connected, so its coinbase is not spendable.
func (bc *BlockChain) createChainState() error {
	genesisBlock := util.NewBlock(bc.params.GenesisBlock)
	genesisBlock.SetHeight(0)

	dbTx, err := bc.databaseContext.NewTx()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	location, err := dbaccess.StoreBlock(dbTx, genesisBlock)
	if err != nil {
		return err
	}
	genesis, err := bc.index.insertHeader(noNode, &genesisBlock.MsgBlock().Header, location)
	if err != nil {
		return err
	}
	bc.index.setStatusFlags(genesis, statusDataStored|statusValid)
	err = bc.index.flushToDB(dbTx)
	if err != nil {
		return err
	}
	commitment := muhash.NewMuHash()
	err = storeChainState(dbTx, &chainState{tipHash: *genesisBlock.Hash(), commitment: commitment})
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}
	bc.index.clearDirtyEntries()

	bc.genesis = genesis
	bc.bestTip = genesis
	bc.uxoCommitment = commitment
	bc.updateStateSnapshot()
	log.Infof("Created a new chain state at genesis block %s", genesisBlock.Hash())
	return nil
}

// initBlockIndex rebuilds the block index arena from the database. The
// entries are keyed by height first, so every parent is loaded before its
// children.
func (bc *BlockChain) initBlockIndex() error {
	cursor, err := dbaccess.BlockIndexCursor(bc.databaseContext.NoTx())
	if err != nil {
		return err
	}
	defer cursor.Close()

	bc.index.Lock()
	defer bc.index.Unlock()

	for ok := cursor.First(); ok; ok = cursor.Next() {
		serializedNode, err := cursor.Value()
		if err != nil {
			return err
		}
		node, err := deserializeBlockNode(serializedNode)
		if err != nil {
			return err
		}

		if len(bc.index.nodes) == 0 {
			if !node.hash.IsEqual(bc.params.GenesisHash) {
				return errors.Errorf("expected the first entry in the block "+
					"index to be the genesis block, found %s", node.hash)
			}
			bc.genesis = bc.index.addNodeNoLock(node)
			continue
		}

		parentID, exists := bc.index.byHash[node.prevHash]
		if !exists {
			return errors.Errorf("block %s in the block index has an unknown "+
				"parent %s", node.hash, node.prevHash)
		}
		parent := bc.index.nodeNoLock(parentID)
		node.parent = parentID
		node.height = parent.height + 1
		node.workSum = new(big.Int).Add(node.workSum, parent.workSum)
		bc.index.addNodeNoLock(node)
	}
	if len(bc.index.nodes) == 0 {
		return errors.New("the chain state exists but the block index is empty")
	}
	return nil
}

// verifyChainState checks that the stored tip is a known, fully stored
// and not invalid block, and that the stored commitment matches the UXO
// index actually on disk.
func (bc *BlockChain) verifyChainState(state *chainState) error {
	tip, exists := bc.index.lookupNode(&state.tipHash)
	if !exists {
		return errors.Errorf("the stored best block %s is not in the block index", state.tipHash)
	}
	status := bc.index.status(tip)
	if !status.HaveData() || status.KnownInvalid() {
		return errors.Errorf("the stored best block %s has status %d", state.tipHash, status)
	}

	commitment, err := bc.calcStoredUxoCommitment()
	if err != nil {
		return err
	}
	stored := state.commitment.Finalize()
	actual := commitment.Finalize()
	if stored != actual {
		return errors.Errorf("the stored UXO commitment %s does not match "+
			"the UXO index commitment %s", chainhash.Hash(stored), chainhash.Hash(actual))
	}
	return nil
}

// calcStoredUxoCommitment recomputes the commitment over every unspent
// output in the durable UXO index.
func (bc *BlockChain) calcStoredUxoCommitment() (*muhash.MuHash, error) {
	cursor, err := dbaccess.UxoEntriesCursor(bc.databaseContext.NoTx())
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	commitment := muhash.NewMuHash()
	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, err
		}
		txID, err := chainhash.NewHash(key.Key())
		if err != nil {
			return nil, err
		}
		serializedEntry, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		entry, err := deserializeUxoEntry(serializedEntry)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to deserialize UXO entry of %s", txID)
		}
		for i, output := range entry.Outputs {
			if output.IsSpent() {
				continue
			}
			outpoint := appmessage.Outpoint{TxID: *txID, Index: uint32(i)}
			commitment.Add(commitmentElement(outpoint, entry, output))
		}
	}
	return commitment, nil
}

// reindexChainState drops the UXO index and resets the chain state to the
// genesis block. The caller then replays the stored blocks with
// catchUpToBestCandidate.
func (bc *BlockChain) reindexChainState() error {
	commitment := muhash.NewMuHash()

	dbTx, err := bc.databaseContext.NewTx()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = dbaccess.ClearUxoEntries(dbTx)
	if err != nil {
		return err
	}
	genesisHash := bc.index.node(bc.genesis).hash
	err = storeChainState(dbTx, &chainState{tipHash: genesisHash, commitment: commitment})
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}

	bc.setMainChain(bc.genesis)
	bc.uxoCommitment = commitment
	bc.updateStateSnapshot()
	return nil
}

// setMainChain makes tip the best tip and rewrites every main chain
// successor link to follow the chain ending at tip. It does not touch the
// UXO index.
func (bc *BlockChain) setMainChain(tip nodeID) {
	for id := nodeID(0); int(id) < bc.index.nodeCount(); id++ {
		bc.index.setMainChainSuccessor(id, noNode)
	}
	for id := tip; id != bc.genesis; {
		parent := bc.index.node(id).parent
		bc.index.setMainChainSuccessor(parent, id)
		id = parent
	}
	bc.bestTip = tip
}

// mostWorkCandidate returns the stored, not invalid block with the most
// cumulative work. On equal work the block indexed first wins.
func (bc *BlockChain) mostWorkCandidate() nodeID {
	bc.index.RLock()
	defer bc.index.RUnlock()

	best := bc.genesis
	for _, node := range bc.index.nodes {
		if !node.status.HaveData() || node.status.KnownInvalid() {
			continue
		}
		if node.workSum.Cmp(bc.index.nodeNoLock(best).workSum) > 0 {
			best = node.id
		}
	}
	return best
}

// catchUpToBestCandidate reorganizes to the stored block with the most
// work until the best tip is that block. A candidate that fails to connect
// is marked invalid by reorganizeChain, so the next pass picks another.
//
// This function MUST be called with the chain state lock held (for writes)
// or before the chain is shared.
func (bc *BlockChain) catchUpToBestCandidate() error {
	for {
		candidate := bc.mostWorkCandidate()
		if candidate == bc.bestTip ||
			bc.index.cumulativeWork(candidate).Cmp(bc.index.cumulativeWork(bc.bestTip)) <= 0 {

			return nil
		}

		log.Infof("Catching up to block %s at height %d", bc.index.node(candidate),
			bc.index.node(candidate).height)
		_, err := bc.reorganizeChain(candidate)
		if err == nil {
			continue
		}
		if !errors.As(err, &RuleError{}) || !bc.index.status(candidate).KnownInvalid() {
			return err
		}
		log.Warnf("Skipping block %s: %s", bc.index.node(candidate), err)
	}
}

