// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaspanet/go-muhash"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// defaultDerivedCacheSize is the number of blocks the derived cache
// remembers when the configuration does not say otherwise.
const defaultDerivedCacheSize = 1000

// BestState houses information about the current best block and other info
// related to the state of the main chain as it exists from the point of
// view of the current best block.
//
// The BestSnapshot method can be used to obtain access to this information
// in a concurrent safe manner and the data will not be changed out from
// under the caller when chain state changes occur as the function name
// implies. However, the returned snapshot must be treated as immutable
// since it is shared by all callers.
type BestState struct {
	Hash           chainhash.Hash // The hash of the block.
	Height         uint64         // The height of the block.
	Bits           uint32         // The difficulty bits of the block.
	CumulativeWork *big.Int       // The total work up to and including the block.
	MedianTime     time.Time      // Median time as per CalcPastMedianTime.
	UxoCommitment  chainhash.Hash // The finalized UXO commitment.
}

// Config is a descriptor which specifies the blockchain instance
// configuration.
type Config struct {
	// DatabaseContext is the context in which all database queries run.
	//
	// This field is required.
	DatabaseContext *dbaccess.DatabaseContext

	// Params identifies which chain parameters the chain is associated
	// with.
	//
	// This field is required.
	Params *chaincfg.Params

	// TimeSource defines the time source to use for things such as block
	// processing and determining whether or not a block is too far in the
	// future.
	//
	// This field is required.
	TimeSource TimeSource

	// SigCache defines a signature cache to use when when validating
	// signatures. This is typically most useful when individual
	// transactions are already being validated prior to their inclusion in
	// a block such as what is usually done via a transaction memory pool.
	//
	// This field can be nil if the caller is not interested in using a
	// signature cache.
	SigCache *txscript.SigCache

	// DerivedCacheSize is the number of blocks whose verified merkle root
	// and scripts are remembered. Zero selects the default, a negative
	// value disables the cache.
	DerivedCacheSize int

	// ReindexChainState drops the UXO index on start and rebuilds it by
	// replaying the stored blocks.
	ReindexChainState bool
}

// BlockChain provides functions for working with the block chain. It
// includes functionality such as rejecting duplicate blocks, ensuring
// blocks follow all rules, orphan handling, checkpoint handling and best
// chain selection with reorganization.
type BlockChain struct {
	// The following fields are set when the instance is created and can't
	// be changed afterwards, so there is no need to protect them with a
	// separate mutex.
	params          *chaincfg.Params
	databaseContext *dbaccess.DatabaseContext
	timeSource      TimeSource
	evaluator       *txscript.Evaluator
	derivedCache    *derivedCache

	// chainLock protects concurrent access to the vast majority of the
	// fields in this struct below this point.
	chainLock sync.RWMutex

	// index houses the entire block index in memory. The block index is
	// an arena of nodes addressed by nodeID.
	index *blockIndex

	// genesis and bestTip are ids in the block index. uxoCommitment is
	// the commitment to the UXO index as of bestTip.
	genesis       nodeID
	bestTip       nodeID
	uxoCommitment *muhash.MuHash

	// halted is set when the chain could not restore a consistent state
	// after a failed reorganization. Every later mutation is refused.
	halted bool

	// These fields are related to handling of orphan blocks. They are
	// protected by a combination of the chain lock and the orphan lock.
	orphanLock   sync.RWMutex
	orphans      map[chainhash.Hash]*orphanBlock
	prevOrphans  map[chainhash.Hash][]*orphanBlock
	newestOrphan *orphanBlock

	// stateSnapshot is replaced, never mutated, whenever the best tip
	// changes, so it can be read without the chain lock.
	stateSnapshot atomic.Pointer[BestState]

	// The notifications field stores a slice of callbacks to be executed
	// on certain blockchain events.
	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// New returns a BlockChain instance using the provided configuration
// details.
func New(config *Config) (*BlockChain, error) {
	// Enforce required config fields.
	if config.DatabaseContext == nil {
		return nil, AssertError("blockchain.New database is nil")
	}
	if config.Params == nil {
		return nil, AssertError("blockchain.New chain parameters nil")
	}
	if config.TimeSource == nil {
		return nil, AssertError("blockchain.New timesource is nil")
	}

	initPrometheusMetrics()

	derivedCacheSize := config.DerivedCacheSize
	if derivedCacheSize == 0 {
		derivedCacheSize = defaultDerivedCacheSize
	}
	cache, err := newDerivedCache(derivedCacheSize)
	if err != nil {
		return nil, err
	}

	bc := &BlockChain{
		params:          config.Params,
		databaseContext: config.DatabaseContext,
		timeSource:      config.TimeSource,
		evaluator:       txscript.NewEvaluator(config.SigCache),
		derivedCache:    cache,
		index:           newBlockIndex(),
		genesis:         noNode,
		bestTip:         noNode,
		orphans:         make(map[chainhash.Hash]*orphanBlock),
		prevOrphans:     make(map[chainhash.Hash][]*orphanBlock),
	}

	// Initialize the chain state from the passed database. When the db
	// does not yet contain any chain state, both it and the chain state
	// will be initialized to contain only the genesis block.
	err = bc.initChainState(config.ReindexChainState)
	if err != nil {
		return nil, err
	}

	best := bc.BestSnapshot()
	log.Infof("Chain state (height %d, hash %s, work %s)", best.Height,
		best.Hash, best.CumulativeWork)
	return bc, nil
}

// updateStateSnapshot publishes a new BestState for the current best tip.
//
// This function MUST be called with the chain state lock held (for writes)
// or before the chain is shared.
func (bc *BlockChain) updateStateSnapshot() {
	tip := bc.index.node(bc.bestTip)
	state := &BestState{
		Hash:           tip.hash,
		Height:         tip.height,
		Bits:           tip.bits,
		CumulativeWork: bc.index.cumulativeWork(bc.bestTip),
		MedianTime:     bc.index.pastMedianTime(bc.bestTip),
		UxoCommitment:  chainhash.Hash(bc.uxoCommitment.Finalize()),
	}
	bc.stateSnapshot.Store(state)

	prometheusChainBestHeight.Set(float64(state.Height))
	prometheusChainWorkBits.Set(float64(state.CumulativeWork.BitLen()))
}

// BestSnapshot returns information about the current best chain block and
// related state as of the current point in time. The returned instance
// must be treated as immutable since it is shared by all callers.
//
// This function is safe for concurrent access.
func (bc *BlockChain) BestSnapshot() *BestState {
	return bc.stateSnapshot.Load()
}

// Params returns the chain parameters.
func (bc *BlockChain) Params() *chaincfg.Params {
	return bc.params
}

// Evaluator returns the predicate evaluator the chain validates scripts
// with, so transaction pools share its signature cache.
func (bc *BlockChain) Evaluator() *txscript.Evaluator {
	return bc.evaluator
}

// TimeSource returns the time source the chain checks timestamps against.
func (bc *BlockChain) TimeSource() TimeSource {
	return bc.timeSource
}

// IsHalted returns whether the chain refused further changes after an
// unrecoverable inconsistency.
//
// This function is safe for concurrent access.
func (bc *BlockChain) IsHalted() bool {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()
	return bc.halted
}

// errIfHalted returns ErrChainHalted once the chain is halted, since the
// durable state may then describe a partially disconnected chain.
//
// This function MUST be called with the chain state lock held (for reads).
func (bc *BlockChain) errIfHalted() error {
	if bc.halted {
		return errors.WithStack(ErrChainHalted)
	}
	return nil
}

// HaveBlock returns whether or not the chain instance has the block
// represented by the passed hash. This includes checking the various places
// a block can be, like part of the main chain, on a side chain, or in the
// orphan pool.
//
// This function is safe for concurrent access.
func (bc *BlockChain) HaveBlock(hash *chainhash.Hash) bool {
	return bc.haveBlockData(hash) || bc.IsKnownOrphan(hash)
}

// haveBlockData returns whether the body of the block is stored.
func (bc *BlockChain) haveBlockData(hash *chainhash.Hash) bool {
	id, exists := bc.index.lookupNode(hash)
	return exists && bc.index.status(id).HaveData()
}

// IsKnownInvalid returns whether the passed hash is known to be invalid,
// either because it failed validation or because one of its ancestors did.
//
// This function is safe for concurrent access.
func (bc *BlockChain) IsKnownInvalid(hash *chainhash.Hash) bool {
	id, exists := bc.index.lookupNode(hash)
	return exists && bc.index.status(id).KnownInvalid()
}

// IsInMainChain returns whether the block with the given hash is part of
// the main chain.
//
// This function is safe for concurrent access.
func (bc *BlockChain) IsInMainChain(hash *chainhash.Hash) bool {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	id, exists := bc.index.lookupNode(hash)
	return exists && bc.isOnMainChain(id)
}

// isOnMainChain returns whether id is part of the main chain. Every main
// chain block but the tip has a successor.
//
// This function MUST be called with the chain state lock held (for reads).
func (bc *BlockChain) isOnMainChain(id nodeID) bool {
	return id == bc.bestTip || bc.index.mainChainSuccessor(id) != noNode
}

// BlockByHash returns the block with the given hash, whether or not it is
// part of the main chain. Its height is set.
//
// This function is safe for concurrent access.
func (bc *BlockChain) BlockByHash(hash *chainhash.Hash) (*util.Block, error) {
	id, exists := bc.index.lookupNode(hash)
	if !exists {
		return nil, errors.Errorf("block %s is unknown", hash)
	}
	return bc.fetchNodeBlock(bc.index.node(id))
}

// HeaderByHash returns the header of the block with the given hash, which
// may be known without its body.
//
// This function is safe for concurrent access.
func (bc *BlockChain) HeaderByHash(hash *chainhash.Hash) (*appmessage.BlockHeader, error) {
	id, exists := bc.index.lookupNode(hash)
	if !exists {
		return nil, errors.Errorf("block %s is unknown", hash)
	}
	return bc.index.node(id).Header(), nil
}

// BlockHeightByHash returns the height of the block with the given hash.
//
// This function is safe for concurrent access.
func (bc *BlockChain) BlockHeightByHash(hash *chainhash.Hash) (uint64, error) {
	id, exists := bc.index.lookupNode(hash)
	if !exists {
		return 0, errors.Errorf("block %s is unknown", hash)
	}
	return bc.index.node(id).height, nil
}

// BlockHashByHeight returns the hash of the main chain block at the given
// height.
//
// This function is safe for concurrent access.
func (bc *BlockChain) BlockHashByHeight(height uint64) (*chainhash.Hash, error) {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	if err := bc.errIfHalted(); err != nil {
		return nil, err
	}
	id := bc.index.ancestor(bc.bestTip, height)
	if id == noNode {
		return nil, errors.Errorf("no main chain block at height %d", height)
	}
	return &bc.index.node(id).hash, nil
}

// CalcPastMedianTime calculates the median time of the previous few blocks
// prior to, and including, the best tip.
//
// This function is safe for concurrent access.
func (bc *BlockChain) CalcPastMedianTime() time.Time {
	return bc.BestSnapshot().MedianTime
}

// FetchUxoEntry returns a copy of the UXO entry of the given transaction as
// of the best tip, or nil when the transaction is not indexed.
//
// This function is safe for concurrent access.
func (bc *BlockChain) FetchUxoEntry(txID *chainhash.Hash) (*UxoEntry, error) {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	if err := bc.errIfHalted(); err != nil {
		return nil, err
	}
	view := newUxoViewpoint(bc.databaseContext.NoTx(), nil)
	entry, err := view.LookupEntry(txID)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// FetchUxoView loads the UXO entries of the transaction itself and of every
// transaction it spends as of the best tip, into a view that is detached
// from the database. Entries that are not indexed are recorded as absent.
// The view can be freely modified by the caller.
//
// This function is safe for concurrent access.
func (bc *BlockChain) FetchUxoView(tx *util.Tx) (*UxoViewpoint, error) {
	bc.chainLock.RLock()
	defer bc.chainLock.RUnlock()

	if err := bc.errIfHalted(); err != nil {
		return nil, err
	}
	txIDs := []*chainhash.Hash{tx.ID()}
	if !tx.IsCoinBase() {
		for _, txIn := range tx.MsgTx().TxIn {
			txIDs = append(txIDs, &txIn.PreviousOutpoint.TxID)
		}
	}

	source := newUxoViewpoint(bc.databaseContext.NoTx(), nil)
	view := NewUxoViewpoint()
	for _, txID := range txIDs {
		entry, err := source.LookupEntry(txID)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entry = entry.Clone()
		}
		view.AddEntry(txID, entry)
	}
	return view, nil
}
