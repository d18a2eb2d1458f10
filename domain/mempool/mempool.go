// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// Chain is the view of the block chain the mempool validates against.
type Chain interface {
	BestSnapshot() *blockchain.BestState
	FetchUxoView(tx *util.Tx) (*blockchain.UxoViewpoint, error)
	Evaluator() *txscript.Evaluator
}

// Mempool is used as a source of transactions that need to be mined into
// blocks and relayed to other peers. It is safe for concurrent access from
// multiple peers.
//
// Lock order is mempool then chain: the mempool queries the chain while
// holding its own lock, and the chain never calls into the mempool.
type Mempool struct {
	// The following variables must only be used atomically.
	lastUpdated int64 // last time pool was updated

	mtx              sync.RWMutex
	config           *Config
	chain            Chain
	transactionsPool *transactionsPool
	orphansPool      *orphansPool
}

// Ensure the Mempool type implements the mining.TxSource interface.
var _ mining.TxSource = (*Mempool)(nil)

// New returns a new memory pool for validating and storing standalone
// transactions until they are mined into a block.
func New(config *Config, chain Chain) *Mempool {
	initPrometheusMetrics()

	mp := &Mempool{
		config:           config,
		chain:            chain,
		transactionsPool: newTransactionsPool(),
	}
	mp.orphansPool = newOrphansPool(mp)
	return mp
}

// HaveTransaction returns whether or not the passed transaction already
// exists in the main pool or in the orphan pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) HaveTransaction(txID *chainhash.Hash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.haveTransaction(txID)
}

func (mp *Mempool) haveTransaction(txID *chainhash.Hash) bool {
	_, inPool := mp.transactionsPool.allTransactions[*txID]
	return inPool || mp.orphansPool.isOrphanInPool(txID)
}

// IsTransactionInPool returns whether or not the passed transaction already
// exists in the main pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) IsTransactionInPool(txID *chainhash.Hash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	_, ok := mp.transactionsPool.allTransactions[*txID]
	return ok
}

// IsOrphanInPool returns whether or not the passed transaction already
// exists in the orphan pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) IsOrphanInPool(txID *chainhash.Hash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.orphansPool.isOrphanInPool(txID)
}

// FetchTransaction returns the requested transaction from the transaction
// pool. This only fetches from the main transaction pool and does not
// include orphans.
//
// This function is safe for concurrent access.
func (mp *Mempool) FetchTransaction(txID *chainhash.Hash) (*util.Tx, bool) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.transactionsPool.getTransaction(txID)
}

// Count returns the number of transactions in the main pool. It does not
// include the orphan pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) Count() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.transactionsPool.transactionCount()
}

// OrphanCount returns the number of transactions in the orphan pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) OrphanCount() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return len(mp.orphansPool.allOrphans)
}

// TxIDs returns a slice of IDs for all of the transactions in the memory
// pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) TxIDs() []*chainhash.Hash {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	ids := make([]*chainhash.Hash, 0, len(mp.transactionsPool.allTransactions))
	for txID := range mp.transactionsPool.allTransactions {
		txIDCopy := txID
		ids = append(ids, &txIDCopy)
	}
	return ids
}

// MiningDescs returns a slice of mining descriptors for all the transactions
// in the pool.
//
// This is part of the mining.TxSource interface implementation and is safe
// for concurrent access as required by the interface contract.
func (mp *Mempool) MiningDescs() []*mining.TxDesc {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	descs := make([]*mining.TxDesc, 0, len(mp.transactionsPool.allTransactions))
	for _, transaction := range mp.transactionsPool.allTransactions {
		descs = append(descs, &mining.TxDesc{
			Tx:               transaction.tx,
			Added:            transaction.added,
			Height:           transaction.addedAtHeight,
			Fee:              transaction.fee,
			FeePerKB:         transaction.feePerKB(),
			StartingPriority: transaction.startingPriority,
		})
	}
	return descs
}

// LastUpdated returns the last time a transaction was added to or removed from
// the main pool. It does not include the orphan pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) LastUpdated() time.Time {
	return time.Unix(atomic.LoadInt64(&mp.lastUpdated), 0)
}

// markUpdated records a change of the main pool and refreshes the pool
// metrics.
//
// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) markUpdated() {
	atomic.StoreInt64(&mp.lastUpdated, time.Now().Unix())
	prometheusMempoolSize.Set(float64(mp.transactionsPool.transactionCount()))
	prometheusMempoolOrphans.Set(float64(len(mp.orphansPool.allOrphans)))
}
