package mempool

import (
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

type idToTransaction map[chainhash.Hash]*mempoolTransaction
type outpointToTransaction map[appmessage.Outpoint]*mempoolTransaction
type idToOrphan map[chainhash.Hash]*orphanTransaction
type previousOutpointToOrphans map[appmessage.Outpoint]idToOrphan

type mempoolTransaction struct {
	tx *util.Tx

	// parentsInPool maps each input spending an output of another pool
	// transaction to that transaction.
	parentsInPool outpointToTransaction

	fee              uint64
	size             int
	addedAtHeight    uint64
	added            time.Time
	startingPriority float64
}

func (mt *mempoolTransaction) transactionID() *chainhash.Hash {
	return mt.tx.ID()
}

func (mt *mempoolTransaction) feePerKB() uint64 {
	return mt.fee * 1000 / uint64(mt.size)
}

type orphanTransaction struct {
	tx         *util.Tx
	expiration time.Time
}

func (ot *orphanTransaction) transactionID() *chainhash.Hash {
	return ot.tx.ID()
}

// AcceptResult describes the outcome of a transaction offered to the
// mempool.
type AcceptResult struct {
	// IsOrphan is set when the transaction spends outputs that are
	// neither on the best chain nor in the pool. It was then queued in
	// the orphan pool and MissingOutpoints lists the unknown references.
	IsOrphan         bool
	MissingOutpoints []appmessage.Outpoint

	// AcceptedTransactions lists the transactions that entered the pool:
	// the offered one followed by every orphan it unlocked.
	AcceptedTransactions []*util.Tx
}
