package mempool

import (
	"fmt"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

type orphansPool struct {
	mempool                   *Mempool
	allOrphans                idToOrphan
	orphansByPreviousOutpoint previousOutpointToOrphans
	nextExpireScan            time.Time
}

func newOrphansPool(mp *Mempool) *orphansPool {
	return &orphansPool{
		mempool:                   mp,
		allOrphans:                idToOrphan{},
		orphansByPreviousOutpoint: previousOutpointToOrphans{},
		nextExpireScan:            time.Now().Add(mp.config.OrphanExpireScanInterval),
	}
}

// maybeAddOrphan potentially adds an orphan to the orphan pool.
//
// this function MUST be called with the mempool mutex locked for writes
func (op *orphansPool) maybeAddOrphan(tx *util.Tx) error {
	// Ignore orphan transactions that are too large. This helps avoid
	// a memory exhaustion attack based on sending a lot of really large
	// orphans. In the case there is a valid transaction larger than this,
	// it will ultimately be rebroadcast after the parent transactions
	// have been mined or otherwise received.
	//
	// Note that the number of orphan transactions in the orphan pool is
	// also limited, so this equates to a maximum memory used of
	// mp.config.MaxOrphanTxSize * mp.config.MaxOrphanTxs (which is ~5MB
	// using the default values at the time this comment was written).
	serializedLen := tx.MsgTx().SerializeSize()
	if serializedLen > op.mempool.config.MaxOrphanTxSize {
		str := fmt.Sprintf("orphan transaction size of %d bytes is "+
			"larger than max allowed size of %d bytes",
			serializedLen, op.mempool.config.MaxOrphanTxSize)
		return txRuleError(RejectNonstandard, str)
	}

	op.limitNumOrphans()
	op.addOrphan(tx)
	return nil
}

// limitNumOrphans limits the number of orphan transactions by evicting a
// random orphan if adding a new one would cause it to overflow the max
// allowed.
//
// this function MUST be called with the mempool mutex locked for writes
func (op *orphansPool) limitNumOrphans() {
	// Scan through the orphan pool and remove any expired orphans when it's
	// time. This is done for efficiency so the scan only happens
	// periodically instead of on every orphan added to the pool.
	if now := time.Now(); now.After(op.nextExpireScan) {
		origNumOrphans := len(op.allOrphans)
		for _, orphan := range op.allOrphans {
			if now.After(orphan.expiration) {
				// Remove redeemers too because the missing
				// parents are very unlikely to ever materialize
				// since the orphan has already been around more
				// than long enough for them to be delivered.
				op.removeOrphan(orphan.transactionID(), true)
			}
		}

		// Set next expiration scan to occur after the scan interval.
		op.nextExpireScan = now.Add(op.mempool.config.OrphanExpireScanInterval)

		numOrphans := len(op.allOrphans)
		if numExpired := origNumOrphans - numOrphans; numExpired > 0 {
			log.Debugf("Expired %d orphans (remaining: %d)", numExpired, numOrphans)
		}
	}

	// Nothing to do if adding another orphan will not cause the pool to
	// exceed the limit.
	for len(op.allOrphans)+1 > op.mempool.config.MaxOrphanTxs && len(op.allOrphans) > 0 {
		// Remove a random entry from the map. For most compilers, Go's
		// range statement iterates starting at a random item although
		// that is not 100% guaranteed by the spec. The iteration order
		// is not important here because an adversary would have to be
		// able to pull off preimage attacks on the hashing function in
		// order to target eviction of specific entries anyways.
		//
		// Don't remove redeemers in the case of a random eviction since
		// it is quite possible it might be needed again shortly.
		op.removeOrphan(op.randomOrphan().transactionID(), false)
	}
}

// this function MUST be called with the mempool mutex locked for writes
func (op *orphansPool) addOrphan(tx *util.Tx) {
	// Nothing to do if no orphans are allowed.
	if op.mempool.config.MaxOrphanTxs <= 0 {
		return
	}

	orphan := &orphanTransaction{
		tx:         tx,
		expiration: time.Now().Add(op.mempool.config.OrphanTTL),
	}
	op.allOrphans[*tx.ID()] = orphan
	for _, txIn := range tx.MsgTx().TxIn {
		if _, ok := op.orphansByPreviousOutpoint[txIn.PreviousOutpoint]; !ok {
			op.orphansByPreviousOutpoint[txIn.PreviousOutpoint] = idToOrphan{}
		}
		op.orphansByPreviousOutpoint[txIn.PreviousOutpoint][*tx.ID()] = orphan
	}

	log.Debugf("Stored orphan transaction %s (total: %d)", tx.ID(), len(op.allOrphans))
}

// this function MUST be called with the mempool mutex locked for writes
func (op *orphansPool) removeOrphan(txID *chainhash.Hash, removeRedeemers bool) {
	orphan, ok := op.allOrphans[*txID]
	if !ok {
		return
	}

	delete(op.allOrphans, *txID)

	for _, txIn := range orphan.tx.MsgTx().TxIn {
		orphans, ok := op.orphansByPreviousOutpoint[txIn.PreviousOutpoint]
		if !ok {
			continue
		}
		delete(orphans, *txID)
		if len(orphans) == 0 {
			delete(op.orphansByPreviousOutpoint, txIn.PreviousOutpoint)
		}
	}

	if removeRedeemers {
		op.removeRedeemersOf(orphan.tx)
	}
}

// removeRedeemersOf removes every orphan spending an output of tx,
// recursively.
//
// this function MUST be called with the mempool mutex locked for writes
func (op *orphansPool) removeRedeemersOf(tx *util.Tx) {
	outpoint := appmessage.Outpoint{TxID: *tx.ID()}
	for i := range tx.MsgTx().TxOut {
		outpoint.Index = uint32(i)
		op.removeOrphansSpending(outpoint)
	}
}

// removeOrphansSpending removes every orphan spending outpoint, together
// with their redeemers.
//
// this function MUST be called with the mempool mutex locked for writes
func (op *orphansPool) removeOrphansSpending(outpoint appmessage.Outpoint) {
	for _, orphan := range op.orphansByPreviousOutpoint[outpoint] {
		// Recursive call is bound by size of orphan pool (which is very small)
		op.removeOrphan(orphan.transactionID(), true)
	}
}

// orphansSpending returns the orphans spending an output of tx.
//
// this function MUST be called with the mempool mutex locked for reads
func (op *orphansPool) orphansSpending(tx *util.Tx) []*orphanTransaction {
	var redeemers []*orphanTransaction
	seen := make(map[chainhash.Hash]struct{})
	outpoint := appmessage.Outpoint{TxID: *tx.ID()}
	for i := range tx.MsgTx().TxOut {
		outpoint.Index = uint32(i)
		for _, orphan := range op.orphansByPreviousOutpoint[outpoint] {
			if _, ok := seen[*orphan.transactionID()]; ok {
				continue
			}
			seen[*orphan.transactionID()] = struct{}{}
			redeemers = append(redeemers, orphan)
		}
	}
	return redeemers
}

func (op *orphansPool) isOrphanInPool(txID *chainhash.Hash) bool {
	_, ok := op.allOrphans[*txID]
	return ok
}

func (op *orphansPool) randomOrphan() *orphanTransaction {
	for _, orphan := range op.allOrphans {
		return orphan
	}

	return nil
}
