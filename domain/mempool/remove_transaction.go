package mempool

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// RemoveConfirmed removes the passed transaction from the mempool once it
// was included in a main chain block. Pool transactions spending its
// outputs stay in the pool, now spending a confirmed output.
//
// This function is safe for concurrent access.
func (mp *Mempool) RemoveConfirmed(txID *chainhash.Hash) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.removeTransaction(txID, false)
	mp.markUpdated()
}

// RemoveConflicting removes the pool transaction spending outpoint, along
// with every pool and orphan transaction that redeems its outputs. Orphans
// spending outpoint are removed as well.
//
// This function is safe for concurrent access.
func (mp *Mempool) RemoveConflicting(outpoint appmessage.Outpoint) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.removeConflicting(outpoint)
	mp.markUpdated()
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) removeConflicting(outpoint appmessage.Outpoint) {
	if spender, ok := mp.transactionsPool.spentOutpoints[outpoint]; ok {
		log.Debugf("Removing transaction %s which spends %s", spender.transactionID(), outpoint)
		mp.removeTransaction(spender.transactionID(), true)
	}
	mp.orphansPool.removeOrphansSpending(outpoint)
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) removeTransaction(txID *chainhash.Hash, removeRedeemers bool) {
	if mp.orphansPool.isOrphanInPool(txID) {
		mp.orphansPool.removeOrphan(txID, removeRedeemers)
		return
	}

	transaction, ok := mp.transactionsPool.allTransactions[*txID]
	if !ok {
		return
	}

	transactionsToRemove := []*mempoolTransaction{transaction}
	if removeRedeemers {
		transactionsToRemove = append(transactionsToRemove,
			mp.transactionsPool.getRedeemers(transaction)...)
	}

	for _, transactionToRemove := range transactionsToRemove {
		mp.removeTransactionFromSets(transactionToRemove)
		if removeRedeemers {
			mp.orphansPool.removeRedeemersOf(transactionToRemove.tx)
		}
	}
}

// removeTransactionFromSets removes transaction from every pool index and
// detaches the pool transactions spending its outputs from it.
//
// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) removeTransactionFromSets(transaction *mempoolTransaction) {
	tp := mp.transactionsPool
	if _, ok := tp.allTransactions[*transaction.transactionID()]; !ok {
		return
	}
	tp.removeTransaction(transaction)

	outpoint := appmessage.Outpoint{TxID: *transaction.transactionID()}
	for i := range transaction.tx.MsgTx().TxOut {
		outpoint.Index = uint32(i)
		if child, ok := tp.chainedTransactionsByPreviousOutpoint[outpoint]; ok {
			delete(child.parentsInPool, outpoint)
			delete(tp.chainedTransactionsByPreviousOutpoint, outpoint)
		}
	}
}
