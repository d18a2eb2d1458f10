package mempool

import (
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/util"
)

// HandleChainChanged updates the pool after the best chain changed:
// transactions confirmed by the connected blocks leave the pool, the
// transactions of the disconnected blocks are offered again, pool
// transactions spending outputs that stopped being spendable are evicted
// with their redeemers, and orphans waiting for the confirmed transactions
// are processed. It returns the transactions that entered the pool.
//
// This function is safe for concurrent access.
func (mp *Mempool) HandleChainChanged(data *blockchain.ChainChangedNotificationData) []*util.Tx {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	connected := make([]*util.Tx, 0, len(data.ConnectedTransactions))
	for _, msgTx := range data.ConnectedTransactions {
		tx := util.NewTx(msgTx)
		connected = append(connected, tx)
		if tx.IsCoinBase() {
			continue
		}
		mp.removeTransaction(tx.ID(), false)
	}

	var acceptedTxs []*util.Tx
	for _, msgTx := range data.DisconnectedTransactions {
		tx := util.NewTx(msgTx)
		result, err := mp.validateAndInsertTransaction(tx, true, false)
		if err != nil {
			log.Debugf("Transaction %s of a disconnected block was not "+
				"returned to the pool: %s", tx.ID(), err)
			continue
		}
		acceptedTxs = append(acceptedTxs, result.AcceptedTransactions...)
	}

	for _, change := range data.OutputChanges {
		if change.Kind != blockchain.NewlySpent {
			continue
		}
		// An output of a transaction that returned to the pool is still
		// spendable by pool transactions.
		if _, ok := mp.transactionsPool.allTransactions[change.Outpoint.TxID]; ok {
			continue
		}
		mp.removeConflicting(change.Outpoint)
	}

	for _, tx := range connected {
		acceptedTxs = append(acceptedTxs, mp.processOrphans(tx)...)
	}

	mp.markUpdated()
	return acceptedTxs
}
