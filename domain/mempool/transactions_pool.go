package mempool

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

type transactionsPool struct {
	allTransactions idToTransaction

	// spentOutpoints maps every outpoint spent by a pool transaction to
	// its spender.
	spentOutpoints outpointToTransaction

	// chainedTransactionsByPreviousOutpoint maps the outputs of pool
	// transactions to the pool transactions spending them.
	chainedTransactionsByPreviousOutpoint outpointToTransaction
}

func newTransactionsPool() *transactionsPool {
	return &transactionsPool{
		allTransactions:                       idToTransaction{},
		spentOutpoints:                        outpointToTransaction{},
		chainedTransactionsByPreviousOutpoint: outpointToTransaction{},
	}
}

// this function MUST be called with the mempool mutex locked for writes
func (tp *transactionsPool) addTransaction(transaction *mempoolTransaction) {
	txID := *transaction.transactionID()
	tp.allTransactions[txID] = transaction

	for _, txIn := range transaction.tx.MsgTx().TxIn {
		tp.spentOutpoints[txIn.PreviousOutpoint] = transaction
	}
	for outpoint := range transaction.parentsInPool {
		tp.chainedTransactionsByPreviousOutpoint[outpoint] = transaction
	}

	// Pool transactions may already spend the outputs of this one, as
	// happens when a disconnected transaction returns to the pool.
	outpoint := appmessage.Outpoint{TxID: txID}
	for i := range transaction.tx.MsgTx().TxOut {
		outpoint.Index = uint32(i)
		child, ok := tp.spentOutpoints[outpoint]
		if !ok {
			continue
		}
		child.parentsInPool[outpoint] = transaction
		tp.chainedTransactionsByPreviousOutpoint[outpoint] = child
	}
}

// this function MUST be called with the mempool mutex locked for writes
func (tp *transactionsPool) removeTransaction(transaction *mempoolTransaction) {
	delete(tp.allTransactions, *transaction.transactionID())

	for _, txIn := range transaction.tx.MsgTx().TxIn {
		delete(tp.spentOutpoints, txIn.PreviousOutpoint)
	}
	for outpoint := range transaction.parentsInPool {
		delete(tp.chainedTransactionsByPreviousOutpoint, outpoint)
	}
}

// this function MUST be called with the mempool mutex locked for reads
func (tp *transactionsPool) getParentTransactionsInPool(tx *util.Tx) outpointToTransaction {
	parentsTransactionsInPool := outpointToTransaction{}

	for _, txIn := range tx.MsgTx().TxIn {
		if transaction, ok := tp.allTransactions[txIn.PreviousOutpoint.TxID]; ok {
			parentsTransactionsInPool[txIn.PreviousOutpoint] = transaction
		}
	}

	return parentsTransactionsInPool
}

// addParentEntries seeds view with an entry for every pool transaction tx
// spends from, so the view resolves outputs of the chain and of the pool
// alike. Pool outputs carry mining.UnminedHeight as their height.
//
// this function MUST be called with the mempool mutex locked for reads
func (tp *transactionsPool) addParentEntries(tx *util.Tx, view *blockchain.UxoViewpoint) {
	for _, txIn := range tx.MsgTx().TxIn {
		parentID := txIn.PreviousOutpoint.TxID
		parent, ok := tp.allTransactions[parentID]
		if !ok {
			continue
		}
		outputs := make([]*blockchain.UxoOutput, len(parent.tx.MsgTx().TxOut))
		for i, txOut := range parent.tx.MsgTx().TxOut {
			outputs[i] = &blockchain.UxoOutput{Amount: txOut.Value, PkScript: txOut.PkScript}
		}
		view.AddEntry(&parentID, &blockchain.UxoEntry{
			BlockHeight: mining.UnminedHeight,
			Outputs:     outputs,
		})
	}
}

// this function MUST be called with the mempool mutex locked for reads
func (tp *transactionsPool) getRedeemers(transaction *mempoolTransaction) []*mempoolTransaction {
	queue := []*mempoolTransaction{transaction}
	redeemers := []*mempoolTransaction{}
	for len(queue) > 0 {
		var current *mempoolTransaction
		current, queue = queue[0], queue[1:]

		outpoint := appmessage.Outpoint{TxID: *current.transactionID()}
		for i := range current.tx.MsgTx().TxOut {
			outpoint.Index = uint32(i)
			if redeemerTransaction, ok := tp.chainedTransactionsByPreviousOutpoint[outpoint]; ok {
				queue = append(queue, redeemerTransaction)
				redeemers = append(redeemers, redeemerTransaction)
			}
		}
	}
	return redeemers
}

func (tp *transactionsPool) getTransaction(txID *chainhash.Hash) (*util.Tx, bool) {
	if transaction, ok := tp.allTransactions[*txID]; ok {
		return transaction.tx, true
	}
	return nil, false
}

func (tp *transactionsPool) transactionCount() int {
	return len(tp.allTransactions)
}
