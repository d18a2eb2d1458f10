// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// ValidateAndInsertTransaction is the main workhorse for handling insertion
// of new free-standing transactions into the memory pool. It includes
// functionality such as rejecting duplicate transactions, ensuring
// transactions follow all rules, orphan transaction handling, and insertion
// into the memory pool.
//
// If the transaction is an orphan (missing parent transactions), the
// transaction is added to the orphan pool if allowOrphan is set and the
// result lists the missing outpoints. Otherwise it is rejected with
// RejectBadOrphan.
//
// This function is safe for concurrent access.
func (mp *Mempool) ValidateAndInsertTransaction(tx *util.Tx, allowOrphan bool) (*AcceptResult, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log,
		fmt.Sprintf("ValidateAndInsertTransaction %s", tx.ID()))
	defer onEnd()

	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	result, err := mp.validateAndInsertTransaction(tx, allowOrphan, true)
	if err != nil {
		code, _ := ExtractRejectCode(err)
		prometheusMempoolRejected.WithLabelValues(code.String()).Inc()
	}
	return result, err
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) validateAndInsertTransaction(tx *util.Tx, allowOrphan bool,
	rejectDupOrphans bool) (*AcceptResult, error) {

	// Potentially accept the transaction to the memory pool.
	missingOutpoints, accepted, err := mp.maybeAcceptTransaction(tx, rejectDupOrphans)
	if err != nil {
		return nil, err
	}

	if len(missingOutpoints) == 0 {
		// Accept any orphan transactions that depend on this
		// transaction (they may no longer be orphans if all inputs
		// are now available) and repeat for those accepted
		// transactions until there are no more.
		acceptedTransactions := mp.processOrphans(accepted.tx)
		mp.markUpdated()
		return &AcceptResult{
			AcceptedTransactions: append([]*util.Tx{accepted.tx}, acceptedTransactions...),
		}, nil
	}

	// The transaction is an orphan (has inputs missing). Reject
	// it if the flag to allow orphans is not set.
	if !allowOrphan {
		// Only use the first missing parent transaction in
		// the error message.
		//
		// NOTE: RejectBadOrphan is not an accurate rejection code
		// for this case, but it lets the caller tell an orphan
		// apart from an invalid transaction.
		str := fmt.Sprintf("orphan transaction %s references "+
			"outputs of unknown or fully-spent "+
			"transaction %s", tx.ID(), missingOutpoints[0].TxID)
		return nil, txRuleError(RejectBadOrphan, str)
	}

	// Potentially add the orphan transaction to the orphan pool.
	err = mp.orphansPool.maybeAddOrphan(tx)
	if err != nil {
		return nil, err
	}
	mp.markUpdated()
	return &AcceptResult{IsOrphan: true, MissingOutpoints: missingOutpoints}, nil
}

// maybeAcceptTransaction is the internal function which implements the
// checks of ValidateAndInsertTransaction. When the transaction spends
// unknown outputs it returns them and leaves the pool untouched.
//
// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) maybeAcceptTransaction(tx *util.Tx, rejectDupOrphans bool) (
	[]appmessage.Outpoint, *mempoolTransaction, error) {

	txID := tx.ID()

	// Don't accept the transaction if it already exists in the pool. This
	// applies to orphan transactions as well when the reject duplicate
	// orphans flag is set. This check is intended to be a quick check to
	// weed out duplicates.
	if _, ok := mp.transactionsPool.allTransactions[*txID]; ok ||
		(rejectDupOrphans && mp.orphansPool.isOrphanInPool(txID)) {

		str := fmt.Sprintf("already have transaction %s", txID)
		return nil, nil, txRuleError(RejectDuplicate, str)
	}

	// Perform preliminary sanity checks on the transaction. This makes
	// use of blockchain which contains the invariant rules for what
	// transactions are allowed into blocks.
	err := blockchain.CheckTransactionSanity(tx)
	if err != nil {
		var chainRuleErr blockchain.RuleError
		if ok := errors.As(err, &chainRuleErr); ok {
			return nil, nil, chainRuleError(chainRuleErr)
		}
		return nil, nil, err
	}

	// A standalone transaction must not be a coinbase transaction.
	if tx.IsCoinBase() {
		str := fmt.Sprintf("transaction %s is an individual coinbase",
			txID)
		return nil, nil, txRuleError(RejectInvalid, str)
	}

	// Get the current height of the main chain. A standalone transaction
	// will be mined into the next block at best, so its height is at
	// least one more than the current height.
	best := mp.chain.BestSnapshot()
	nextBlockHeight := best.Height + 1

	// The transaction may not use any of the same outputs as other
	// transactions already in the pool as that would ultimately result in
	// a double spend. This check is intended to be quick and therefore
	// only detects double spends within the transaction pool itself. The
	// transaction could still be double spending coins from the main chain
	// at this point. There is a more in-depth check that happens later
	// after fetching the referenced transaction inputs from the main chain
	// which examines the actual spend data and prevents double spends.
	err = mp.checkPoolDoubleSpend(tx)
	if err != nil {
		return nil, nil, err
	}

	// Fetch all of the transactions referenced by the inputs to this
	// transaction. This function also attempts to fetch the transaction
	// itself to be used for detecting a duplicate transaction without
	// needing to do a separate lookup.
	view, err := mp.chain.FetchUxoView(tx)
	if err != nil {
		return nil, nil, err
	}
	mp.transactionsPool.addParentEntries(tx, view)

	// Don't allow the transaction if it already exists in the main chain.
	if entry, _ := view.LookupEntry(txID); entry != nil {
		return nil, nil, txRuleError(RejectDuplicate,
			"transaction already exists")
	}

	// Transaction is an orphan if any of the referenced input transactions
	// don't exist. Adding orphans to the orphan pool is not handled by
	// this function, and the caller should use maybeAddOrphan if this
	// behavior is desired.
	var missingOutpoints []appmessage.Outpoint
	for _, txIn := range tx.MsgTx().TxIn {
		entry, err := view.LookupEntry(&txIn.PreviousOutpoint.TxID)
		if err != nil {
			return nil, nil, err
		}
		if entry == nil {
			missingOutpoints = append(missingOutpoints, txIn.PreviousOutpoint)
		}
	}
	if len(missingOutpoints) > 0 {
		return missingOutpoints, nil, nil
	}

	// Don't allow transactions that are not final at the next block.
	if !blockchain.IsFinalizedTransaction(tx, nextBlockHeight, best.MedianTime) {
		str := fmt.Sprintf("transaction %s is not finalized", txID)
		return nil, nil, txRuleError(RejectFinality, str)
	}

	// Don't allow non-standard transactions if the network parameters
	// forbid their acceptance.
	if !mp.config.AcceptNonStd {
		err = checkTransactionStandard(tx, mp.config.MinRelayTxFee)
		if err != nil {
			// Attempt to extract a reject code from the error so
			// it can be retained. When not possible, fall back to
			// a non standard error.
			rejectCode, found := ExtractRejectCode(err)
			if !found {
				rejectCode = RejectNonstandard
			}
			str := fmt.Sprintf("transaction %s is not standard: %s",
				txID, err)
			return nil, nil, txRuleError(rejectCode, str)
		}
	}

	// Perform several checks on the transaction inputs using the invariant
	// rules in blockchain for what transactions are allowed into blocks.
	// Also returns the fees associated with the transaction which will be
	// used later.
	txFee, err := blockchain.CheckTransactionInputs(tx, nextBlockHeight,
		view, mp.config.Params)
	if err != nil {
		var chainRuleErr blockchain.RuleError
		if ok := errors.As(err, &chainRuleErr); ok {
			return nil, nil, chainRuleError(chainRuleErr)
		}
		return nil, nil, err
	}

	// Don't allow transactions with non-standard inputs if the network
	// parameters forbid their acceptance.
	if !mp.config.AcceptNonStd {
		err := checkInputsStandard(tx, view)
		if err != nil {
			// Attempt to extract a reject code from the error so
			// it can be retained. When not possible, fall back to
			// a non standard error.
			rejectCode, found := ExtractRejectCode(err)
			if !found {
				rejectCode = RejectNonstandard
			}
			str := fmt.Sprintf("transaction %s has a non-standard "+
				"input: %s", txID, err)
			return nil, nil, txRuleError(rejectCode, str)
		}
	}

	// Don't allow transactions with an excessive number of signature
	// operations which would result in making it impossible to mine.
	numSigOps := blockchain.CountSigOps(tx)
	if numSigOps > maxStandardSigOpsPerTx {
		str := fmt.Sprintf("transaction %s has too many sigops: %d > %d",
			txID, numSigOps, maxStandardSigOpsPerTx)
		return nil, nil, txRuleError(RejectNonstandard, str)
	}

	// Don't allow transactions with fees too low to get into a mined block.
	//
	// A transaction smaller than freeTxSizeLimit whose inputs are old and
	// valuable enough may still be accepted without paying the minimum
	// fee.
	serializedSize := int64(tx.MsgTx().SerializeSize())
	minFee := uint64(calcMinRequiredTxRelayFee(serializedSize, mp.config.MinRelayTxFee))
	priority := mining.CalcPriority(tx, view, nextBlockHeight)
	if txFee < minFee {
		if serializedSize >= freeTxSizeLimit || mp.config.DisableRelayPriority {
			str := fmt.Sprintf("transaction %s has %d fees which is under "+
				"the required amount of %d", txID, txFee, minFee)
			return nil, nil, txRuleError(RejectInsufficientFee, str)
		}
		if !AllowFree(priority) {
			str := fmt.Sprintf("transaction %s has insufficient "+
				"priority (%g <= %g)", txID, priority, mining.MinHighPriority)
			return nil, nil, txRuleError(RejectInsufficientFee, str)
		}
	}

	// Verify crypto signatures for each input and reject the transaction if
	// any don't verify.
	err = blockchain.ValidateTransactionScripts(tx, view, mp.chain.Evaluator())
	if err != nil {
		var chainRuleErr blockchain.RuleError
		if ok := errors.As(err, &chainRuleErr); ok {
			return nil, nil, chainRuleError(chainRuleErr)
		}
		return nil, nil, err
	}

	// Add to transaction pool.
	transaction := &mempoolTransaction{
		tx:               tx,
		parentsInPool:    mp.transactionsPool.getParentTransactionsInPool(tx),
		fee:              txFee,
		size:             int(serializedSize),
		addedAtHeight:    best.Height,
		added:            time.Now(),
		startingPriority: priority,
	}
	mp.transactionsPool.addTransaction(transaction)

	log.Debugf("Accepted transaction %s (pool size: %d)", txID,
		mp.transactionsPool.transactionCount())

	return nil, transaction, nil
}

// checkPoolDoubleSpend checks whether or not the passed transaction is
// attempting to spend coins already spent by other transactions in the pool.
// Note it does not check for double spends against transactions already in
// the main chain.
//
// this function MUST be called with the mempool mutex locked for reads
func (mp *Mempool) checkPoolDoubleSpend(tx *util.Tx) error {
	for _, txIn := range tx.MsgTx().TxIn {
		if spender, exists := mp.transactionsPool.spentOutpoints[txIn.PreviousOutpoint]; exists {
			str := fmt.Sprintf("output %s already spent by "+
				"transaction %s in the memory pool",
				txIn.PreviousOutpoint, spender.transactionID())
			return txRuleError(RejectDuplicate, str)
		}
	}

	return nil
}

// processOrphans determines if there are any orphans which depend on the
// passed transaction and potentially accepts them to the memory pool. It
// repeats the process for the newly accepted transactions (to detect
// further orphans which may no longer be orphans) until there are no more.
//
// It returns a slice of transactions added to the mempool. A nil slice
// means no transactions were moved from the orphan pool to the mempool.
//
// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) processOrphans(acceptedTx *util.Tx) []*util.Tx {
	var acceptedTxns []*util.Tx

	// Start with processing at least the passed transaction.
	processList := []*util.Tx{acceptedTx}
	for len(processList) > 0 {
		// Pop the transaction to process from the front of the list.
		processItem := processList[0]
		processList = processList[1:]

		for _, orphan := range mp.orphansPool.orphansSpending(processItem) {
			// Potentially accept an orphan into the tx pool.
			tx := orphan.tx
			if !mp.orphansPool.isOrphanInPool(tx.ID()) {
				continue
			}
			missing, accepted, err := mp.maybeAcceptTransaction(tx, false)
			if err != nil {
				// The orphan is now invalid, so there is no way
				// any other orphans which redeem any of its
				// outputs can be accepted. Remove them.
				log.Debugf("Removing invalid orphan transaction %s: %s",
					tx.ID(), err)
				mp.orphansPool.removeOrphan(tx.ID(), true)
				continue
			}

			// Transaction is still an orphan. Try the next orphan
			// which redeems this output.
			if len(missing) > 0 {
				continue
			}

			// Transaction was accepted into the main pool.
			//
			// Add it to the list of accepted transactions that are
			// no longer orphans, remove it from the orphan pool, and
			// add it to the list of transactions to process so any
			// orphans that depend on it are handled too.
			acceptedTxns = append(acceptedTxns, accepted.tx)
			mp.orphansPool.removeOrphan(tx.ID(), false)
			processList = append(processList, accepted.tx)
		}
	}

	// Recursively remove any orphans that also redeem any outputs redeemed
	// by the accepted transactions since those are now definitive double
	// spends.
	mp.removeOrphanDoubleSpends(acceptedTx)
	for _, tx := range acceptedTxns {
		mp.removeOrphanDoubleSpends(tx)
	}

	return acceptedTxns
}

// removeOrphanDoubleSpends removes all orphans which spend outputs spent by the
// passed transaction from the orphan pool. Removing those orphans then leads
// to removing all orphans which rely on them, recursively. This is necessary
// when a transaction is added to the main pool because it may spend outputs
// that orphans also spend.
//
// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) removeOrphanDoubleSpends(tx *util.Tx) {
	for _, txIn := range tx.MsgTx().TxIn {
		mp.orphansPool.removeOrphansSpending(txIn.PreviousOutpoint)
	}
}
