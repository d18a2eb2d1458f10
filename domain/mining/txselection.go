package mining

import (
	"bytes"
	"sort"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// blockHeaderOverhead is the max number of bytes it takes to serialize a
// block header and max possible transaction count.
const blockHeaderOverhead = appmessage.BlockHeaderLen + appmessage.MaxVarIntPayload

type candidateTx struct {
	txDesc    *TxDesc
	txSize    uint32
	numSigOps int64

	// parents holds the ids of the source pool transactions this
	// transaction spends from.
	parents map[chainhash.Hash]struct{}
}

type txsForBlockTemplate struct {
	selectedTxs   []*util.Tx
	txFees        []uint64
	txSigOpCounts []int64
	blockSize     uint32
	totalFees     uint64
	blockSigOps   int64
}

// selectTxs chooses the transactions of a block template. The algorithm is
// as follows:
// 1. Every source transaction that is final at the next height and whose
//    inputs are unspent on the best chain or created by another source
//    transaction becomes a candidate.
// 2. Candidates are sorted by fee per kilobyte, highest first, then by
//    transaction id.
// 3. The first candidate in that order whose parents were all selected and
//    which fits the size and signature operation limits is selected, and
//    the scan starts over. A candidate which does not fit is dropped
//    together with every candidate depending on it.
// 4. Selection stops when a full scan selects nothing.
func (g *BlkTmplGenerator) selectTxs(coinbaseTx *util.Tx, nextBlockHeight uint64,
	timestamp time.Time) (*txsForBlockTemplate, error) {

	sourceTxns := g.txSource.MiningDescs()

	// Create the result object and initialize all the slices to have
	// the max amount of txs, which are the source tx + coinbase.
	// The result object holds the fees and number of signature operations
	// for each of the selected transactions and adds an entry for the
	// coinbase. This allows the code below to simply append details about
	// a transaction as it is selected for inclusion in the final block.
	result := &txsForBlockTemplate{
		selectedTxs:   make([]*util.Tx, 0, len(sourceTxns)+1),
		txFees:        make([]uint64, 0, len(sourceTxns)+1),
		txSigOpCounts: make([]int64, 0, len(sourceTxns)+1),
	}

	// Add the coinbase to the result object. Note that since the total fees
	// aren't known yet, we use a dummy value for the coinbase fee which will
	// be updated later.
	numCoinbaseSigOps := int64(blockchain.CountSigOps(coinbaseTx))
	result.selectedTxs = append(result.selectedTxs, coinbaseTx)
	result.blockSize = uint32(blockHeaderOverhead + coinbaseTx.MsgTx().SerializeSize())
	result.blockSigOps = numCoinbaseSigOps
	result.txFees = append(result.txFees, 0) // For coinbase tx
	result.txSigOpCounts = append(result.txSigOpCounts, numCoinbaseSigOps)

	inSource := make(map[chainhash.Hash]struct{}, len(sourceTxns))
	for _, txDesc := range sourceTxns {
		inSource[*txDesc.Tx.ID()] = struct{}{}
	}

	candidateTxs, err := g.collectCandidates(sourceTxns, inSource, nextBlockHeight, timestamp)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidateTxs)

	log.Debugf("Considering %d transactions for inclusion to new block",
		len(candidateTxs))

	selected := make(map[chainhash.Hash]struct{})
	dropped := make(map[chainhash.Hash]struct{})
	spent := make(map[appmessage.Outpoint]struct{})

	for {
		progress := false
		for _, candidate := range candidateTxs {
			tx := candidate.txDesc.Tx
			txID := *tx.ID()
			if _, ok := selected[txID]; ok {
				continue
			}
			if _, ok := dropped[txID]; ok {
				continue
			}
			if !parentsSelected(candidate, selected) {
				if hasDroppedParent(candidate, dropped) {
					log.Tracef("Skipping tx %s since a transaction it "+
						"depends on was skipped", txID)
					dropped[txID] = struct{}{}
				}
				continue
			}

			// Enforce maximum block size. Also check for overflow.
			blockPlusTxSize := result.blockSize + candidate.txSize
			if blockPlusTxSize < result.blockSize ||
				blockPlusTxSize > g.policy.BlockMaxSize {

				log.Tracef("Skipping tx %s because it would exceed "+
					"the max block size", txID)
				dropped[txID] = struct{}{}
				continue
			}

			// Enforce maximum signature operations per block. Also check
			// for overflow.
			blockSigOps := result.blockSigOps + candidate.numSigOps
			if blockSigOps < result.blockSigOps ||
				blockSigOps > blockchain.MaxSigOpsPerBlock {

				log.Tracef("Skipping tx %s because it would exceed "+
					"the maximum sigops per block", txID)
				dropped[txID] = struct{}{}
				continue
			}

			if spendsSpent(tx, spent) {
				log.Tracef("Skipping tx %s because it double spends "+
					"an output of a selected transaction", txID)
				dropped[txID] = struct{}{}
				continue
			}
			for _, txIn := range tx.MsgTx().TxIn {
				spent[txIn.PreviousOutpoint] = struct{}{}
			}

			// Add the transaction to the result, increment counters, and
			// save the fees and signature operation counts to the result.
			result.selectedTxs = append(result.selectedTxs, tx)
			result.blockSize = blockPlusTxSize
			result.blockSigOps = blockSigOps
			result.totalFees += candidate.txDesc.Fee
			result.txFees = append(result.txFees, candidate.txDesc.Fee)
			result.txSigOpCounts = append(result.txSigOpCounts, candidate.numSigOps)
			selected[txID] = struct{}{}

			log.Tracef("Adding tx %s (feePerKB %d)", txID, candidate.txDesc.FeePerKB)

			// Start over so a child unlocked by this transaction
			// competes with every remaining candidate.
			progress = true
			break
		}
		if !progress {
			break
		}
	}

	return result, nil
}

// collectCandidates returns the source transactions that may be included in
// a block at nextBlockHeight, excluding those that will certainly not be
// selected.
func (g *BlkTmplGenerator) collectCandidates(sourceTxns []*TxDesc,
	inSource map[chainhash.Hash]struct{}, nextBlockHeight uint64,
	timestamp time.Time) ([]*candidateTx, error) {

	candidateTxs := make([]*candidateTx, 0, len(sourceTxns))
	for _, txDesc := range sourceTxns {
		tx := txDesc.Tx

		// A block can't have more than one coinbase or contain
		// non-finalized transactions.
		if tx.IsCoinBase() {
			log.Tracef("Skipping coinbase tx %s", tx.ID())
			continue
		}
		if !blockchain.IsFinalizedTransaction(tx, nextBlockHeight, timestamp) {
			log.Tracef("Skipping non-finalized tx %s", tx.ID())
			continue
		}

		view, err := g.chain.FetchUxoView(tx)
		if err != nil {
			return nil, err
		}
		parents := make(map[chainhash.Hash]struct{})
		spendable := true
		for _, txIn := range tx.MsgTx().TxIn {
			parentID := txIn.PreviousOutpoint.TxID
			if _, ok := inSource[parentID]; ok {
				parents[parentID] = struct{}{}
				continue
			}
			lookup, err := view.LookupOutput(txIn.PreviousOutpoint)
			if err != nil {
				return nil, err
			}
			if lookup.Status != blockchain.OutputUnspent {
				spendable = false
				break
			}
		}
		if !spendable {
			log.Tracef("Skipping tx %s since it references an output "+
				"that is unknown or already spent", tx.ID())
			continue
		}

		candidateTxs = append(candidateTxs, &candidateTx{
			txDesc:    txDesc,
			txSize:    uint32(tx.MsgTx().SerializeSize()),
			numSigOps: int64(blockchain.CountSigOps(tx)),
			parents:   parents,
		})
	}
	return candidateTxs, nil
}

// sortCandidates orders candidates by fee per kilobyte, highest first, then
// by transaction id.
func sortCandidates(candidateTxs []*candidateTx) {
	sort.Slice(candidateTxs, func(i, j int) bool {
		a, b := candidateTxs[i].txDesc, candidateTxs[j].txDesc
		if a.FeePerKB != b.FeePerKB {
			return a.FeePerKB > b.FeePerKB
		}
		return bytes.Compare(a.Tx.ID()[:], b.Tx.ID()[:]) < 0
	})
}

func parentsSelected(candidate *candidateTx, selected map[chainhash.Hash]struct{}) bool {
	for parentID := range candidate.parents {
		if _, ok := selected[parentID]; !ok {
			return false
		}
	}
	return true
}

func hasDroppedParent(candidate *candidateTx, dropped map[chainhash.Hash]struct{}) bool {
	for parentID := range candidate.parents {
		if _, ok := dropped[parentID]; ok {
			return true
		}
	}
	return false
}

func spendsSpent(tx *util.Tx, spent map[appmessage.Outpoint]struct{}) bool {
	for _, txIn := range tx.MsgTx().TxIn {
		if _, ok := spent[txIn.PreviousOutpoint]; ok {
			return true
		}
	}
	return false
}
