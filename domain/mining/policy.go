// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/util"
)

const (
	// DefaultBlockMaxSize is the default maximum size of a generated
	// block template.
	DefaultBlockMaxSize = 500000

	// MinHighPriority is the minimum priority value that allows a
	// transaction to be considered high priority.
	MinHighPriority = util.SatoshiPerCoin * 144.0 / 250

	// UnminedHeight is the height used for the "block" height field of the
	// contextual transaction information provided in a transaction view
	// for transactions that are not yet in a block.
	UnminedHeight = 0x7fffffff
)

// Policy houses the policy (configuration parameters) which is used to control
// the generation of block templates. See the documentation for
// NewBlockTemplate for more details on each of these parameters are used.
type Policy struct {
	// BlockMaxSize is the maximum block size to be used when generating a
	// block template.
	BlockMaxSize uint32
}

// calcInputValueAge is a helper function used to calculate the input age of
// a transaction. The input age for a txin is the number of confirmations
// since the referenced txout multiplied by its output value. The total input
// age is the sum of this value for each txin. Any inputs to the transaction
// which are currently in the pool and hence not mined into a block yet,
// contribute no additional input age to the transaction.
func calcInputValueAge(tx *util.Tx, view *blockchain.UxoViewpoint, nextBlockHeight uint64) float64 {
	var totalInputAge float64
	for _, txIn := range tx.MsgTx().TxIn {
		lookup, err := view.LookupOutput(txIn.PreviousOutpoint)
		if err != nil || lookup.Output == nil {
			continue
		}

		// Inputs with dependencies currently in the pool have their
		// block height set to a special constant. Their input age
		// should be computed as zero since their parent hasn't made it
		// into a block yet.
		var inputAge uint64
		originHeight := lookup.Entry.BlockHeight
		if originHeight != UnminedHeight && nextBlockHeight > originHeight {
			inputAge = nextBlockHeight - originHeight
		}

		totalInputAge += float64(lookup.Output.Amount) * float64(inputAge)
	}

	return totalInputAge
}

// CalcPriority returns a transaction priority given a transaction and the sum
// of each of its input values multiplied by their age (# of confirmations).
// Thus, the final formula for the priority is:
// sum(inputValue * inputAge) / txSize
func CalcPriority(tx *util.Tx, view *blockchain.UxoViewpoint, nextBlockHeight uint64) float64 {
	txSize := tx.MsgTx().SerializeSize()
	if txSize == 0 {
		return 0.0
	}

	inputValueAge := calcInputValueAge(tx, view, nextBlockHeight)
	return inputValueAge / float64(txSize)
}
