package blockchain

import (
	"fmt"

	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// blockConnection is the result of connecting one block to a view.
type blockConnection struct {
	node  *blockNode
	block *util.Block
	fees  uint64
}

// txLocations returns the location of every transaction of block, which is
// stored at blockLocation.
func txLocations(block *util.Block, blockLocation database.StoreLocation) ([]TxLocation, error) {
	txLocs, err := block.TxLoc()
	if err != nil {
		return nil, err
	}
	locations := make([]TxLocation, len(txLocs))
	for i, txLoc := range txLocs {
		locations[i] = TxLocation{
			BlockHash:     *block.Hash(),
			BlockLocation: blockLocation,
			TxOffset:      uint32(txLoc.TxStart),
			TxLength:      uint32(txLoc.TxLen),
		}
	}
	return locations, nil
}

// connectTransaction spends the inputs of an already validated transaction
// and indexes its outputs.
func connectTransaction(view *UxoViewpoint, tx *util.Tx, location TxLocation, height uint64) error {
	if !tx.IsCoinBase() {
		for _, txIn := range tx.MsgTx().TxIn {
			err := view.MarkSpent(txIn.PreviousOutpoint, location)
			if err != nil {
				return err
			}
		}
	}
	return view.Insert(tx, location, height, tx.IsCoinBase())
}

// disconnectTransaction is the exact inverse of connectTransaction.
func disconnectTransaction(view *UxoViewpoint, tx *util.Tx) error {
	err := view.Remove(tx.ID())
	if err != nil {
		return err
	}
	if tx.IsCoinBase() {
		return nil
	}
	txIns := tx.MsgTx().TxIn
	for i := len(txIns) - 1; i >= 0; i-- {
		err := view.MarkUnspent(txIns[i].PreviousOutpoint)
		if err != nil {
			return err
		}
	}
	return nil
}

// connectBlock applies the transactions of block, in order, to view, as
// the child of the current view tip at node.height. Earlier transactions of
// the block are visible to later ones through the view. Connecting is
// all-or-nothing: when any check fails, the transactions already applied
// are disconnected again before the error is returned.
//
// This function MUST be called with the chain state lock held.
func (bc *BlockChain) connectBlock(node *blockNode, block *util.Block,
	view *UxoViewpoint) (*blockConnection, error) {

	transactions := block.Transactions()
	locations, err := txLocations(block, node.location)
	if err != nil {
		return nil, err
	}

	// A transaction may not reuse the id of an indexed transaction.
	for _, tx := range transactions {
		entry, err := view.LookupEntry(tx.ID())
		if err != nil {
			return nil, err
		}
		if entry != nil {
			str := fmt.Sprintf("tried to overwrite transaction %s "+
				"at block height %d that is already indexed",
				tx.ID(), entry.BlockHeight)
			return nil, ruleError(ErrOverwriteTx, str)
		}
	}

	applied := make([]*util.Tx, 0, len(transactions))
	abort := func(cause error) (*blockConnection, error) {
		for i := len(applied) - 1; i >= 0; i-- {
			err := disconnectTransaction(view, applied[i])
			if err != nil {
				return nil, errors.Wrapf(err, "failed to undo transaction %s "+
					"while aborting the connection of block %s: %s",
					applied[i].ID(), node.hash, cause)
			}
		}
		return nil, cause
	}

	var totalFees uint64
	var scriptItems []*txValidateItem
	for i, tx := range transactions {
		if !tx.IsCoinBase() {
			fee, err := CheckTransactionInputs(tx, node.height, view, bc.params)
			if err != nil {
				return abort(err)
			}

			// Sum the total fees and ensure we don't overflow the
			// accumulator.
			lastTotalFees := totalFees
			totalFees += fee
			if totalFees < lastTotalFees {
				return abort(ruleError(ErrBadFees, "total fees for block "+
					"overflows accumulator"))
			}

			for txInIndex, txIn := range tx.MsgTx().TxIn {
				lookup, err := view.LookupOutput(txIn.PreviousOutpoint)
				if err != nil {
					return abort(err)
				}
				scriptItems = append(scriptItems, &txValidateItem{
					txInIndex: txInIndex,
					txIn:      txIn,
					tx:        tx,
					pkScript:  lookup.Output.PkScript,
				})
			}
		}

		err := connectTransaction(view, tx, locations[i], node.height)
		if err != nil {
			return abort(err)
		}
		applied = append(applied, tx)
	}

	// The total output values of the coinbase transaction must not exceed
	// the expected subsidy value plus total transaction fees gained from
	// mining the block. Anything below that is destroyed.
	var totalSatoshiOut uint64
	for _, txOut := range transactions[0].MsgTx().TxOut {
		totalSatoshiOut += txOut.Value
	}
	expectedSatoshiOut := CalcBlockSubsidy(node.height, bc.params) + totalFees
	if totalSatoshiOut > expectedSatoshiOut {
		str := fmt.Sprintf("coinbase transaction for block pays %d "+
			"which is more than expected value of %d",
			totalSatoshiOut, expectedSatoshiOut)
		return abort(ruleError(ErrBadCoinbaseValue, str))
	}

	// Scripts are the most expensive check, so they run last.
	if !bc.derivedCache.has(block.Hash(), derivedScriptsVerified) {
		err := validateItems(scriptItems, bc.evaluator)
		if err != nil {
			return abort(err)
		}
		bc.derivedCache.set(block.Hash(), derivedScriptsVerified)
	}

	return &blockConnection{node: node, block: block, fees: totalFees}, nil
}

// disconnectBlock undoes the transactions of block on view in reverse
// order. It is the exact inverse of connectBlock, so any failure means the
// view does not describe the chain it is supposed to and is returned as an
// AssertError.
//
// This function MUST be called with the chain state lock held.
func (bc *BlockChain) disconnectBlock(node *blockNode, block *util.Block, view *UxoViewpoint) error {
	transactions := block.Transactions()
	for i := len(transactions) - 1; i >= 0; i-- {
		err := disconnectTransaction(view, transactions[i])
		if err != nil {
			return errors.WithStack(AssertError(fmt.Sprintf(
				"failed to disconnect transaction %s of block %s: %s",
				transactions[i].ID(), node.hash, err)))
		}
	}
	return nil
}
