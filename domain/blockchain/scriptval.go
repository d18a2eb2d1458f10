// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// txValidateItem holds a transaction along with which input to validate and
// the script of the output it spends.
type txValidateItem struct {
	txInIndex int
	txIn      *appmessage.TxIn
	tx        *util.Tx
	pkScript  []byte
}

// validateItems checks every item with evaluator on a bounded number of
// goroutines and returns the first failure.
func validateItems(items []*txValidateItem, evaluator *txscript.Evaluator) error {
	if len(items) == 0 {
		return nil
	}

	maxGoRoutines := runtime.NumCPU() * 3
	if maxGoRoutines > len(items) {
		maxGoRoutines = len(items)
	}

	group, ctx := errgroup.WithContext(context.Background())
	itemChan := make(chan *txValidateItem)
	group.Go(func() error {
		defer close(itemChan)
		for _, item := range items {
			select {
			case itemChan <- item:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := 0; i < maxGoRoutines; i++ {
		group.Go(func() error {
			for item := range itemChan {
				err := evaluator.Satisfies(item.pkScript, item.txIn.SignatureScript,
					item.tx.MsgTx(), item.txInIndex)
				if err != nil {
					str := fmt.Sprintf("failed to validate input "+
						"%s:%d which references output %s - "+
						"%s (input script bytes %x, prev output "+
						"script bytes %x)", item.tx.ID(), item.txInIndex,
						item.txIn.PreviousOutpoint, err,
						item.txIn.SignatureScript, item.pkScript)
					return ruleError(ErrScriptValidation, str)
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// ValidateTransactionScripts validates the scripts for the passed transaction
// against the outputs it spends in view. Inputs are checked in parallel.
func ValidateTransactionScripts(tx *util.Tx, view *UxoViewpoint, evaluator *txscript.Evaluator) error {
	if tx.IsCoinBase() {
		return nil
	}

	// Resolve the spent scripts up front since the view is not safe for
	// concurrent access.
	items := make([]*txValidateItem, 0, len(tx.MsgTx().TxIn))
	for txInIdx, txIn := range tx.MsgTx().TxIn {
		lookup, err := view.LookupOutput(txIn.PreviousOutpoint)
		if err != nil {
			return err
		}
		if lookup.Status == OutputUnknown {
			return errors.WithStack(AssertError(fmt.Sprintf("unable to find "+
				"output %s referenced from transaction %s:%d",
				txIn.PreviousOutpoint, tx.ID(), txInIdx)))
		}
		items = append(items, &txValidateItem{
			txInIndex: txInIdx,
			txIn:      txIn,
			tx:        tx,
			pkScript:  lookup.Output.PkScript,
		})
	}

	return validateItems(items, evaluator)
}
