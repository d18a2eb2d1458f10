// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"fmt"

	"github.com/kaspanet/go-muhash"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// OutputStatus is the result kind of UxoViewpoint.LookupOutput.
type OutputStatus int

const (
	// OutputUnknown means no indexed transaction has the referenced output.
	OutputUnknown OutputStatus = iota

	// OutputUnspent means the output exists and may be spent.
	OutputUnspent

	// OutputSpent means the output exists but a connected transaction
	// already spent it.
	OutputSpent
)

var outputStatusStrings = map[OutputStatus]string{
	OutputUnknown: "OutputUnknown",
	OutputUnspent: "OutputUnspent",
	OutputSpent:   "OutputSpent",
}

func (status OutputStatus) String() string {
	if s, ok := outputStatusStrings[status]; ok {
		return s
	}
	return fmt.Sprintf("Unknown OutputStatus (%d)", int(status))
}

// OutputLookup is the result of UxoViewpoint.LookupOutput. Entry and Output
// are nil when the status is OutputUnknown. For a spent output,
// Output.SpentBy locates the spender.
type OutputLookup struct {
	Status OutputStatus
	Entry  *UxoEntry
	Output *UxoOutput
}

// UxoViewpoint represents a view into the set of indexed transactions from
// a specific point of view in the chain. For example, it could be for the
// end of the main chain, some point in the history of the main chain, or
// down a side chain.
//
// Entries are loaded lazily from the durable index the view was created
// over. Modifications stay in the view until commit writes them out, so
// discarding the view abandons them.
type UxoViewpoint struct {
	dbContext  dbaccess.Context
	entries    map[chainhash.Hash]*UxoEntry
	modified   map[chainhash.Hash]struct{}
	commitment *muhash.MuHash
	changes    *changeSet
}

// NewUxoViewpoint returns a new empty view that is not backed by the
// durable index. It is populated with AddEntry.
func NewUxoViewpoint() *UxoViewpoint {
	return newUxoViewpoint(nil, nil)
}

// newUxoViewpoint returns a view over the durable index reachable through
// dbContext. commitment, when not nil, is updated by every mutation.
func newUxoViewpoint(dbContext dbaccess.Context, commitment *muhash.MuHash) *UxoViewpoint {
	return &UxoViewpoint{
		dbContext:  dbContext,
		entries:    make(map[chainhash.Hash]*UxoEntry),
		modified:   make(map[chainhash.Hash]struct{}),
		commitment: commitment,
		changes:    newChangeSet(),
	}
}

// AddEntry seeds the view with the entry of the given transaction. It is
// neither marked modified nor reflected in the commitment.
func (view *UxoViewpoint) AddEntry(txID *chainhash.Hash, entry *UxoEntry) {
	view.entries[*txID] = entry
}

// Entries returns the entries currently held by the view. A nil entry
// records a transaction known to be absent.
func (view *UxoViewpoint) Entries() map[chainhash.Hash]*UxoEntry {
	return view.entries
}

// LookupEntry returns the entry of the given transaction, loading it from
// the durable index when the view does not hold it yet. It returns nil when
// the transaction is not indexed.
func (view *UxoViewpoint) LookupEntry(txID *chainhash.Hash) (*UxoEntry, error) {
	if entry, ok := view.entries[*txID]; ok {
		return entry, nil
	}
	if view.dbContext == nil {
		return nil, nil
	}

	serializedEntry, err := dbaccess.FetchUxoEntry(view.dbContext, txID)
	if dbaccess.IsNotFoundError(err) {
		view.entries[*txID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := deserializeUxoEntry(serializedEntry)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize UXO entry of %s", txID)
	}
	view.entries[*txID] = entry
	return entry, nil
}

// LookupOutput resolves an output reference against the view.
func (view *UxoViewpoint) LookupOutput(outpoint appmessage.Outpoint) (OutputLookup, error) {
	entry, err := view.LookupEntry(&outpoint.TxID)
	if err != nil {
		return OutputLookup{}, err
	}
	if entry == nil || outpoint.Index >= uint32(len(entry.Outputs)) {
		return OutputLookup{Status: OutputUnknown}, nil
	}

	output := entry.Outputs[outpoint.Index]
	status := OutputUnspent
	if output.IsSpent() {
		status = OutputSpent
	}
	return OutputLookup{Status: status, Entry: entry, Output: output}, nil
}

// MarkSpent records spender as the spender of the referenced output. The
// output must exist and be unspent.
func (view *UxoViewpoint) MarkSpent(outpoint appmessage.Outpoint, spender TxLocation) error {
	lookup, err := view.LookupOutput(outpoint)
	if err != nil {
		return err
	}
	if lookup.Status != OutputUnspent {
		return errors.WithStack(AssertError(fmt.Sprintf(
			"cannot mark %s spent: output is %s", outpoint, lookup.Status)))
	}

	view.removeFromCommitment(outpoint, lookup.Entry, lookup.Output)
	lookup.Output.SpentBy = &spender
	view.modified[outpoint.TxID] = struct{}{}
	view.changes.addOutput(outpoint, -1)
	return nil
}

// MarkUnspent is the exact inverse of MarkSpent. The output must exist and
// be spent.
func (view *UxoViewpoint) MarkUnspent(outpoint appmessage.Outpoint) error {
	lookup, err := view.LookupOutput(outpoint)
	if err != nil {
		return err
	}
	if lookup.Status != OutputSpent {
		return errors.WithStack(AssertError(fmt.Sprintf(
			"cannot mark %s unspent: output is %s", outpoint, lookup.Status)))
	}

	lookup.Output.SpentBy = nil
	view.addToCommitment(outpoint, lookup.Entry, lookup.Output)
	view.modified[outpoint.TxID] = struct{}{}
	view.changes.addOutput(outpoint, 1)
	return nil
}

// Insert indexes a newly connected transaction with all of its outputs
// unspent. A transaction that is already indexed cannot be inserted again.
func (view *UxoViewpoint) Insert(tx *util.Tx, location TxLocation, height uint64, isCoinbase bool) error {
	txID := tx.ID()
	existing, err := view.LookupEntry(txID)
	if err != nil {
		return err
	}
	if existing != nil {
		str := fmt.Sprintf("tried to overwrite transaction %s at block height %d "+
			"that is already indexed at height %d", txID, height, existing.BlockHeight)
		return ruleError(ErrOverwriteTx, str)
	}

	entry := newUxoEntry(tx.MsgTx(), location, height, isCoinbase)
	view.entries[*txID] = entry
	view.modified[*txID] = struct{}{}
	view.changes.addTx(*txID, 1)
	for i, output := range entry.Outputs {
		outpoint := appmessage.Outpoint{TxID: *txID, Index: uint32(i)}
		view.addToCommitment(outpoint, entry, output)
		view.changes.addOutput(outpoint, 1)
	}
	return nil
}

// Remove deletes the entry of a transaction being disconnected. Every
// output must be unspent, since its spenders are disconnected first.
func (view *UxoViewpoint) Remove(txID *chainhash.Hash) error {
	entry, err := view.LookupEntry(txID)
	if err != nil {
		return err
	}
	if entry == nil {
		return errors.WithStack(AssertError(fmt.Sprintf(
			"cannot remove transaction %s: it is not indexed", txID)))
	}

	for i, output := range entry.Outputs {
		outpoint := appmessage.Outpoint{TxID: *txID, Index: uint32(i)}
		if output.IsSpent() {
			return errors.WithStack(AssertError(fmt.Sprintf(
				"cannot remove transaction %s: output %s is still spent", txID, outpoint)))
		}
		view.removeFromCommitment(outpoint, entry, output)
		view.changes.addOutput(outpoint, -1)
	}
	view.entries[*txID] = nil
	view.modified[*txID] = struct{}{}
	view.changes.addTx(*txID, -1)
	return nil
}

// commit writes every modified entry to the durable index through dbContext.
func (view *UxoViewpoint) commit(dbContext dbaccess.Context) error {
	for txID := range view.modified {
		txID := txID
		entry := view.entries[txID]
		if entry == nil {
			err := dbaccess.RemoveUxoEntry(dbContext, &txID)
			if err != nil {
				return err
			}
			continue
		}

		serializedEntry, err := serializeUxoEntry(entry)
		if err != nil {
			return err
		}
		err = dbaccess.StoreUxoEntry(dbContext, &txID, serializedEntry)
		if err != nil {
			return err
		}
	}
	return nil
}

func (view *UxoViewpoint) addToCommitment(outpoint appmessage.Outpoint, entry *UxoEntry, output *UxoOutput) {
	if view.commitment != nil {
		view.commitment.Add(commitmentElement(outpoint, entry, output))
	}
}

func (view *UxoViewpoint) removeFromCommitment(outpoint appmessage.Outpoint, entry *UxoEntry, output *UxoOutput) {
	if view.commitment != nil {
		view.commitment.Remove(commitmentElement(outpoint, entry, output))
	}
}

// commitmentElement is the multiset element of one unspent output: the
// output reference, amount, script, creation height and coinbase flag.
func commitmentElement(outpoint appmessage.Outpoint, entry *UxoEntry, output *UxoOutput) []byte {
	w := bytes.NewBuffer(make([]byte, 0, chainhash.HashSize+4+8+len(output.PkScript)+9+8+1))
	// Writes to a bytes.Buffer never fail.
	_ = appmessage.WriteElements(w, &outpoint.TxID, outpoint.Index, output.Amount)
	_ = appmessage.WriteVarBytes(w, output.PkScript)
	_ = appmessage.WriteElements(w, entry.BlockHeight, entry.IsCoinbase)
	return w.Bytes()
}
