package dbaccess

import (
	"github.com/ledgerkit/ledgerd/database"
)

// Context decides where a dbaccess query runs: directly on the database
// (DatabaseContext.NoTx) or inside a transaction (DatabaseContext.NewTx).
type Context interface {
	accessor() (database.DataAccessor, error)
}

type noTxContext struct {
	backend *DatabaseContext
}

func (ctx *noTxContext) accessor() (database.DataAccessor, error) {
	return ctx.backend.db, nil
}

// NoTx returns a Context whose queries apply immediately, one at a time.
func (ctx *DatabaseContext) NoTx() Context {
	return ctx.noTxContext
}

// TxContext is a Context whose writes become visible together on Commit.
// Chain state changes are written through one so a crash leaves either all
// or none of them.
type TxContext struct {
	dbTransaction database.Transaction
}

// NewTx begins a database transaction.
func (ctx *DatabaseContext) NewTx() (*TxContext, error) {
	dbTransaction, err := ctx.db.Begin()
	if err != nil {
		return nil, err
	}
	return &TxContext{dbTransaction: dbTransaction}, nil
}

func (ctx *TxContext) accessor() (database.DataAccessor, error) {
	return ctx.dbTransaction, nil
}

// Commit makes the writes of the transaction durable.
func (ctx *TxContext) Commit() error {
	return ctx.dbTransaction.Commit()
}

// Rollback discards the writes of the transaction.
func (ctx *TxContext) Rollback() error {
	return ctx.dbTransaction.Rollback()
}

// RollbackUnlessClosed discards the writes of the transaction unless it was
// already committed or rolled back. It is meant to be deferred right after
// NewTx.
func (ctx *TxContext) RollbackUnlessClosed() error {
	return ctx.dbTransaction.RollbackUnlessClosed()
}
