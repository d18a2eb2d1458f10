package dbaccess

import (
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/database/ffldb"
)

// DatabaseContext represents a context in which all database queries run
type DatabaseContext struct {
	db database.Database
	*noTxContext
}

// New creates a new DatabaseContext with database is in the specified `path`
func New(path string) (*DatabaseContext, error) {
	db, err := ffldb.Open(path)
	if err != nil {
		return nil, err
	}

	databaseContext := &DatabaseContext{db: db}
	databaseContext.noTxContext = &noTxContext{backend: databaseContext}

	return databaseContext, nil
}

// Close closes the DatabaseContext's connection, if it's open
func (ctx *DatabaseContext) Close() error {
	return ctx.db.Close()
}

// HasSpace returns whether the volume holding the database can take the
// given number of bytes on top of the database's free-space reserve.
func (ctx *DatabaseContext) HasSpace(bytesNeeded uint64) (bool, error) {
	return ctx.db.HasSpace(bytesNeeded)
}
