package dbaccess

import "github.com/ledgerkit/ledgerd/database"

// IsNotFoundError checks whether an error is an ErrNotFound.
func IsNotFoundError(err error) bool {
	return database.IsNotFoundError(err)
}
