package dbaccess

import (
	"github.com/ledgerkit/ledgerd/database"
)

var (
	chainStateKey = database.MakeBucket().Key([]byte("chain-state"))
)

// StoreChainState stores the serialized chain state: the best tip and the
// UXO commitment.
func StoreChainState(context Context, chainState []byte) error {
	accessor, err := context.accessor()
	if err != nil {
		return err
	}

	return accessor.Put(chainStateKey, chainState)
}

// FetchChainState returns the serialized chain state. Returns ErrNotFound
// if no chain state has been stored yet.
func FetchChainState(context Context) ([]byte, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	return accessor.Get(chainStateKey)
}
