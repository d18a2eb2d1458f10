package dbaccess

import (
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

var (
	uxoBucket = database.MakeBucket([]byte("uxo"))
)

func uxoKey(txID *chainhash.Hash) *database.Key {
	return uxoBucket.Key(txID[:])
}

// StoreUxoEntry stores the serialized UXO entry of the transaction with the
// given id, overwriting any previous entry.
func StoreUxoEntry(context Context, txID *chainhash.Hash, serializedEntry []byte) error {
	accessor, err := context.accessor()
	if err != nil {
		return err
	}

	return accessor.Put(uxoKey(txID), serializedEntry)
}

// FetchUxoEntry returns the serialized UXO entry of the transaction with the
// given id. Returns ErrNotFound if the transaction is not indexed.
func FetchUxoEntry(context Context, txID *chainhash.Hash) ([]byte, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	return accessor.Get(uxoKey(txID))
}

// RemoveUxoEntry removes the UXO entry of the transaction with the given id.
func RemoveUxoEntry(context Context, txID *chainhash.Hash) error {
	accessor, err := context.accessor()
	if err != nil {
		return err
	}

	return accessor.Delete(uxoKey(txID))
}

// UxoEntriesCursor opens a cursor over all the stored UXO entries, ordered
// by transaction id bytes.
func UxoEntriesCursor(context Context) (database.Cursor, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	return accessor.Cursor(uxoBucket)
}

// ClearUxoEntries removes every stored UXO entry.
func ClearUxoEntries(context Context) error {
	cursor, err := UxoEntriesCursor(context)
	if err != nil {
		return err
	}
	defer cursor.Close()

	var keys []*database.Key
	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	accessor, err := context.accessor()
	if err != nil {
		return err
	}
	for _, key := range keys {
		err := accessor.Delete(key)
		if err != nil {
			return err
		}
	}
	return nil
}
