package dbaccess

import (
	"github.com/ledgerkit/ledgerd/database"
)

var (
	blockIndexBucket = database.MakeBucket([]byte("block-index"))
)

// StoreIndexBlock stores a block in block-index
// representation to the database.
func StoreIndexBlock(context Context, blockIndexKey []byte, block []byte) error {
	accessor, err := context.accessor()
	if err != nil {
		return err
	}

	key := blockIndexBucket.Key(blockIndexKey)
	return accessor.Put(key, block)
}

// BlockIndexCursor opens a cursor over all the blocks-index
// blocks that have been previously added to the database.
// Entries are ordered by their block-index keys.
func BlockIndexCursor(context Context) (database.Cursor, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	return accessor.Cursor(blockIndexBucket)
}
