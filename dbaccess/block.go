package dbaccess

import (
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

const (
	blockStoreName = "blocks"
)

var (
	blockLocationsBucket = database.MakeBucket([]byte("block-locations"))
)

func blockLocationKey(hash *chainhash.Hash) *database.Key {
	return blockLocationsBucket.Key(hash[:])
}

// StoreBlock stores the given block in the database and returns the
// location of its body in the block store.
func StoreBlock(context Context, block *util.Block) (database.StoreLocation, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	// Make sure that the block does not already exist.
	exists, err := HasBlock(context, block.Hash())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Errorf("block %s already exists", block.Hash())
	}

	// Write the block's bytes to the block store
	bytes, err := block.Bytes()
	if err != nil {
		return nil, err
	}
	blockLocation, err := accessor.AppendToStore(blockStoreName, bytes)
	if err != nil {
		return nil, err
	}

	// Write the block's hash to the blockLocations bucket
	err = accessor.Put(blockLocationKey(block.Hash()), blockLocation)
	if err != nil {
		return nil, err
	}

	return blockLocation, nil
}

// HasBlock returns whether the block of the given hash has been
// previously inserted into the database.
func HasBlock(context Context, hash *chainhash.Hash) (bool, error) {
	accessor, err := context.accessor()
	if err != nil {
		return false, err
	}

	return accessor.Has(blockLocationKey(hash))
}

// FetchBlock returns the block of the given hash. Returns
// ErrNotFound if the block had not been previously inserted
// into the database.
func FetchBlock(context Context, hash *chainhash.Hash) (*util.Block, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	blockLocation, err := accessor.Get(blockLocationKey(hash))
	if err != nil {
		return nil, err
	}
	return FetchBlockByLocation(context, blockLocation)
}

// FetchBlockByLocation returns the block stored at the given block store
// location. Returns ErrNotFound if nothing was stored there.
func FetchBlockByLocation(context Context, location database.StoreLocation) (*util.Block, error) {
	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	bytes, err := accessor.RetrieveFromStore(blockStoreName, location)
	if err != nil {
		return nil, err
	}
	return util.NewBlockFromBytes(bytes)
}

// FetchTransactionBytes returns the serialized transaction that spans
// length bytes at the given offset of the block stored at location.
func FetchTransactionBytes(context Context, location database.StoreLocation,
	offset, length uint32) ([]byte, error) {

	accessor, err := context.accessor()
	if err != nil {
		return nil, err
	}

	bytes, err := accessor.RetrieveFromStore(blockStoreName, location)
	if err != nil {
		return nil, err
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(bytes)) {
		return nil, errors.Errorf("transaction at offset %d with length %d "+
			"is outside of a %d bytes block", offset, length, len(bytes))
	}
	return bytes[offset:end], nil
}
