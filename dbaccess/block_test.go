package dbaccess

import (
	"reflect"
	"testing"

	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

func TestBlockStoreSanity(t *testing.T) {
	databaseContext, teardownFunc := prepareDatabaseForTest(t, "TestBlockStoreSanity")
	defer teardownFunc()

	// Store the genesis block
	genesis := util.NewBlock(chaincfg.MainNetParams.GenesisBlock)
	location, err := StoreBlock(databaseContext.NoTx(), genesis)
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: StoreBlock unexpectedly "+
			"failed: %s", err)
	}

	// Make sure the genesis block now exists in the db
	exists, err := HasBlock(databaseContext.NoTx(), genesis.Hash())
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: HasBlock unexpectedly "+
			"failed: %s", err)
	}
	if !exists {
		t.Fatalf("TestBlockStoreSanity: just-inserted block is " +
			"missing from the database")
	}

	// Fetch the genesis block back from the db and make sure
	// that it's equal to the original
	fetchedGenesis, err := FetchBlock(databaseContext.NoTx(), genesis.Hash())
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: FetchBlock unexpectedly "+
			"failed: %s", err)
	}
	if !reflect.DeepEqual(genesis.MsgBlock(), fetchedGenesis.MsgBlock()) {
		t.Fatalf("TestBlockStoreSanity: just-inserted block is " +
			"not equal to its database counterpart.")
	}
	fetchedByLocation, err := FetchBlockByLocation(databaseContext.NoTx(), location)
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: FetchBlockByLocation unexpectedly "+
			"failed: %s", err)
	}
	if *fetchedByLocation.Hash() != *genesis.Hash() {
		t.Fatalf("TestBlockStoreSanity: FetchBlockByLocation returned "+
			"block %s", fetchedByLocation.Hash())
	}

	// The coinbase can be cut out of the stored block by its location
	txLocs, err := genesis.TxLoc()
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: TxLoc unexpectedly "+
			"failed: %s", err)
	}
	txBytes, err := FetchTransactionBytes(databaseContext.NoTx(), location,
		uint32(txLocs[0].TxStart), uint32(txLocs[0].TxLen))
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: FetchTransactionBytes unexpectedly "+
			"failed: %s", err)
	}
	tx, err := util.NewTxFromBytes(txBytes)
	if err != nil {
		t.Fatalf("TestBlockStoreSanity: NewTxFromBytes unexpectedly "+
			"failed: %s", err)
	}
	if *tx.ID() != genesis.MsgBlock().Header.MerkleRoot {
		t.Fatalf("TestBlockStoreSanity: unexpected coinbase id %s", tx.ID())
	}
	_, err = FetchTransactionBytes(databaseContext.NoTx(), location,
		uint32(txLocs[0].TxStart), uint32(txLocs[0].TxLen)+1)
	if err == nil {
		t.Fatalf("TestBlockStoreSanity: FetchTransactionBytes past the " +
			"block end unexpectedly succeeded")
	}

	// Storing the same block twice is refused
	_, err = StoreBlock(databaseContext.NoTx(), genesis)
	if err == nil {
		t.Fatalf("TestBlockStoreSanity: StoreBlock of a duplicate " +
			"unexpectedly succeeded")
	}

	_, err = FetchBlock(databaseContext.NoTx(), &chainhash.Hash{0x01})
	if !IsNotFoundError(err) {
		t.Fatalf("TestBlockStoreSanity: FetchBlock of a missing block "+
			"returned wrong error: %v", err)
	}
}

func TestBlockStoreRollback(t *testing.T) {
	databaseContext, teardownFunc := prepareDatabaseForTest(t, "TestBlockStoreRollback")
	defer teardownFunc()

	genesis := util.NewBlock(chaincfg.RegressionNetParams.GenesisBlock)
	dbTx, err := databaseContext.NewTx()
	if err != nil {
		t.Fatalf("TestBlockStoreRollback: NewTx unexpectedly "+
			"failed: %s", err)
	}
	defer dbTx.RollbackUnlessClosed()

	location, err := StoreBlock(dbTx, genesis)
	if err != nil {
		t.Fatalf("TestBlockStoreRollback: StoreBlock unexpectedly "+
			"failed: %s", err)
	}
	err = dbTx.Rollback()
	if err != nil {
		t.Fatalf("TestBlockStoreRollback: Rollback unexpectedly "+
			"failed: %s", err)
	}

	exists, err := HasBlock(databaseContext.NoTx(), genesis.Hash())
	if err != nil {
		t.Fatalf("TestBlockStoreRollback: HasBlock unexpectedly "+
			"failed: %s", err)
	}
	if exists {
		t.Fatalf("TestBlockStoreRollback: rolled back block exists")
	}
	_, err = FetchBlockByLocation(databaseContext.NoTx(), location)
	if !IsNotFoundError(err) {
		t.Fatalf("TestBlockStoreRollback: FetchBlockByLocation of a rolled "+
			"back block returned wrong error: %v", err)
	}
}
