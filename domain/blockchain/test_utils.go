package blockchain

// This file functions are not considered safe for regular use, and should be used for test purposes only.

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// OpTrueScript is script returning TRUE
var OpTrueScript = []byte{txscript.OP_TRUE}

// testBlockInterval is the timestamp distance between a test block and its
// parent.
const testBlockInterval = 10 * time.Minute

// ChainSetup is used to create a new db and chain instance with the genesis
// block already inserted. In addition to the new chain instance, it returns
// a teardown function the caller should invoke when done testing to clean
// up. config.Params is required; the other required fields get test
// defaults when left empty.
func ChainSetup(dbName string, config Config) (*BlockChain, func(), error) {
	tmpDir, err := ioutil.TempDir("", dbName)
	if err != nil {
		return nil, nil, errors.Errorf("error creating temp dir: %s", err)
	}
	databaseContext, err := dbaccess.New(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, nil, errors.Errorf("error creating db: %s", err)
	}

	// Setup a teardown function for cleaning up. This function is
	// returned to the caller to be invoked when it is done testing.
	teardown := func() {
		databaseContext.Close()
		os.RemoveAll(tmpDir)
	}

	config.DatabaseContext = databaseContext
	if config.TimeSource == nil {
		config.TimeSource = NewTimeSource()
	}
	if config.SigCache == nil {
		config.SigCache = txscript.NewSigCache(1000)
	}

	// Create the chain instance.
	bc, err := New(&config)
	if err != nil {
		teardown()
		return nil, nil, errors.Errorf("failed to create chain instance: %s", err)
	}
	return bc, teardown, nil
}

// ReopenChainForTest creates a second chain instance over the database of
// bc, as a restarted node would.
func ReopenChainForTest(bc *BlockChain, reindex bool) (*BlockChain, error) {
	return New(&Config{
		DatabaseContext:   bc.databaseContext,
		Params:            bc.params,
		TimeSource:        bc.timeSource,
		ReindexChainState: reindex,
	})
}

// RemoveUxoEntryForTest deletes the durable UXO entry of txID behind the
// back of bc, leaving an index that no longer matches its main chain.
func RemoveUxoEntryForTest(bc *BlockChain, txID *chainhash.Hash) error {
	return dbaccess.RemoveUxoEntry(bc.databaseContext.NoTx(), txID)
}

// CoinbaseScriptForTest returns a coinbase signature script committing to
// the block height and extraNonce.
func CoinbaseScriptForTest(height uint64, extraNonce int64) ([]byte, error) {
	return txscript.NewScriptBuilder().AddInt64(int64(height)).
		AddInt64(extraNonce).Script()
}

// CoinbaseTxForTest returns a coinbase transaction for a block at the given
// height that pays value to pkScript.
func CoinbaseTxForTest(height uint64, extraNonce int64, value uint64, pkScript []byte) (*appmessage.MsgTx, error) {
	coinbaseScript, err := CoinbaseScriptForTest(height, extraNonce)
	if err != nil {
		return nil, err
	}
	tx := appmessage.NewMsgTx(appmessage.TxVersion)
	tx.AddTxIn(&appmessage.TxIn{
		PreviousOutpoint: *appmessage.NewOutpoint(&chainhash.Hash{}, appmessage.MaxPrevOutIndex),
		SignatureScript:  coinbaseScript,
		Sequence:         appmessage.MaxTxInSequenceNum,
	})
	tx.AddTxOut(appmessage.NewTxOut(value, pkScript))
	return tx, nil
}

// SpendOutputTx returns a transaction spending output index of prevTx,
// which must pay to OpTrueScript, into a single OpTrueScript output worth
// value.
func SpendOutputTx(prevTx *appmessage.MsgTx, index uint32, value uint64) *appmessage.MsgTx {
	tx := appmessage.NewMsgTx(appmessage.TxVersion)
	tx.AddTxIn(appmessage.NewTxIn(appmessage.NewOutpoint(prevTx.TxID(), index), nil))
	tx.AddTxOut(appmessage.NewTxOut(value, OpTrueScript))
	return tx
}

// BuildBlockForTest returns a solved block extending parentHash. Its
// coinbase pays the block subsidy to OpTrueScript and is followed by txs.
// Blocks built on the same parent with different extraNonce values are
// distinct.
func BuildBlockForTest(bc *BlockChain, parentHash *chainhash.Hash, txs []*appmessage.MsgTx,
	extraNonce int64) (*util.Block, error) {

	parentID, exists := bc.index.lookupNode(parentHash)
	if !exists {
		return nil, errors.Errorf("parent %s is unknown", parentHash)
	}
	parent := bc.index.node(parentID)
	height := parent.height + 1

	coinbase, err := CoinbaseTxForTest(height, extraNonce,
		CalcBlockSubsidy(height, bc.params), OpTrueScript)
	if err != nil {
		return nil, err
	}
	transactions := append([]*appmessage.MsgTx{coinbase}, txs...)
	utilTxs := make([]*util.Tx, len(transactions))
	for i, tx := range transactions {
		utilTxs[i] = util.NewTx(tx)
	}

	msgBlock := appmessage.NewMsgBlock(&appmessage.BlockHeader{
		Version:    1,
		PrevBlock:  *parentHash,
		MerkleRoot: *CalcMerkleRoot(utilTxs),
		Timestamp:  time.Unix(parent.timestamp, 0).Add(testBlockInterval),
		Bits:       parent.bits,
	})
	for _, tx := range transactions {
		msgBlock.AddTransaction(tx)
	}
	if !SolveBlock(&msgBlock.Header) {
		return nil, errors.Errorf("failed to solve block at height %d", height)
	}
	return util.NewBlock(msgBlock), nil
}

// ExtendChainForTest builds and processes count empty blocks on top of
// parentHash and returns them.
func ExtendChainForTest(bc *BlockChain, parentHash *chainhash.Hash, count int,
	extraNonce int64) ([]*util.Block, error) {

	blocks := make([]*util.Block, 0, count)
	for i := 0; i < count; i++ {
		block, err := BuildBlockForTest(bc, parentHash, nil, extraNonce)
		if err != nil {
			return nil, err
		}
		isOrphan, err := bc.ProcessBlock(block, BFNone)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to process block %d", i)
		}
		if isOrphan {
			return nil, errors.Errorf("block %d is unexpectedly an orphan", i)
		}
		blocks = append(blocks, block)
		parentHash = block.Hash()
	}
	return blocks, nil
}

// SolveBlock attempts to find a nonce which makes the passed block header
// hash to a value less than the target difficulty. It returns whether a
// nonce was found.
func SolveBlock(header *appmessage.BlockHeader) bool {
	targetDifficulty := util.CompactToBig(header.Bits)
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if util.HashToBig(hash).Cmp(targetDifficulty) <= 0 {
			return true
		}
		if nonce == ^uint32(0) {
			return false
		}
	}
}
