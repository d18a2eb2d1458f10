// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/ledgerkit/ledgerd/util/random"
	"github.com/pkg/errors"
)

// TxDesc is a descriptor about a transaction in a transaction source along with
// additional metadata.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *util.Tx

	// Added is the time when the entry was added to the source pool.
	Added time.Time

	// Height is the best chain height when the entry was added to the
	// source pool.
	Height uint64

	// Fee is the total fee the transaction associated with the entry pays.
	Fee uint64

	// FeePerKB is the fee the transaction pays in satoshi per 1000 bytes.
	FeePerKB uint64

	// StartingPriority is the priority of the transaction when it was
	// added to the pool.
	StartingPriority float64
}

// TxSource represents a source of transactions to consider for inclusion in
// new blocks.
//
// The interface contract requires that all of these methods are safe for
// concurrent access with respect to the source.
type TxSource interface {
	// LastUpdated returns the last time a transaction was added to or
	// removed from the source pool.
	LastUpdated() time.Time

	// MiningDescs returns a slice of mining descriptors for all the
	// transactions in the source pool.
	MiningDescs() []*TxDesc

	// HaveTransaction returns whether or not the passed transaction id
	// exists in the source pool.
	HaveTransaction(txID *chainhash.Hash) bool
}

// Chain is the view of the block chain the generator builds templates on.
type Chain interface {
	BestSnapshot() *blockchain.BestState
	FetchUxoView(tx *util.Tx) (*blockchain.UxoViewpoint, error)
	CheckConnectBlockTemplate(block *util.Block) error
	TimeSource() blockchain.TimeSource
}

// BlockTemplate houses a block that has yet to be solved along with additional
// details about the fees and the number of signature operations for each
// transaction in the block.
type BlockTemplate struct {
	// Block is a block that is ready to be solved by miners. Thus, it is
	// completely valid with the exception of satisfying the proof-of-work
	// requirement.
	Block *appmessage.MsgBlock

	// Fees contains the amount of fees each transaction in the generated
	// template pays in base units. Since the first transaction is the
	// coinbase, the first entry (offset 0) contains the sum of the fees
	// of all other transactions.
	Fees []uint64

	// SigOpCounts contains the number of signature operations each
	// transaction in the generated template performs.
	SigOpCounts []int64

	// Height is the height at which the block template connects to the
	// main chain.
	Height uint64
}

// BlkTmplGenerator provides a type that can be used to generate block templates
// based on a given mining policy and source of transactions to choose from.
// It also houses additional state required in order to ensure the templates
// are built on top of the current best chain and adhere to the consensus
// rules.
type BlkTmplGenerator struct {
	policy   *Policy
	params   *chaincfg.Params
	txSource TxSource
	chain    Chain
}

// NewBlkTmplGenerator returns a new block template generator for the given
// policy using transactions from the provided transaction source.
func NewBlkTmplGenerator(policy *Policy, params *chaincfg.Params,
	txSource TxSource, chain Chain) *BlkTmplGenerator {

	return &BlkTmplGenerator{
		policy:   policy,
		params:   params,
		txSource: txSource,
		chain:    chain,
	}
}

// NewBlockTemplate returns a new block template that is ready to be solved
// using the transactions from the passed transaction source pool and a
// coinbase that pays the block subsidy plus all fees to payToScript.
//
// Transactions are considered in order of fee per kilobyte, highest first,
// with ties broken by transaction id, so two calls over the same pool and
// tip select the same transactions. A transaction that spends an output of
// another pool transaction is only eligible once its parent was selected.
// Transactions which would cause the block to exceed the BlockMaxSize policy
// setting or the maximum allowed signature operations per block are skipped.
//
// Given the above, a block generated by this function is of the following form:
//
//   -----------------------------------  --
//  |      Coinbase Transaction         |   |
//  |-----------------------------------|   |
//  |                                   |   |
//  |  Transactions prioritized by fee  |   |--- policy.BlockMaxSize
//  |  per kilobyte, parents first      |   |
//  |                                   |   |
//   -----------------------------------  --
func (g *BlkTmplGenerator) NewBlockTemplate(payToScript []byte) (*BlockTemplate, error) {
	best := g.chain.BestSnapshot()
	nextHeight := best.Height + 1
	timestamp := g.medianAdjustedTime(best)

	extraNonce, err := random.Uint64()
	if err != nil {
		return nil, err
	}
	coinbaseTx, err := createCoinbaseTx(g.params, payToScript, nextHeight, extraNonce)
	if err != nil {
		return nil, err
	}

	selected, err := g.selectTxs(coinbaseTx, nextHeight, timestamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select transactions")
	}

	// Now that the actual transactions have been selected, update the
	// coinbase to pay the fees.
	coinbaseTx.MsgTx().TxOut[0].Value += selected.totalFees
	selected.selectedTxs[0] = util.NewTx(coinbaseTx.MsgTx())
	selected.txFees[0] = selected.totalFees

	msgBlock := appmessage.NewMsgBlock(&appmessage.BlockHeader{
		Version:    1,
		PrevBlock:  best.Hash,
		MerkleRoot: *blockchain.CalcMerkleRoot(selected.selectedTxs),
		Timestamp:  timestamp,
		Bits:       best.Bits,
	})
	for _, tx := range selected.selectedTxs {
		msgBlock.AddTransaction(tx.MsgTx())
	}

	// Finally, perform a full check on the created block against the chain
	// consensus rules to ensure it properly connects to the current best
	// chain with no issues.
	block := util.NewBlock(msgBlock)
	block.SetHeight(nextHeight)
	err = g.chain.CheckConnectBlockTemplate(block)
	if err != nil {
		return nil, err
	}

	log.Debugf("Created new block template (%d transactions, %d in fees, "+
		"%d signature operations, %d bytes, target difficulty %064x)",
		len(msgBlock.Transactions), selected.totalFees, selected.blockSigOps,
		selected.blockSize, util.CompactToBig(msgBlock.Header.Bits))

	return &BlockTemplate{
		Block:       msgBlock,
		Fees:        selected.txFees,
		SigOpCounts: selected.txSigOpCounts,
		Height:      nextHeight,
	}, nil
}

// UpdateBlockTime updates the timestamp in the header of the passed block to
// the current time while taking into account the median time of the last
// several blocks to ensure the new time is after that time per the chain
// consensus rules.
func (g *BlkTmplGenerator) UpdateBlockTime(msgBlock *appmessage.MsgBlock) {
	msgBlock.Header.Timestamp = g.medianAdjustedTime(g.chain.BestSnapshot())
}

// TxSource returns the associated transaction source.
//
// This function is safe for concurrent access.
func (g *BlkTmplGenerator) TxSource() TxSource {
	return g.txSource
}

// medianAdjustedTime returns the current time adjusted to ensure it is at
// least one second after the median timestamp of the last several blocks
// per the chain consensus rules.
func (g *BlkTmplGenerator) medianAdjustedTime(best *blockchain.BestState) time.Time {
	// The timestamp for the block must not be before the median timestamp
	// of the last several blocks. Thus, choose the maximum between the
	// current time and one second after the past median time. The current
	// timestamp is truncated to a second boundary before comparison since a
	// block timestamp does not support a precision greater than one
	// second.
	newTimestamp := time.Unix(g.chain.TimeSource().Now().Unix(), 0)
	minTimestamp := best.MedianTime.Add(time.Second)
	if newTimestamp.Before(minTimestamp) {
		newTimestamp = minTimestamp
	}
	return newTimestamp
}

// createCoinbaseTx returns a coinbase transaction paying the block subsidy
// at the given height to pkScript. Its signature script commits to the
// height and extraNonce so templates for the same height differ.
func createCoinbaseTx(params *chaincfg.Params, pkScript []byte, nextBlockHeight uint64,
	extraNonce uint64) (*util.Tx, error) {

	coinbaseScript, err := txscript.NewScriptBuilder().AddInt64(int64(nextBlockHeight)).
		AddInt64(int64(extraNonce)).Script()
	if err != nil {
		return nil, err
	}

	tx := appmessage.NewMsgTx(appmessage.TxVersion)
	tx.AddTxIn(&appmessage.TxIn{
		// Coinbase transactions have no inputs, so previous outpoint is
		// zero hash and max index.
		PreviousOutpoint: *appmessage.NewOutpoint(&chainhash.Hash{},
			appmessage.MaxPrevOutIndex),
		SignatureScript: coinbaseScript,
		Sequence:        appmessage.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&appmessage.TxOut{
		Value:    blockchain.CalcBlockSubsidy(nextBlockHeight, params),
		PkScript: pkScript,
	})
	return util.NewTx(tx), nil
}
