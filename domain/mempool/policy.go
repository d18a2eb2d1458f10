// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"math"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
)

const (
	// maxStandardSigScriptSize is the maximum size allowed for a
	// transaction input signature script to be considered standard. The
	// largest standard signature script is a pay-to-pubkey-hash redeem:
	// a 65 byte signature and a 32 byte public key with their push
	// opcodes. This value adds generous room on top of that.
	maxStandardSigScriptSize = 1650

	// maxStandardSigOpsPerTx is the maximum number of signature
	// operations a transaction may perform to be considered standard.
	maxStandardSigOpsPerTx = blockchain.MaxSigOpsPerBlock / 5

	// maxStandardTxVersion is the highest transaction version considered
	// standard.
	maxStandardTxVersion = appmessage.TxVersion

	// MaxStandardTxSize is the maximum size allowed for transactions that
	// are considered standard and will therefore be relayed and considered
	// for mining.
	MaxStandardTxSize = 100000

	// DefaultMinRelayTxFee is the minimum fee in satoshi that is required
	// for a transaction to be treated as free for relay and mining
	// purposes. It is also used to help determine if a transaction is
	// considered dust and as a base for calculating minimum required fees
	// for larger transactions. This value is in satoshi/1000 bytes.
	DefaultMinRelayTxFee = util.Amount(1000)

	// freeTxSizeLimit is the size under which a transaction paying less
	// than the minimum relay fee may still be accepted for its priority.
	freeTxSizeLimit = 10000
)

// AllowFree returns whether a transaction with the given priority may be
// relayed without paying the minimum relay fee.
func AllowFree(priority float64) bool {
	return priority > mining.MinHighPriority
}

// calcMinRequiredTxRelayFee returns the minimum transaction fee required for a
// transaction with the passed serialized size to be accepted into the memory
// pool and relayed.
func calcMinRequiredTxRelayFee(serializedSize int64, minRelayTxFee util.Amount) int64 {
	// Set the minimum fee to the maximum possible value if scaling the
	// base fee would overflow.
	if minRelayTxFee > 0 && uint64(serializedSize) > math.MaxInt64/uint64(minRelayTxFee) {
		return util.MaxSatoshi
	}

	// Calculate the minimum fee for a transaction to be allowed into the
	// mempool and relayed by scaling the base fee. minTxRelayFee is in
	// satoshi/kB so multiply by serializedSize (which is in bytes) and
	// divide by 1000 to get minimum satoshis.
	minFee := (serializedSize * int64(minRelayTxFee)) / 1000

	if minFee == 0 && minRelayTxFee > 0 {
		minFee = int64(minRelayTxFee)
	}

	// Set the minimum fee to the maximum possible value if the calculated
	// fee is not in the valid range for monetary amounts.
	if minFee < 0 || minFee > util.MaxSatoshi {
		minFee = util.MaxSatoshi
	}

	return minFee
}

// checkInputsStandard performs a series of checks on a transaction's inputs
// to ensure they are "standard". A standard transaction input within the
// context of this function is one whose referenced public key script is of a
// standard form.
func checkInputsStandard(tx *util.Tx, view *blockchain.UxoViewpoint) error {
	// NOTE: The reference implementation also does a coinbase check here,
	// but coinbases have already been rejected prior to calling this
	// function so no need to recheck.

	for i, txIn := range tx.MsgTx().TxIn {
		// It is safe to elide existence and index checks here since
		// they have already been checked prior to calling this
		// function.
		lookup, err := view.LookupOutput(txIn.PreviousOutpoint)
		if err != nil {
			return err
		}
		originPkScript := lookup.Output.PkScript
		if txscript.GetScriptClass(originPkScript) == txscript.NonStandardTy {
			str := fmt.Sprintf("transaction input #%d has a "+
				"non-standard script form", i)
			return txRuleError(RejectNonstandard, str)
		}
	}

	return nil
}

// isDust returns whether or not the passed transaction output amount is
// considered dust or not based on the passed minimum transaction relay fee.
// Dust is defined in terms of the minimum transaction relay fee. In
// particular, if the cost to the network to spend coins is more than 1/3 of the
// minimum transaction relay fee, it is considered dust.
func isDust(txOut *appmessage.TxOut, minRelayTxFee util.Amount) bool {
	// Unspendable outputs are considered dust.
	if txscript.GetScriptClass(txOut.PkScript) == txscript.NonStandardTy {
		return true
	}

	// The total serialized size consists of the output and the associated
	// input script to redeem it. Since there is no input script
	// to redeem it yet, use the minimum size of a typical input script.
	//
	// Pay-to-pubkey-hash bytes breakdown:
	//
	//  Output to hash (34 bytes):
	//   8 value, 1 script len, 25 script [1 OP_DUP, 1 OP_HASH_160,
	//   1 OP_DATA_20, 20 hash, 1 OP_EQUALVERIFY, 1 OP_CHECKSIG]
	//
	//  Input (148 bytes):
	//   36 prev outpoint, 1 script len, 107 script [1 OP_DATA_72, 72 sig,
	//   1 OP_DATA_33, 33 pubkey], 4 sequence
	//
	// The most common scripts are pay-to-pubkey-hash, and as per the above
	// breakdown, the minimum size of a p2pkh input script is 148 bytes. So
	// that figure is used.
	totalSize := txOut.SerializeSize() + 148

	// The output is considered dust if the cost to the network to spend the
	// coins is more than 1/3 of the minimum free transaction relay fee.
	// minFreeTxRelayFee is in satoshi/KB, so multiply by 1000 to
	// convert to bytes.
	//
	// Using the typical values for a pay-to-pubkey-hash transaction from
	// the breakdown above and the default minimum free transaction relay
	// fee of 1000, this equates to values less than 546 satoshi being
	// considered dust.
	//
	// The following is equivalent to (value/totalSize) * (1/3) * 1000
	// without needing to do floating point math.
	return txOut.Value*1000/(3*uint64(totalSize)) < uint64(minRelayTxFee)
}

// checkTransactionStandard performs a series of checks on a transaction to
// ensure it is a "standard" transaction. A standard transaction is one that
// conforms to several additional limiting cases over what is considered a
// "sane" transaction such as having a version in the supported range,
// conforming to more stringent size constraints, having scripts of
// recognized forms, and not containing "dust" outputs (those that are so
// small it costs more to process them than they are worth).
func checkTransactionStandard(tx *util.Tx, minRelayTxFee util.Amount) error {
	msgTx := tx.MsgTx()

	// The transaction must be a currently supported version.
	if msgTx.Version > maxStandardTxVersion || msgTx.Version < 1 {
		str := fmt.Sprintf("transaction version %d is not in the "+
			"valid range of %d-%d", msgTx.Version, 1,
			maxStandardTxVersion)
		return txRuleError(RejectNonstandard, str)
	}

	// Since extremely large transactions with a lot of inputs can cost
	// almost as much to process as the sender fees, limit the maximum
	// size of a transaction. This also helps mitigate CPU exhaustion
	// attacks.
	serializedLen := msgTx.SerializeSize()
	if serializedLen > MaxStandardTxSize {
		str := fmt.Sprintf("transaction size of %d is larger than max "+
			"allowed size of %d", serializedLen, MaxStandardTxSize)
		return txRuleError(RejectNonstandard, str)
	}

	for i, txIn := range msgTx.TxIn {
		// Each transaction input signature script must not exceed the
		// maximum size allowed for a standard transaction. See
		// the comment on maxStandardSigScriptSize for more details.
		sigScriptLen := len(txIn.SignatureScript)
		if sigScriptLen > maxStandardSigScriptSize {
			str := fmt.Sprintf("transaction input %d: signature "+
				"script size of %d bytes is larger than max "+
				"allowed size of %d bytes", i, sigScriptLen,
				maxStandardSigScriptSize)
			return txRuleError(RejectNonstandard, str)
		}

		// Each transaction input signature script must only contain
		// opcodes which push data onto the stack.
		if !txscript.IsPushOnlyScript(txIn.SignatureScript) {
			str := fmt.Sprintf("transaction input %d: signature "+
				"script is not push only", i)
			return txRuleError(RejectNonstandard, str)
		}
	}

	// None of the output public key scripts can be a non-standard script or
	// be "dust" (except when the script is a null data script).
	numNullDataOutputs := 0
	for i, txOut := range msgTx.TxOut {
		scriptClass := txscript.GetScriptClass(txOut.PkScript)
		switch scriptClass {
		case txscript.NonStandardTy:
			str := fmt.Sprintf("transaction output %d: non-standard "+
				"script form", i)
			return txRuleError(RejectNonstandard, str)

		case txscript.NullDataTy:
			numNullDataOutputs++
			continue
		}

		if isDust(txOut, minRelayTxFee) {
			str := fmt.Sprintf("transaction output %d: payment "+
				"of %d is dust", i, txOut.Value)
			return txRuleError(RejectDust, str)
		}
	}

	// A standard transaction must not have more than one output script that
	// only carries data.
	if numNullDataOutputs > 1 {
		str := "more than one transaction output in a nulldata script"
		return txRuleError(RejectNonstandard, str)
	}

	return nil
}
