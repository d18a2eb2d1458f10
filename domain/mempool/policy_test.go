// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"bytes"
	"testing"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// TestCalcMinRequiredTxRelayFee tests the calcMinRequiredTxRelayFee API.
func TestCalcMinRequiredTxRelayFee(t *testing.T) {
	tests := []struct {
		name     string      // test description.
		size     int64       // Transaction size in bytes.
		relayFee util.Amount // minimum relay transaction fee.
		want     int64       // Expected fee.
	}{
		{
			// Ensure combination of size and fee that are less than 1000
			// produce a non-zero fee.
			"250 bytes with relay fee of 3",
			250,
			3,
			3,
		},
		{
			"100 bytes with default minimum relay fee",
			100,
			DefaultMinRelayTxFee,
			100,
		},
		{
			"max standard tx size with default minimum relay fee",
			MaxStandardTxSize,
			DefaultMinRelayTxFee,
			100000,
		},
		{
			"max standard tx size with max satoshi relay fee",
			MaxStandardTxSize,
			util.MaxSatoshi,
			util.MaxSatoshi,
		},
		{
			"1500 bytes with 5000 relay fee",
			1500,
			5000,
			7500,
		},
		{
			"782 bytes with 3000 relay fee",
			782,
			3000,
			2346,
		},
		{
			"782 bytes with 2550 relay fee",
			782,
			2550,
			1994,
		},
	}

	for _, test := range tests {
		got := calcMinRequiredTxRelayFee(test.size, test.relayFee)
		if got != test.want {
			t.Errorf("TestCalcMinRequiredTxRelayFee test '%s' "+
				"failed: got %v want %v", test.name, got,
				test.want)
			continue
		}
	}
}

func payToPubKeyHashForTest(t *testing.T) []byte {
	pkScript, err := txscript.PayToPubKeyHashScript(bytes.Repeat([]byte{0x2f}, 20))
	if err != nil {
		t.Fatalf("PayToPubKeyHashScript: %s", err)
	}
	return pkScript
}

// TestDust tests the isDust API.
func TestDust(t *testing.T) {
	pkScript := payToPubKeyHashForTest(t)

	tests := []struct {
		name     string // test description
		txOut    appmessage.TxOut
		relayFee util.Amount // minimum relay transaction fee.
		isDust   bool
	}{
		{
			// Any value is allowed with a zero relay fee.
			"zero value with zero relay fee",
			appmessage.TxOut{Value: 0, PkScript: pkScript},
			0,
			false,
		},
		{
			// Zero value is dust with any relay fee"
			"zero value with very small tx fee",
			appmessage.TxOut{Value: 0, PkScript: pkScript},
			1,
			true,
		},
		{
			"25 byte public key script with value 545",
			appmessage.TxOut{Value: 545, PkScript: pkScript},
			1000,
			true,
		},
		{
			"25 byte public key script with value 546",
			appmessage.TxOut{Value: 546, PkScript: pkScript},
			1000,
			false,
		},
		{
			// Maximum allowed value is never dust.
			"max satoshi amount is never dust",
			appmessage.TxOut{Value: util.MaxSatoshi, PkScript: pkScript},
			util.MaxSatoshi,
			false,
		},
		{
			// Unspendable pkScript due to an invalid public key
			// script.
			"unspendable pkScript",
			appmessage.TxOut{Value: 5000, PkScript: []byte{0x01}},
			0, // no relay fee
			true,
		},
	}
	for _, test := range tests {
		res := isDust(&test.txOut, test.relayFee)
		if res != test.isDust {
			t.Errorf("Dust test '%s' failed: want %v got %v",
				test.name, test.isDust, res)
			continue
		}
	}
}

// TestCheckTransactionStandard tests the checkTransactionStandard API.
func TestCheckTransactionStandard(t *testing.T) {
	pkScript := payToPubKeyHashForTest(t)
	nullData, err := txscript.NullDataScript([]byte("ledger"))
	if err != nil {
		t.Fatalf("NullDataScript: %s", err)
	}

	prevOutTxID := chainhash.Hash{}
	dummyPrevOut := appmessage.Outpoint{TxID: prevOutTxID, Index: 1}
	dummySigScript := bytes.Repeat([]byte{0x00}, 65)
	dummyTxIn := appmessage.TxIn{
		PreviousOutpoint: dummyPrevOut,
		SignatureScript:  dummySigScript,
		Sequence:         appmessage.MaxTxInSequenceNum,
	}
	dummyTxOut := appmessage.TxOut{Value: 100000000, PkScript: pkScript}

	newTx := func(version int32, txIns []*appmessage.TxIn, txOuts []*appmessage.TxOut) *appmessage.MsgTx {
		tx := appmessage.NewMsgTx(version)
		tx.TxIn = txIns
		tx.TxOut = txOuts
		return tx
	}

	tests := []struct {
		name       string
		tx         *appmessage.MsgTx
		isStandard bool
		code       RejectCode
	}{
		{
			name:       "Typical pay-to-pubkey-hash transaction",
			tx:         newTx(1, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{&dummyTxOut}),
			isStandard: true,
		},
		{
			name:       "Transaction version too high",
			tx:         newTx(appmessage.TxVersion+1, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{&dummyTxOut}),
			isStandard: false,
			code:       RejectNonstandard,
		},
		{
			name:       "Transaction version too low",
			tx:         newTx(0, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{&dummyTxOut}),
			isStandard: false,
			code:       RejectNonstandard,
		},
		{
			name: "Signature script size too large",
			tx: newTx(1, []*appmessage.TxIn{{
				PreviousOutpoint: dummyPrevOut,
				SignatureScript:  bytes.Repeat([]byte{0x00}, maxStandardSigScriptSize+1),
				Sequence:         appmessage.MaxTxInSequenceNum,
			}}, []*appmessage.TxOut{&dummyTxOut}),
			isStandard: false,
			code:       RejectNonstandard,
		},
		{
			name: "Signature script that does more than push data",
			tx: newTx(1, []*appmessage.TxIn{{
				PreviousOutpoint: dummyPrevOut,
				SignatureScript:  []byte{txscript.OP_CHECKSIG},
				Sequence:         appmessage.MaxTxInSequenceNum,
			}}, []*appmessage.TxOut{&dummyTxOut}),
			isStandard: false,
			code:       RejectNonstandard,
		},
		{
			name: "Valid but non standard public key script",
			tx: newTx(1, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{{
				Value:    100000000,
				PkScript: []byte{txscript.OP_CHECKSIG, txscript.OP_CHECKSIG},
			}}),
			isStandard: false,
			code:       RejectNonstandard,
		},
		{
			name: "Dust output",
			tx: newTx(1, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{{
				Value:    0,
				PkScript: pkScript,
			}}),
			isStandard: false,
			code:       RejectDust,
		},
		{
			name: "Null data output is never dust",
			tx: newTx(1, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{
				&dummyTxOut, {Value: 0, PkScript: nullData},
			}),
			isStandard: true,
		},
		{
			name: "More than one null data output",
			tx: newTx(1, []*appmessage.TxIn{&dummyTxIn}, []*appmessage.TxOut{
				{Value: 0, PkScript: nullData}, {Value: 0, PkScript: nullData},
			}),
			isStandard: false,
			code:       RejectNonstandard,
		},
	}

	for _, test := range tests {
		// Ensure standardness is as expected.
		err := checkTransactionStandard(util.NewTx(test.tx), DefaultMinRelayTxFee)
		if err == nil && test.isStandard {
			// Test passes since function returned standard for a
			// transaction which is intended to be standard.
			continue
		}
		if err == nil && !test.isStandard {
			t.Errorf("checkTransactionStandard (%s): standard when "+
				"it should not be", test.name)
			continue
		}
		if err != nil && test.isStandard {
			t.Errorf("checkTransactionStandard (%s): nonstandard "+
				"when it should not be: %v", test.name, err)
			continue
		}

		// Ensure error type is a TxRuleError inside of a RuleError.
		var ruleErr RuleError
		if !errors.As(err, &ruleErr) {
			t.Errorf("checkTransactionStandard (%s): unexpected "+
				"error type - got %T", test.name, err)
			continue
		}
		txRuleErr, ok := ruleErr.Err.(TxRuleError)
		if !ok {
			t.Errorf("checkTransactionStandard (%s): unexpected "+
				"error type - got %T", test.name, ruleErr.Err)
			continue
		}

		// Ensure the reject code is the expected one.
		if txRuleErr.RejectCode != test.code {
			t.Errorf("checkTransactionStandard (%s): unexpected "+
				"error code - got %v, want %v", test.name,
				txRuleErr.RejectCode, test.code)
			continue
		}
	}
}
