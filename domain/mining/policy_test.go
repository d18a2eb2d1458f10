// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"testing"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// newViewForTest returns a detached view holding one single-output entry
// per given height, together with the outpoints of those outputs.
func newViewForTest(amount uint64, heights ...uint64) (*blockchain.UxoViewpoint, []appmessage.Outpoint) {
	view := blockchain.NewUxoViewpoint()
	outpoints := make([]appmessage.Outpoint, len(heights))
	for i, height := range heights {
		txID := chainhash.Hash{byte(i + 1)}
		view.AddEntry(&txID, &blockchain.UxoEntry{
			BlockHeight: height,
			Outputs: []*blockchain.UxoOutput{
				{Amount: amount, PkScript: blockchain.OpTrueScript},
			},
		})
		outpoints[i] = *appmessage.NewOutpoint(&txID, 0)
	}
	return view, outpoints
}

// TestCalcPriority ensures the priority calculations work as intended.
func TestCalcPriority(t *testing.T) {
	view, outpoints := newViewForTest(util.SatoshiPerCoin, 10, 20, UnminedHeight)

	newSpend := func(outpoints ...appmessage.Outpoint) *util.Tx {
		tx := appmessage.NewMsgTx(appmessage.TxVersion)
		for i := range outpoints {
			tx.AddTxIn(appmessage.NewTxIn(&outpoints[i], nil))
		}
		tx.AddTxOut(appmessage.NewTxOut(1000, blockchain.OpTrueScript))
		return util.NewTx(tx)
	}

	tests := []struct {
		name       string
		tx         *util.Tx
		nextHeight uint64
		wantAge    float64
	}{
		{
			name:       "one input, 90 confirmations",
			tx:         newSpend(outpoints[0]),
			nextHeight: 100,
			wantAge:    util.SatoshiPerCoin * 90,
		},
		{
			name:       "two inputs",
			tx:         newSpend(outpoints[0], outpoints[1]),
			nextHeight: 100,
			wantAge:    util.SatoshiPerCoin*90 + util.SatoshiPerCoin*80,
		},
		{
			name:       "unmined input has no age",
			tx:         newSpend(outpoints[2]),
			nextHeight: 100,
			wantAge:    0,
		},
		{
			name:       "unknown input is ignored",
			tx:         newSpend(appmessage.Outpoint{TxID: chainhash.Hash{0xff}}),
			nextHeight: 100,
			wantAge:    0,
		},
	}

	for _, test := range tests {
		want := test.wantAge / float64(test.tx.MsgTx().SerializeSize())
		got := CalcPriority(test.tx, view, test.nextHeight)
		if got != want {
			t.Errorf("%s: got priority %v, want %v", test.name, got, want)
		}
	}
}
