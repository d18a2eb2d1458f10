// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
)

// TestMerkle tests the BuildMerkleTreeStore API against the merkle root of
// the genesis block.
func TestMerkle(t *testing.T) {
	block := util.NewBlock(chaincfg.MainNetParams.GenesisBlock)
	merkles := BuildMerkleTreeStore(block.Transactions())
	calculatedMerkleRoot := merkles[len(merkles)-1]
	wantMerkle := &chaincfg.MainNetParams.GenesisBlock.Header.MerkleRoot
	if !wantMerkle.IsEqual(calculatedMerkleRoot) {
		t.Errorf("BuildMerkleTreeStore: merkle root mismatch - "+
			"got %v, want %v", calculatedMerkleRoot, wantMerkle)
	}
	if !CalcMerkleRoot(block.Transactions()).IsEqual(wantMerkle) {
		t.Errorf("CalcMerkleRoot: merkle root mismatch")
	}
}

func merkleTestTxs(count int) []*util.Tx {
	txs := make([]*util.Tx, count)
	for i := range txs {
		tx := appmessage.NewMsgTx(appmessage.TxVersion)
		tx.AddTxOut(appmessage.NewTxOut(uint64(i), OpTrueScript))
		txs[i] = util.NewTx(tx)
	}
	return txs
}

// TestMerkleBranch checks that the branch of every transaction folds back
// to the merkle root, for balanced and unbalanced trees.
func TestMerkleBranch(t *testing.T) {
	for count := 1; count <= 9; count++ {
		txs := merkleTestTxs(count)
		root := CalcMerkleRoot(txs)
		for i, tx := range txs {
			branch := MerkleBranch(txs, i)
			got := CheckMerkleBranch(tx.Hash(), branch, i)
			if !got.IsEqual(root) {
				t.Errorf("%d transactions, index %d: branch folds to %s, "+
					"want %s", count, i, got, root)
			}
		}

		// A branch is not valid for another position.
		if count > 1 {
			branch := MerkleBranch(txs, 0)
			got := CheckMerkleBranch(txs[1].Hash(), branch, 0)
			if got.IsEqual(root) {
				t.Errorf("%d transactions: branch of index 0 unexpectedly "+
					"proves index 1", count)
			}
		}
	}

	if branch := MerkleBranch(merkleTestTxs(3), 3); branch != nil {
		t.Errorf("MerkleBranch: expected nil for an out of range index, got %v", branch)
	}
}
