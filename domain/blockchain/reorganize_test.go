package blockchain

import (
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func compareChainState(t *testing.T, name string, got, want *BlockChain) {
	gotBest, wantBest := got.BestSnapshot(), want.BestSnapshot()
	if gotBest.Hash != wantBest.Hash || gotBest.Height != wantBest.Height {
		t.Errorf("%s: best tip: got %s at %d, want %s at %d", name,
			gotBest.Hash, gotBest.Height, wantBest.Hash, wantBest.Height)
	}
	if gotBest.UxoCommitment != wantBest.UxoCommitment {
		t.Errorf("%s: UXO commitment: got %s, want %s", name,
			gotBest.UxoCommitment, wantBest.UxoCommitment)
	}
	gotEntries, wantEntries := uxoEntriesForTest(t, got), uxoEntriesForTest(t, want)
	if !reflect.DeepEqual(gotEntries, wantEntries) {
		t.Errorf("%s: UXO index differs: got %s, want %s", name,
			spew.Sdump(gotEntries), spew.Sdump(wantEntries))
	}
}

// TestReorganizeMatchesDirectConnection checks that switching to a branch
// leaves the same UXO index as connecting that branch from the start.
func TestReorganizeMatchesDirectConnection(t *testing.T) {
	bc, teardown := setupTestChain(t, "TestReorganizeMatchesDirectConnection")
	defer teardown()

	prefix := matureChain(t, bc)
	tip := prefix[len(prefix)-1]
	funding := coinbaseOf(prefix[0])

	// Both branches spend the same output, to different transactions.
	spendA := SpendOutputTx(funding, 0, 3000)
	a1 := buildBlock(t, bc, tip.Hash(), []*appmessage.MsgTx{spendA}, 0)
	processBlock(t, bc, a1)
	spendA2 := SpendOutputTx(spendA, 0, 2000)
	a2 := buildBlock(t, bc, a1.Hash(), []*appmessage.MsgTx{spendA2}, 0)
	processBlock(t, bc, a2)

	spendB := SpendOutputTx(funding, 0, 2500)
	b1 := buildBlock(t, bc, tip.Hash(), []*appmessage.MsgTx{spendB}, 1)
	processBlock(t, bc, b1)
	branchB := []*util.Block{b1}
	branchB = append(branchB, extendChain(t, bc, b1.Hash(), 2, 1)...)

	if got := bc.BestSnapshot().Hash; got != *branchB[2].Hash() {
		t.Fatalf("best tip: got %s, want %s", got, branchB[2].Hash())
	}
	if entry, _ := bc.FetchUxoEntry(spendA.TxID()); entry != nil {
		t.Errorf("transaction of the detached branch is still indexed")
	}

	direct, directTeardown := setupTestChain(t, "TestReorganizeMatchesDirectConnection-direct")
	defer directTeardown()
	for _, block := range append(prefix, branchB...) {
		processBlock(t, direct, block)
	}
	compareChainState(t, "reorganized", bc, direct)

	reopened, err := ReopenChainForTest(bc, false)
	if err != nil {
		t.Fatalf("ReopenChainForTest: %s", err)
	}
	compareChainState(t, "reopened", reopened, direct)

	reindexed, err := ReopenChainForTest(bc, true)
	if err != nil {
		t.Fatalf("ReopenChainForTest with reindex: %s", err)
	}
	compareChainState(t, "reindexed", reindexed, direct)
}

// TestFailedReorganizeKeepsBestChain checks that a branch failing to
// connect midway leaves the previous best chain untouched.
func TestFailedReorganizeKeepsBestChain(t *testing.T) {
	bc, teardown := setupTestChain(t, "TestFailedReorganizeKeepsBestChain")
	defer teardown()

	prefix := extendChain(t, bc, bc.params.GenesisHash, 1, 0)
	a1 := buildBlock(t, bc, prefix[0].Hash(), nil, 0)
	processBlock(t, bc, a1)
	before := bc.BestSnapshot()
	entriesBefore := uxoEntriesForTest(t, bc)

	b1 := buildBlock(t, bc, prefix[0].Hash(), nil, 1)
	processBlock(t, bc, b1)

	missing := SpendOutputTx(appmessage.NewMsgTx(appmessage.TxVersion), 0, 1)
	missing.TxIn[0].PreviousOutpoint.TxID = chainhash.Hash{0xaa}
	b2 := buildBlock(t, bc, b1.Hash(), []*appmessage.MsgTx{missing}, 1)
	_, err := bc.ProcessBlock(b2, BFNone)
	if !IsRuleErrorCode(err, ErrMissingTxOut) {
		t.Fatalf("ProcessBlock(B2): got %v, want %s", err, ErrMissingTxOut)
	}

	after := bc.BestSnapshot()
	if after.Hash != before.Hash || after.UxoCommitment != before.UxoCommitment {
		t.Errorf("best state changed by a failed reorganization")
	}
	if !reflect.DeepEqual(uxoEntriesForTest(t, bc), entriesBefore) {
		t.Errorf("UXO index changed by a failed reorganization")
	}
	if !bc.IsInMainChain(a1.Hash()) || bc.IsInMainChain(b1.Hash()) {
		t.Errorf("main chain membership changed by a failed reorganization")
	}
	if !bc.IsKnownInvalid(b2.Hash()) {
		t.Errorf("B2 is not known invalid")
	}
	if bc.IsKnownInvalid(b1.Hash()) {
		t.Errorf("B1 is known invalid although it connects")
	}
	if bc.IsHalted() {
		t.Fatalf("chain halted after a recoverable failure")
	}

	b3 := buildBlock(t, bc, b2.Hash(), nil, 1)
	_, err = bc.ProcessBlock(b3, BFNone)
	if !IsRuleErrorCode(err, ErrInvalidAncestorBlock) {
		t.Errorf("ProcessBlock(B3): got %v, want %s", err, ErrInvalidAncestorBlock)
	}

	// B3 is indexed without its body, which must not make B4 an orphan.
	b4 := buildBlock(t, bc, b3.Hash(), nil, 1)
	isOrphan, err := bc.ProcessBlock(b4, BFNone)
	if !IsRuleErrorCode(err, ErrInvalidAncestorBlock) {
		t.Errorf("ProcessBlock(B4): got %v, want %s", err, ErrInvalidAncestorBlock)
	}
	if isOrphan || bc.IsKnownOrphan(b4.Hash()) {
		t.Errorf("B4 was pooled as an orphan")
	}
	if !bc.IsKnownInvalid(b4.Hash()) {
		t.Errorf("B4 is not known invalid")
	}

	b2Valid := buildBlock(t, bc, b1.Hash(), nil, 2)
	processBlock(t, bc, b2Valid)
	if got := bc.BestSnapshot().Hash; got != *b2Valid.Hash() {
		t.Errorf("best tip: got %s, want %s", got, b2Valid.Hash())
	}
}

// TestDisconnectFailureHaltsChain removes the index entry of a main chain
// coinbase, so the block holding it cannot be disconnected, and checks that
// the chain then refuses every change and every read of its state.
func TestDisconnectFailureHaltsChain(t *testing.T) {
	bc, teardown := setupTestChain(t, "TestDisconnectFailureHaltsChain")
	defer teardown()

	a1 := buildBlock(t, bc, bc.params.GenesisHash, nil, 0)
	processBlock(t, bc, a1)
	err := RemoveUxoEntryForTest(bc, coinbaseOf(a1).TxID())
	if err != nil {
		t.Fatalf("RemoveUxoEntryForTest: %s", err)
	}

	b1 := buildBlock(t, bc, bc.params.GenesisHash, nil, 1)
	processBlock(t, bc, b1)
	b2 := buildBlock(t, bc, b1.Hash(), nil, 1)
	_, err = bc.ProcessBlock(b2, BFNone)
	if !errors.Is(err, ErrChainHalted) {
		t.Fatalf("ProcessBlock(B2): got %v, want %s", err, ErrChainHalted)
	}
	if !bc.IsHalted() {
		t.Fatalf("chain is not halted")
	}
	if got := testutil.ToFloat64(prometheusChainHalted); got != 1 {
		t.Errorf("halted gauge: got %f, want 1", got)
	}
	if got := bc.BestSnapshot().Hash; got != *a1.Hash() {
		t.Errorf("best tip: got %s, want %s", got, a1.Hash())
	}

	a2 := buildBlock(t, bc, a1.Hash(), nil, 0)
	_, err = bc.ProcessBlock(a2, BFNone)
	if !errors.Is(err, ErrChainHalted) {
		t.Errorf("ProcessBlock(A2): got %v, want %s", err, ErrChainHalted)
	}

	tests := []struct {
		name string
		read func() error
	}{
		{
			name: "FetchUxoEntry",
			read: func() error {
				_, err := bc.FetchUxoEntry(coinbaseOf(b1).TxID())
				return err
			},
		},
		{
			name: "FetchUxoView",
			read: func() error {
				_, err := bc.FetchUxoView(util.NewTx(SpendOutputTx(coinbaseOf(b1), 0, 1)))
				return err
			},
		},
		{
			name: "BlockLocator",
			read: func() error {
				_, err := bc.BlockLocator(nil)
				return err
			},
		},
		{
			name: "FindCommonAncestor",
			read: func() error {
				_, err := bc.FindCommonAncestor(BlockLocator{a1.Hash()})
				return err
			},
		},
		{
			name: "MainChainHashesAfter",
			read: func() error {
				_, err := bc.MainChainHashesAfter(BlockLocator{bc.params.GenesisHash}, 10)
				return err
			},
		},
		{
			name: "BlockHashByHeight",
			read: func() error {
				_, err := bc.BlockHashByHeight(1)
				return err
			},
		},
		{
			name: "CheckConnectBlockTemplate",
			read: func() error {
				return bc.CheckConnectBlockTemplate(a2)
			},
		},
	}
	for _, test := range tests {
		err := test.read()
		if !errors.Is(err, ErrChainHalted) {
			t.Errorf("%s: got %v, want %s", test.name, err, ErrChainHalted)
		}
	}
}
