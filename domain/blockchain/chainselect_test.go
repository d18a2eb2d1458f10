package blockchain

import (
	"testing"

	"github.com/ledgerkit/ledgerd/util/chainhash"
)

func hashesEqual(a []*chainhash.Hash, b ...*chainhash.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].IsEqual(b[i]) {
			return false
		}
	}
	return true
}

// TestChainSelection builds G <- B1 and G <- B1' <- B2'. B1' has the same
// work as B1 and must not displace it; B2' must.
func TestChainSelection(t *testing.T) {
	bc, teardown := setupTestChain(t, "TestChainSelection")
	defer teardown()

	var added []*BlockAddedNotificationData
	var changes []*ChainChangedNotificationData
	bc.Subscribe(func(notification *Notification) {
		switch data := notification.Data.(type) {
		case *BlockAddedNotificationData:
			added = append(added, data)
		case *ChainChangedNotificationData:
			changes = append(changes, data)
		}
	})

	genesisHash := bc.params.GenesisHash
	b1 := buildBlock(t, bc, genesisHash, nil, 1)
	processBlock(t, bc, b1)
	if got := bc.BestSnapshot().Hash; got != *b1.Hash() {
		t.Fatalf("best tip after B1: got %s, want %s", got, b1.Hash())
	}

	b1Alt := buildBlock(t, bc, genesisHash, nil, 2)
	processBlock(t, bc, b1Alt)
	if got := bc.BestSnapshot().Hash; got != *b1.Hash() {
		t.Fatalf("best tip after B1': got %s, want B1 %s", got, b1.Hash())
	}
	if bc.IsInMainChain(b1Alt.Hash()) {
		t.Errorf("B1' is unexpectedly in the main chain")
	}
	if !bc.HaveBlock(b1Alt.Hash()) || bc.IsKnownInvalid(b1Alt.Hash()) {
		t.Errorf("B1' is not stored as a valid alternative")
	}
	if len(changes) != 1 {
		t.Fatalf("got %d chain changes after B1', want 1", len(changes))
	}
	if added[len(added)-1].OnMainChain {
		t.Errorf("B1' reported as added on the main chain")
	}

	b2Alt := buildBlock(t, bc, b1Alt.Hash(), nil, 2)
	processBlock(t, bc, b2Alt)
	best := bc.BestSnapshot()
	if best.Hash != *b2Alt.Hash() || best.Height != 2 {
		t.Fatalf("best tip after B2': got %s at %d, want %s at 2", best.Hash, best.Height, b2Alt.Hash())
	}
	if bc.IsInMainChain(b1.Hash()) || !bc.IsInMainChain(b1Alt.Hash()) {
		t.Errorf("main chain membership was not switched")
	}
	if len(changes) != 2 {
		t.Fatalf("got %d chain changes after B2', want 2", len(changes))
	}
	reorg := changes[1]
	if !hashesEqual(reorg.DisconnectedBlockHashes, b1.Hash()) {
		t.Errorf("disconnected blocks: got %v, want [%s]", reorg.DisconnectedBlockHashes, b1.Hash())
	}
	if !hashesEqual(reorg.ConnectedBlockHashes, b1Alt.Hash(), b2Alt.Hash()) {
		t.Errorf("connected blocks: got %v, want [%s %s]",
			reorg.ConnectedBlockHashes, b1Alt.Hash(), b2Alt.Hash())
	}
	if !added[len(added)-1].OnMainChain {
		t.Errorf("B2' not reported as added on the main chain")
	}

	hash, err := bc.BlockHashByHeight(1)
	if err != nil {
		t.Fatalf("BlockHashByHeight: %s", err)
	}
	if !hash.IsEqual(b1Alt.Hash()) {
		t.Errorf("BlockHashByHeight(1): got %s, want %s", hash, b1Alt.Hash())
	}
	height, err := bc.BlockHeightByHash(b1.Hash())
	if err != nil || height != 1 {
		t.Errorf("BlockHeightByHash(B1): got %d, %v; want 1", height, err)
	}
}

// TestBestTipHasMostWork feeds several competing branches and checks the
// best tip always has the most cumulative work.
func TestBestTipHasMostWork(t *testing.T) {
	bc, teardown := setupTestChain(t, "TestBestTipHasMostWork")
	defer teardown()

	genesisHash := bc.params.GenesisHash
	short := extendChain(t, bc, genesisHash, 3, 1)
	long := extendChain(t, bc, genesisHash, 5, 2)
	branch := extendChain(t, bc, short[2].Hash(), 1, 3)

	best := bc.BestSnapshot()
	if best.Hash != *long[4].Hash() {
		t.Fatalf("best tip: got %s, want %s", best.Hash, long[4].Hash())
	}
	bc.chainLock.RLock()
	for id := nodeID(0); int(id) < bc.index.nodeCount(); id++ {
		if bc.index.cumulativeWork(id).Cmp(best.CumulativeWork) > 0 {
			t.Errorf("node %s has more work than the best tip", bc.index.node(id))
		}
	}
	bc.chainLock.RUnlock()

	extendChain(t, bc, branch[0].Hash(), 2, 3)
	if best := bc.BestSnapshot(); best.Height != 6 {
		t.Errorf("best height: got %d, want 6", best.Height)
	}
}

func TestProcessDuplicateBlock(t *testing.T) {
	bc, teardown := setupTestChain(t, "TestProcessDuplicateBlock")
	defer teardown()

	block := buildBlock(t, bc, bc.params.GenesisHash, nil, 0)
	processBlock(t, bc, block)
	_, err := bc.ProcessBlock(block, BFNone)
	if !IsRuleErrorCode(err, ErrDuplicateBlock) {
		t.Errorf("ProcessBlock: got %v, want %s", err, ErrDuplicateBlock)
	}
}
