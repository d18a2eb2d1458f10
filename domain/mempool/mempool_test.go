package mempool

import (
	"testing"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
)

// poolHarness bundles a chain whose first coinbases are spendable by the
// next block with a mempool validating against it.
type poolHarness struct {
	t         *testing.T
	chain     *blockchain.BlockChain
	mempool   *Mempool
	coinbases []*appmessage.MsgTx
	changes   []*blockchain.ChainChangedNotificationData
}

func newPoolHarness(t *testing.T, name string, spendableCount int) (*poolHarness, func()) {
	params := &chaincfg.RegressionNetParams
	bc, teardown, err := blockchain.ChainSetup(name, blockchain.Config{Params: params})
	if err != nil {
		t.Fatalf("Failed to setup chain instance: %v", err)
	}
	count := int(params.CoinbaseMaturity) + spendableCount - 1
	blocks, err := blockchain.ExtendChainForTest(bc, params.GenesisHash, count, 0)
	if err != nil {
		teardown()
		t.Fatalf("ExtendChainForTest: %s", err)
	}

	harness := &poolHarness{
		t:       t,
		chain:   bc,
		mempool: New(DefaultConfig(params), bc),
	}
	for _, block := range blocks[:spendableCount] {
		harness.coinbases = append(harness.coinbases, block.MsgBlock().Transactions[0])
	}
	bc.Subscribe(func(notification *blockchain.Notification) {
		if data, ok := notification.Data.(*blockchain.ChainChangedNotificationData); ok {
			harness.changes = append(harness.changes, data)
		}
	})
	return harness, teardown
}

// spend returns a transaction spending the first output of prevTx and
// paying fee.
func (h *poolHarness) spend(prevTx *appmessage.MsgTx, fee uint64) *appmessage.MsgTx {
	return blockchain.SpendOutputTx(prevTx, 0, prevTx.TxOut[0].Value-fee)
}

func (h *poolHarness) accept(tx *appmessage.MsgTx) *AcceptResult {
	result, err := h.mempool.ValidateAndInsertTransaction(util.NewTx(tx), true)
	if err != nil {
		h.t.Fatalf("ValidateAndInsertTransaction(%s): %s", tx.TxID(), err)
	}
	return result
}

// mine builds a block with txs on top of parent, processes it and hands
// the resulting chain change to the mempool.
func (h *poolHarness) mine(parent *appmessage.MsgBlock, txs []*appmessage.MsgTx,
	extraNonce int64) *util.Block {

	parentHash := h.chain.BestSnapshot().Hash
	if parent != nil {
		parentHash = *parent.Header.BlockHash()
	}
	block, err := blockchain.BuildBlockForTest(h.chain, &parentHash, txs, extraNonce)
	if err != nil {
		h.t.Fatalf("BuildBlockForTest: %s", err)
	}
	h.changes = nil
	isOrphan, err := h.chain.ProcessBlock(block, blockchain.BFNone)
	if err != nil {
		h.t.Fatalf("ProcessBlock: %s", err)
	}
	if isOrphan {
		h.t.Fatalf("ProcessBlock: unexpectedly an orphan")
	}
	for _, data := range h.changes {
		h.mempool.HandleChainChanged(data)
	}
	return block
}

func expectRejectCode(t *testing.T, err error, want RejectCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected rejection with %s, got success", want)
	}
	code, ok := ExtractRejectCode(err)
	if !ok {
		t.Fatalf("no reject code in %v", err)
	}
	if code != want {
		t.Fatalf("reject code: got %s, want %s (%v)", code, want, err)
	}
}

func TestAcceptTransaction(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestAcceptTransaction", 1)
	defer teardown()

	tx := h.spend(h.coinbases[0], 1000)
	result := h.accept(tx)
	if result.IsOrphan {
		t.Fatalf("transaction unexpectedly an orphan")
	}
	if len(result.AcceptedTransactions) != 1 ||
		*result.AcceptedTransactions[0].ID() != *tx.TxID() {
		t.Fatalf("unexpected accepted transactions %v", result.AcceptedTransactions)
	}
	if !h.mempool.HaveTransaction(tx.TxID()) || h.mempool.Count() != 1 {
		t.Fatalf("transaction is not in the pool")
	}

	descs := h.mempool.MiningDescs()
	if len(descs) != 1 {
		t.Fatalf("got %d mining descriptors, want 1", len(descs))
	}
	if descs[0].Fee != 1000 {
		t.Errorf("fee: got %d, want 1000", descs[0].Fee)
	}
	wantFeePerKB := uint64(1000 * 1000 / tx.SerializeSize())
	if descs[0].FeePerKB != wantFeePerKB {
		t.Errorf("fee per kB: got %d, want %d", descs[0].FeePerKB, wantFeePerKB)
	}

	_, err := h.mempool.ValidateAndInsertTransaction(util.NewTx(tx), true)
	expectRejectCode(t, err, RejectDuplicate)
}

func TestRejectPoolDoubleSpend(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestRejectPoolDoubleSpend", 1)
	defer teardown()

	h.accept(h.spend(h.coinbases[0], 1000))
	conflict := h.spend(h.coinbases[0], 2000)
	_, err := h.mempool.ValidateAndInsertTransaction(util.NewTx(conflict), true)
	expectRejectCode(t, err, RejectDuplicate)
	if h.mempool.HaveTransaction(conflict.TxID()) {
		t.Fatalf("double spend entered the pool")
	}
}

func TestRejectInvalidTransactions(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestRejectInvalidTransactions", 2)
	defer teardown()

	coinbase, err := blockchain.CoinbaseTxForTest(1000, 0, 5000, blockchain.OpTrueScript)
	if err != nil {
		t.Fatalf("CoinbaseTxForTest: %s", err)
	}
	_, err = h.mempool.ValidateAndInsertTransaction(util.NewTx(coinbase), true)
	expectRejectCode(t, err, RejectInvalid)

	h.accept(h.spend(h.coinbases[0], 1000))

	tooHigh := blockchain.SpendOutputTx(h.coinbases[1], 0, h.coinbases[1].TxOut[0].Value+1)
	_, err = h.mempool.ValidateAndInsertTransaction(util.NewTx(tooHigh), true)
	expectRejectCode(t, err, RejectInvalid)
	if !blockchain.IsRuleErrorCode(err, blockchain.ErrSpendTooHigh) {
		t.Fatalf("expected %s, got %v", blockchain.ErrSpendTooHigh, err)
	}

	nonFinal := h.spend(h.coinbases[1], 1000)
	nonFinal.LockTime = uint32(h.chain.BestSnapshot().Height + 10)
	nonFinal.TxIn[0].Sequence = 0
	_, err = h.mempool.ValidateAndInsertTransaction(util.NewTx(nonFinal), true)
	expectRejectCode(t, err, RejectFinality)

	if h.mempool.Count() != 1 {
		t.Fatalf("pool holds %d transactions, want 1", h.mempool.Count())
	}
}

func TestRejectImmatureSpend(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestRejectImmatureSpend", 1)
	defer teardown()

	tip, err := h.chain.BlockByHash(&h.chain.BestSnapshot().Hash)
	if err != nil {
		t.Fatalf("BlockByHash: %s", err)
	}
	immature := h.spend(tip.MsgBlock().Transactions[0], 1000)
	_, err = h.mempool.ValidateAndInsertTransaction(util.NewTx(immature), true)
	expectRejectCode(t, err, RejectInvalid)
	if !blockchain.IsRuleErrorCode(err, blockchain.ErrImmatureSpend) {
		t.Fatalf("expected %s, got %v", blockchain.ErrImmatureSpend, err)
	}
}

func TestFeePolicy(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestFeePolicy", 1)
	defer teardown()

	// A small transaction spending old coins has enough priority to be
	// relayed for free.
	free := h.spend(h.coinbases[0], 0)
	h.accept(free)

	// Its child spends an unmined output, so it has no priority and must
	// pay the minimum relay fee.
	child := h.spend(free, 0)
	_, err := h.mempool.ValidateAndInsertTransaction(util.NewTx(child), true)
	expectRejectCode(t, err, RejectInsufficientFee)

	minFee := uint64(calcMinRequiredTxRelayFee(int64(child.SerializeSize()), DefaultMinRelayTxFee))
	h.accept(h.spend(free, minFee))
	if h.mempool.Count() != 2 {
		t.Fatalf("pool holds %d transactions, want 2", h.mempool.Count())
	}
}

func TestOrphanTransactions(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestOrphanTransactions", 1)
	defer teardown()

	parent := h.spend(h.coinbases[0], 1000)
	child := h.spend(parent, 1000)
	grandchild := h.spend(child, 1000)

	_, err := h.mempool.ValidateAndInsertTransaction(util.NewTx(child), false)
	expectRejectCode(t, err, RejectBadOrphan)
	if h.mempool.HaveTransaction(child.TxID()) {
		t.Fatalf("rejected orphan entered the orphan pool")
	}

	for _, tx := range []*appmessage.MsgTx{grandchild, child} {
		result := h.accept(tx)
		if !result.IsOrphan {
			t.Fatalf("transaction %s is not an orphan", tx.TxID())
		}
		if len(result.MissingOutpoints) != 1 ||
			result.MissingOutpoints[0] != tx.TxIn[0].PreviousOutpoint {
			t.Fatalf("unexpected missing outpoints %v", result.MissingOutpoints)
		}
		if !h.mempool.IsOrphanInPool(tx.TxID()) {
			t.Fatalf("transaction %s is not in the orphan pool", tx.TxID())
		}
	}

	result := h.accept(parent)
	if len(result.AcceptedTransactions) != 3 {
		t.Fatalf("got %d accepted transactions, want 3", len(result.AcceptedTransactions))
	}
	for i, want := range []*appmessage.MsgTx{parent, child, grandchild} {
		if *result.AcceptedTransactions[i].ID() != *want.TxID() {
			t.Fatalf("accepted transaction %d: got %s, want %s", i,
				result.AcceptedTransactions[i].ID(), want.TxID())
		}
	}
	if h.mempool.OrphanCount() != 0 || h.mempool.Count() != 3 {
		t.Fatalf("pool holds %d transactions and %d orphans, want 3 and 0",
			h.mempool.Count(), h.mempool.OrphanCount())
	}
}

func TestOrphanPoolLimit(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestOrphanPoolLimit", 1)
	defer teardown()
	h.mempool.config.MaxOrphanTxs = 2

	parent := h.spend(h.coinbases[0], 1000)
	for i := uint32(0); i < 4; i++ {
		orphan := blockchain.SpendOutputTx(parent, i, 1000)
		h.accept(orphan)
	}
	if h.mempool.OrphanCount() != 2 {
		t.Fatalf("orphan pool holds %d transactions, want 2", h.mempool.OrphanCount())
	}
}

func TestRemoveConflicting(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestRemoveConflicting", 1)
	defer teardown()

	parent := h.spend(h.coinbases[0], 1000)
	child := h.spend(parent, 1000)
	orphan := h.spend(h.spend(child, 1000), 1000)
	h.accept(parent)
	h.accept(child)
	h.accept(orphan)

	h.mempool.RemoveConflicting(parent.TxIn[0].PreviousOutpoint)
	if h.mempool.Count() != 0 {
		t.Fatalf("pool holds %d transactions, want 0", h.mempool.Count())
	}
	if h.mempool.OrphanCount() != 1 {
		t.Fatalf("orphan pool holds %d transactions, want 1", h.mempool.OrphanCount())
	}

	// The outpoint can be spent again once its spender is gone.
	h.accept(h.spend(h.coinbases[0], 3000))
}

func TestHandleChainChangedConfirmed(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestHandleChainChangedConfirmed", 1)
	defer teardown()

	parent := h.spend(h.coinbases[0], 1000)
	child := h.spend(parent, 1000)
	h.accept(parent)
	h.accept(child)

	h.mine(nil, []*appmessage.MsgTx{parent}, 1)
	if h.mempool.HaveTransaction(parent.TxID()) {
		t.Fatalf("confirmed transaction is still in the pool")
	}
	if !h.mempool.HaveTransaction(child.TxID()) {
		t.Fatalf("child of the confirmed transaction left the pool")
	}
	childEntry := h.mempool.transactionsPool.allTransactions[*child.TxID()]
	if len(childEntry.parentsInPool) != 0 {
		t.Fatalf("child still links %d pool parents", len(childEntry.parentsInPool))
	}

	// The child now spends a confirmed output and can be mined on its own.
	h.mine(nil, []*appmessage.MsgTx{child}, 2)
	if h.mempool.Count() != 0 {
		t.Fatalf("pool holds %d transactions, want 0", h.mempool.Count())
	}
}

func TestHandleChainChangedConflict(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestHandleChainChangedConflict", 1)
	defer teardown()

	inPool := h.spend(h.coinbases[0], 1000)
	redeemer := h.spend(inPool, 1000)
	h.accept(inPool)
	h.accept(redeemer)

	mined := h.spend(h.coinbases[0], 5000)
	h.mine(nil, []*appmessage.MsgTx{mined}, 1)
	if h.mempool.Count() != 0 {
		t.Fatalf("pool holds %d transactions after a conflicting block, want 0",
			h.mempool.Count())
	}
}

func TestHandleChainChangedReorganize(t *testing.T) {
	h, teardown := newPoolHarness(t, "TestHandleChainChangedReorganize", 1)
	defer teardown()

	forkPoint, err := h.chain.BlockByHash(&h.chain.BestSnapshot().Hash)
	if err != nil {
		t.Fatalf("BlockByHash: %s", err)
	}

	tx := h.spend(h.coinbases[0], 1000)
	h.accept(tx)
	h.mine(nil, []*appmessage.MsgTx{tx}, 1)
	if h.mempool.Count() != 0 {
		t.Fatalf("pool holds %d transactions, want 0", h.mempool.Count())
	}

	// A longer side chain without the transaction takes over and the
	// transaction returns to the pool.
	sideBlock := h.mine(forkPoint.MsgBlock(), nil, 2)
	sideTip := h.mine(sideBlock.MsgBlock(), nil, 2)
	if h.chain.BestSnapshot().Hash != *sideTip.Hash() {
		t.Fatalf("side chain did not become the best chain")
	}
	if !h.mempool.HaveTransaction(tx.TxID()) {
		t.Fatalf("transaction of the disconnected block is not in the pool")
	}

	// The transaction is still exclusive: a double spend is refused.
	_, err = h.mempool.ValidateAndInsertTransaction(util.NewTx(h.spend(h.coinbases[0], 2000)), true)
	expectRejectCode(t, err, RejectDuplicate)
}
