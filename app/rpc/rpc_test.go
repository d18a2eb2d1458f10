package rpc_test

import (
	"testing"

	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/domain"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/domain/mempool"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
	"github.com/ledgerkit/ledgerd/infrastructure/network/rpcclient"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func startServerForTest(t *testing.T) (domain.Domain, *rpcclient.RPCClient) {
	databaseContext, err := dbaccess.New(t.TempDir())
	if err != nil {
		t.Fatalf("dbaccess.New: %+v", err)
	}
	t.Cleanup(func() { databaseContext.Close() })

	domainInstance, err := domain.New(&domain.Config{
		Chain: &blockchain.Config{
			DatabaseContext: databaseContext,
			Params:          &chaincfg.RegressionNetParams,
			TimeSource:      blockchain.NewTimeSource(),
		},
	})
	if err != nil {
		t.Fatalf("domain.New: %+v", err)
	}

	cfg := config.DefaultConfig()
	cfg.ActiveNetParams = &chaincfg.RegressionNetParams
	cfg.RPCListeners = []string{"127.0.0.1:0"}

	manager := rpc.NewManager(cfg, domainInstance)
	err = manager.Start()
	if err != nil {
		t.Fatalf("Start: %+v", err)
	}
	t.Cleanup(manager.Stop)

	client, err := rpcclient.NewRPCClient(manager.Addresses()[0].String())
	if err != nil {
		t.Fatalf("NewRPCClient: %+v", err)
	}
	t.Cleanup(func() { client.Close() })
	return domainInstance, client
}

func TestMineThroughRPC(t *testing.T) {
	domainInstance, client := startServerForTest(t)

	block, err := client.GetBlockTemplate(blockchain.OpTrueScript)
	if err != nil {
		t.Fatalf("GetBlockTemplate: %+v", err)
	}
	if !blockchain.SolveBlock(&block.Header) {
		t.Fatalf("SolveBlock failed")
	}
	result, err := client.SubmitBlock(block)
	if err != nil {
		t.Fatalf("SubmitBlock: %+v", err)
	}
	if result.Status != domain.StatusAccepted.String() {
		t.Fatalf("block was %s: %s", result.Status, result.Reason)
	}
	if result.Hash != block.BlockHash().String() {
		t.Fatalf("unexpected hash %s", result.Hash)
	}

	tip, err := client.GetBestTip()
	if err != nil {
		t.Fatalf("GetBestTip: %+v", err)
	}
	if *tip.Hash != *block.BlockHash() || tip.Height != 1 {
		t.Fatalf("unexpected tip %s at height %d", tip.Hash, tip.Height)
	}
	domainTip, err := domainInstance.BestTip()
	if err != nil {
		t.Fatalf("BestTip: %+v", err)
	}
	if tip.CumulativeWork.Cmp(domainTip.CumulativeWork) != 0 {
		t.Fatalf("unexpected cumulative work %s", tip.CumulativeWork)
	}

	locator, err := client.GetBlockLocator(nil)
	if err != nil {
		t.Fatalf("GetBlockLocator: %+v", err)
	}
	if len(locator.BlockLocatorHashes) != 2 || *locator.BlockLocatorHashes[0] != *block.BlockHash() {
		t.Fatalf("unexpected locator %v", locator.BlockLocatorHashes)
	}
	ancestor, err := client.FindCommonAncestor(locator)
	if err != nil {
		t.Fatalf("FindCommonAncestor: %+v", err)
	}
	if *ancestor != *block.BlockHash() {
		t.Fatalf("unexpected common ancestor %s", ancestor)
	}

	// Resubmitting is reported but not an error.
	result, err = client.SubmitBlock(block)
	if err != nil {
		t.Fatalf("SubmitBlock: %+v", err)
	}
	if result.Status != domain.StatusRejected.String() {
		t.Fatalf("duplicate block was %s", result.Status)
	}
}

func TestSubmitMalformedTransactionThroughRPC(t *testing.T) {
	_, client := startServerForTest(t)

	result, err := client.SubmitRawTransaction([]byte{0x01})
	if err != nil {
		t.Fatalf("SubmitRawTransaction: %+v", err)
	}
	if result.Status != domain.StatusRejected.String() {
		t.Fatalf("malformed transaction was %s", result.Status)
	}
	if result.RejectCode != int(mempool.RejectMalformed) {
		t.Fatalf("unexpected reject code %d", result.RejectCode)
	}
}

func TestGetBlockTemplateWithoutMiningAddress(t *testing.T) {
	_, client := startServerForTest(t)

	_, err := client.GetBlockTemplate(nil)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("unexpected error %v", err)
	}
}
