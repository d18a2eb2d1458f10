package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/domain"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/domain/mempool"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/domain/wallettx"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
	"github.com/ledgerkit/ledgerd/infrastructure/metrics"
	"github.com/ledgerkit/ledgerd/util/panics"
)

// ComponentManager is a wrapper for all the ledgerd services
type ComponentManager struct {
	cfg           *config.Config
	domain        domain.Domain
	walletTracker *wallettx.Tracker
	rpcManager    *rpc.Manager
	metricsServer *metrics.Server

	started, shutdown int32
}

// Start launches all the ledgerd services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting ledgerd")

	if a.rpcManager != nil {
		err := a.rpcManager.Start()
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Error starting the RPC server: %+v", err))
		}
	}

	if a.cfg.MetricsListen != "" {
		metricsServer, err := metrics.Start(a.cfg.MetricsListen)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Error starting the metrics server: %+v", err))
		}
		a.metricsServer = metricsServer
	}

	tip, err := a.domain.BestTip()
	if err != nil {
		log.Errorf("Chain state is unavailable: %s", err)
		return
	}
	log.Infof("Chain tip is %s at height %d", tip.Hash, tip.Height)
}

// Stop gracefully shuts down all the ledgerd services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Ledgerd is already in the process of shutting down")
		return
	}

	log.Warnf("Ledgerd shutting down")

	if a.rpcManager != nil {
		a.rpcManager.Stop()
	}

	if a.metricsServer != nil {
		const metricsStopTimeout = 2 * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), metricsStopTimeout)
		defer cancel()
		err := a.metricsServer.Stop(ctx)
		if err != nil {
			log.Errorf("Error stopping the metrics server: %+v", err)
		}
	}
}

// Domain returns the Domain associated with this ComponentManager
func (a *ComponentManager) Domain() domain.Domain {
	return a.domain
}

// WalletTracker returns the wallet transaction tracker associated with this
// ComponentManager
func (a *ComponentManager) WalletTracker() *wallettx.Tracker {
	return a.walletTracker
}

// NewComponentManager returns a new ComponentManager instance.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, databaseContext *dbaccess.DatabaseContext) (
	*ComponentManager, error) {

	chainConfig := &blockchain.Config{
		DatabaseContext:   databaseContext,
		Params:            cfg.NetParams(),
		TimeSource:        blockchain.NewTimeSource(),
		SigCache:          txscript.NewSigCache(cfg.SigCacheMaxSize),
		ReindexChainState: cfg.ReindexChainState,
	}
	mempoolConfig := mempool.DefaultConfig(cfg.NetParams())
	mempoolConfig.MaxOrphanTxs = cfg.MaxOrphanTxs
	mempoolConfig.MinRelayTxFee = cfg.MinRelayTxFee
	mempoolConfig.AcceptNonStd = cfg.RelayNonStd

	domainInstance, err := domain.New(&domain.Config{
		Chain:   chainConfig,
		Mempool: mempoolConfig,
		Mining:  &mining.Policy{BlockMaxSize: cfg.BlockMaxSize},
	})
	if err != nil {
		return nil, err
	}

	walletTracker := wallettx.NewTracker()
	walletTracker.Attach(domainInstance.Chain())

	var rpcManager *rpc.Manager
	if !cfg.DisableRPC {
		rpcManager = rpc.NewManager(cfg, domainInstance)
	}

	return &ComponentManager{
		cfg:           cfg,
		domain:        domainInstance,
		walletTracker: walletTracker,
		rpcManager:    rpcManager,
	}, nil
}
