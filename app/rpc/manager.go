package rpc

import (
	"fmt"
	"net"
	"time"

	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"github.com/ledgerkit/ledgerd/domain"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
	"github.com/ledgerkit/ledgerd/util/panics"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

// MaxMessageSize is the largest request or response the RPC server
// handles. It leaves room for a maximum sized block.
const MaxMessageSize = 1024 * 1024 * 10

// Manager is an RPC manager
type Manager struct {
	context   *rpccontext.Context
	server    *grpc.Server
	listeners []net.Listener
}

// NewManager creates a new RPC Manager
func NewManager(cfg *config.Config, domain domain.Domain) *Manager {
	manager := &Manager{
		context: rpccontext.NewContext(cfg, domain),
		server: grpc.NewServer(grpc.MaxRecvMsgSize(MaxMessageSize),
			grpc.MaxSendMsgSize(MaxMessageSize)),
	}
	RegisterNodeServer(manager.server, &nodeServer{context: manager.context})
	return manager
}

// Start listens on every configured RPC address and serves requests in
// the background.
func (m *Manager) Start() error {
	for _, listenAddr := range m.context.Config.RPCListeners {
		listener, err := net.Listen("tcp", listenAddr)
		if err != nil {
			m.closeListeners()
			return errors.Wrapf(err, "RPC error listening on %s", listenAddr)
		}
		m.listeners = append(m.listeners, listener)
	}

	for _, listener := range m.listeners {
		listener := listener
		spawn(fmt.Sprintf("rpc.Manager.Start-Serve-%s", listener.Addr()), func() {
			err := m.server.Serve(listener)
			if err != nil {
				panics.Exit(log, fmt.Sprintf("error serving RPC on %s: %+v", listener.Addr(), err))
			}
		})
		log.Infof("RPC Server listening on %s", listener.Addr())
	}
	return nil
}

// Addresses returns the addresses the manager listens on.
func (m *Manager) Addresses() []net.Addr {
	addresses := make([]net.Addr, len(m.listeners))
	for i, listener := range m.listeners {
		addresses[i] = listener.Addr()
	}
	return addresses
}

// Stop stops the server, waiting a short while for in-flight requests.
func (m *Manager) Stop() {
	const stopTimeout = 2 * time.Second

	stopChan := make(chan struct{})
	go func() {
		m.server.GracefulStop()
		close(stopChan)
	}()

	select {
	case <-stopChan:
	case <-time.After(stopTimeout):
		log.Warnf("Could not gracefully stop RPC server: timed out after %s", stopTimeout)
		m.server.Stop()
	}
}

func (m *Manager) closeListeners() {
	for _, listener := range m.listeners {
		listener.Close()
	}
	m.listeners = nil
}
