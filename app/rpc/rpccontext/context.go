package rpccontext

import (
	"github.com/ledgerkit/ledgerd/domain"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
)

// Context represents the RPC context
type Context struct {
	Config *config.Config
	Domain domain.Domain
}

// NewContext creates a new RPC context
func NewContext(cfg *config.Config, domain domain.Domain) *Context {
	return &Context{
		Config: cfg,
		Domain: domain,
	}
}
