package rpccontext

import (
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("RPCS")
