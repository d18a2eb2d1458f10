package rpchandlers

import (
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("RPCS")
