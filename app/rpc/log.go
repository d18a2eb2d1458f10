package rpc

import (
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util/panics"
)

var log = logger.RegisterSubSystem("RPCS")
var spawn = panics.GoroutineWrapperFunc(log)
