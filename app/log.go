package app

import (
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util/panics"
)

var log = logger.RegisterSubSystem("LDGD")
var spawn = panics.GoroutineWrapperFunc(log)
