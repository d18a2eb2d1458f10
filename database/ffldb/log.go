package ffldb

import "github.com/ledgerkit/ledgerd/infrastructure/logger"

var log = logger.RegisterSubSystem("BCDB")
