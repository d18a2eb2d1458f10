package main

import (
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util/panics"
)

var (
	log   = logger.RegisterSubSystem("MINE")
	spawn = panics.GoroutineWrapperFunc(log)
)

func initLog(logFile, errLogFile string) {
	logger.InitLog(logFile, errLogFile)
}
