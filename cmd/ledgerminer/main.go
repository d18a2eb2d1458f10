package main

import (
	"fmt"
	"os"

	"github.com/ledgerkit/ledgerd/infrastructure/os/signal"
	"github.com/ledgerkit/ledgerd/util/panics"
	"github.com/ledgerkit/ledgerd/util/profiling"
	"github.com/ledgerkit/ledgerd/version"
	"github.com/pkg/errors"
)

func main() {
	defer panics.HandlePanic(log, "MAIN", nil)
	interrupt := signal.InterruptListener()

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}
	initLog(defaultLogFile, defaultErrLogFile)

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, log)
	}

	client, err := connectToServer(cfg)
	if err != nil {
		panic(errors.Wrap(err, "Error connecting to the RPC server"))
	}
	defer client.Close()

	doneChan := make(chan struct{})
	spawn("mineLoop", func() {
		err = mineLoop(client, cfg.NumberOfBlocks, cfg.payToScript)
		if err != nil {
			panic(errors.Errorf("Error in mine loop: %s", err))
		}
		doneChan <- struct{}{}
	})

	select {
	case <-doneChan:
	case <-interrupt:
	}
}
