package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/infrastructure/os/signal"
	"github.com/ledgerkit/ledgerd/util/panics"
	"github.com/ledgerkit/ledgerd/util/profiling"
	"github.com/ledgerkit/ledgerd/version"
	"github.com/pkg/errors"
)

const databaseDirName = "db"

type ledgerdApp struct {
	cfg *config.Config
}

// StartApp starts the ledgerd app, and blocks until it finishes running
func StartApp() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	app := &ledgerdApp{cfg: cfg}

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, log)
	}

	return app.main(signal.InterruptListener())
}

func (app *ledgerdApp) main(interrupt <-chan struct{}) error {
	databaseContext, err := openDB(app.cfg)
	if err != nil {
		log.Errorf("Loading database failed: %+v", err)
		return err
	}
	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := databaseContext.Close()
		if err != nil {
			log.Errorf("Failed to close the database: %s", err)
		}
	}()

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	componentManager, err := NewComponentManager(app.cfg, databaseContext)
	if err != nil {
		log.Errorf("Unable to start ledgerd: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down ledgerd...")

		shutdownDone := make(chan struct{})
		go func() {
			componentManager.Stop()
			shutdownDone <- struct{}{}
		}()

		const shutdownTimeout = 2 * time.Minute

		select {
		case <-shutdownDone:
		case <-time.After(shutdownTimeout):
			log.Criticalf("Graceful shutdown timed out %s. Terminating...", shutdownTimeout)
		}
		log.Infof("Ledgerd shutdown complete")
	}()

	componentManager.Start()

	spawn("app.main-logGoroutineCount", func() {
		const logInterval = time.Minute
		ticker := time.NewTicker(logInterval)
		defer ticker.Stop()
		for {
			select {
			case <-interrupt:
				return
			case <-ticker.C:
				log.Debugf("Running goroutines: %d", runtime.NumGoroutine())
			}
		}
	})

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-interrupt
	return nil
}

// databasePath returns the path to the block database given a database type.
func databasePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, databaseDirName)
}

func openDB(cfg *config.Config) (*dbaccess.DatabaseContext, error) {
	dbPath := databasePath(cfg)

	err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loading database from '%s'", dbPath)
	databaseContext, err := dbaccess.New(dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	err = createDatabaseVersionFile(dbPath)
	if err != nil {
		databaseContext.Close()
		return nil, err
	}
	return databaseContext, nil
}
