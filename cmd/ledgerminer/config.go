package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/version"
	"github.com/pkg/errors"
)

const (
	defaultLogFilename    = "ledgerminer.log"
	defaultErrLogFilename = "ledgerminer_err.log"
)

var (
	// Default configuration options
	defaultHomeDir    = util.AppDataDir("ledgerminer", false)
	defaultLogFile    = filepath.Join(defaultHomeDir, defaultLogFilename)
	defaultErrLogFile = filepath.Join(defaultHomeDir, defaultErrLogFilename)
	defaultRPCServer  = "localhost"
)

type configFlags struct {
	ShowVersion    bool   `short:"V" long:"version" description:"Display version information and exit"`
	RPCServer      string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	MiningAddr     string `long:"miningaddr" description:"Address to pay the block rewards to -- the node's own mining addresses are used when omitted"`
	NumberOfBlocks uint64 `short:"n" long:"numblocks" description:"Number of blocks to mine. If omitted, will mine until the process is interrupted."`
	Profile        string `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	config.NetworkFlags

	payToScript []byte
}

func parseConfig(args []string) (*configFlags, error) {
	cfg := &configFlags{
		RPCServer: defaultRPCServer,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.ParseArgs(args)

	// Show the version and exit if the version flag was specified.
	if cfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		appName = strings.TrimSuffix(appName, filepath.Ext(appName))
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	if err != nil {
		return nil, err
	}

	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	if cfg.MiningAddr != "" {
		miningAddr, err := util.DecodeAddress(cfg.MiningAddr, cfg.NetParams().PubKeyHashAddrID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid mining address %s", cfg.MiningAddr)
		}
		cfg.payToScript, err = txscript.PayToAddrScript(miningAddr)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return nil, errors.New("The profile port must be between 1024 and 65535")
		}
	}

	return cfg, nil
}
