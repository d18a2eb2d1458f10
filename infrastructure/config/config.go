// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/domain/mempool"
	"github.com/ledgerkit/ledgerd/domain/mining"
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/network"
	"github.com/ledgerkit/ledgerd/version"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename        = "ledgerd.conf"
	defaultDataDirname           = "data"
	defaultLogLevel              = "info"
	defaultLogDirname            = "logs"
	defaultLogFilename           = "ledgerd.log"
	defaultErrLogFilename        = "ledgerd_err.log"
	defaultMinRelayTxFee         = 1e-5 // 1 satoshi per byte
	defaultMaxOrphanTransactions = mempool.DefaultMaxOrphanTxs
	defaultSigCacheMaxSize       = 100000
	defaultBlockMaxSize          = mining.DefaultBlockMaxSize
	blockMaxSizeMin              = 1000
	blockMaxSizeMax              = appmessage.MaxBlockPayload - 1000
)

var (
	// DefaultAppDir is the default home directory for ledgerd.
	DefaultAppDir = util.AppDataDir("ledgerd", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultAppDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultAppDir, defaultLogDirname)
)

//go:embed sample-ledgerd.conf
var sampleConfig string

// Flags defines the configuration options for ledgerd.
//
// See loadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion       bool     `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile        string   `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir           string   `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir            string   `long:"logdir" description:"Directory to log output."`
	RPCListeners      []string `long:"rpclisten" description:"Add an interface/port to listen for RPC connections (default port: 8334, testnet: 18332)"`
	DisableRPC        bool     `long:"norpc" description:"Disable built-in RPC server"`
	MetricsListen     string   `long:"metricslisten" description:"Interface/port to serve prometheus metrics on -- metrics are not served when empty"`
	Profile           string   `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	DebugLevel        string   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	MinRelayTxFee     float64  `long:"minrelaytxfee" description:"The minimum transaction fee in coins/kB to be considered a non-zero fee."`
	MaxOrphanTxs      int      `long:"maxorphantx" description:"Max number of orphan transactions to keep in memory"`
	RelayNonStd       bool     `long:"relaynonstd" description:"Relay non-standard transactions regardless of the default settings for the active network."`
	RejectNonStd      bool     `long:"rejectnonstd" description:"Reject non-standard transactions regardless of the default settings for the active network."`
	MiningAddrs       []string `long:"miningaddr" description:"Add the specified payment address to the list of addresses to use for block templates requested without a payout script"`
	BlockMaxSize      uint32   `long:"blockmaxsize" description:"Maximum block size in bytes to be used when creating a block template"`
	SigCacheMaxSize   uint     `long:"sigcachemaxsize" description:"The maximum number of entries in the signature verification cache"`
	ReindexChainState bool     `long:"reindexchainstate" description:"Drop the UXO index on start and rebuild it from the stored blocks"`
	NetworkFlags
}

// Config defines the configuration options for ledgerd.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	*Flags
	MiningAddrs   []util.Address
	MinRelayTxFee util.Amount
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfgFlags *Flags, options flags.Options) *flags.Parser {
	return flags.NewParser(cfgFlags, options)
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:      defaultConfigFile,
		DebugLevel:      defaultLogLevel,
		DataDir:         defaultDataDir,
		LogDir:          defaultLogDir,
		MaxOrphanTxs:    defaultMaxOrphanTransactions,
		SigCacheMaxSize: defaultSigCacheMaxSize,
		MinRelayTxFee:   defaultMinRelayTxFee,
		BlockMaxSize:    defaultBlockMaxSize,
	}
}

// DefaultConfig returns the default ledgerd configuration
func DefaultConfig() *Config {
	config := &Config{
		Flags: defaultFlags(),
	}
	config.ActiveNetParams = &chaincfg.MainNetParams
	config.MinRelayTxFee = mempool.DefaultMinRelayTxFee
	return config
}

// LoadConfig initializes and parses the config using a config file and command
// line options, then starts the log rotators.
func LoadConfig() (*Config, error) {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	logger.InitLog(filepath.Join(cfg.LogDir, defaultLogFilename), filepath.Join(cfg.LogDir, defaultErrLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := errors.Errorf("LoadConfig: %s", err.Error())
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	if cfg.DisableRPC {
		log.Infof("RPC service is disabled")
	}
	return cfg, nil
}

// loadConfig parses the config using a config file and the passed command
// line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in ledgerd functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options. Command line options always take
// precedence.
func loadConfig(args []string) (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfgFlags
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := newConfigParser(cfgFlags, flags.Default)
	cfg := &Config{
		Flags: cfgFlags,
	}
	if !preCfg.RegressionTest || preCfg.ConfigFile != defaultConfigFile {
		if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
			err := createDefaultConfigFile(preCfg.ConfigFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating a "+
					"default config file: %s\n", err)
			}
		}

		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				fmt.Fprintf(os.Stderr, "Error parsing config "+
					"file: %s\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, err
			}
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	funcName := "loadConfig"
	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	// Set the default policy for relaying non-standard transactions
	// according to the default of the active network. The set
	// configuration value takes precedence over the default value for the
	// selected network.
	relayNonStd := cfg.NetParams().RelayNonStdTxs
	switch {
	case cfg.RelayNonStd && cfg.RejectNonStd:
		str := "%s: rejectnonstd and relaynonstd cannot be used " +
			"together -- choose only one"
		err := errors.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	case cfg.RejectNonStd:
		relayNonStd = false
	case cfg.RelayNonStd:
		relayNonStd = true
	}
	cfg.RelayNonStd = relayNonStd

	// Append the network type to the data directory so it is "namespaced"
	// per network. All data is specific to a network, so namespacing the
	// data directory means each individual piece of serialized data does
	// not have to worry about changing names per network and such.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.NetParams().Name)

	// Append the network type to the log directory so it is "namespaced"
	// per network in the same fashion as the data directory.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.NetParams().Name)

	// Validate profile port number
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			str := "%s: The profile port must be between 1024 and 65535"
			err := errors.Errorf(str, funcName)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
	}

	// Default RPC to listen on localhost only.
	if !cfg.DisableRPC && len(cfg.RPCListeners) == 0 {
		cfg.RPCListeners = []string{"localhost"}
	}
	cfg.RPCListeners, err = network.NormalizeAddresses(cfg.RPCListeners, cfg.NetParams().RPCPort)
	if err != nil {
		str := "%s: invalid rpclisten: %s"
		err := errors.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Validate the the minrelaytxfee.
	cfg.MinRelayTxFee, err = util.NewAmount(cfg.Flags.MinRelayTxFee)
	if err != nil {
		str := "%s: invalid minrelaytxfee: %s"
		err := errors.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Disallow 0 and negative min tx fees.
	if cfg.MinRelayTxFee == 0 {
		str := "%s: The minrelaytxfee option must be greater than 0 -- parsed [%d]"
		err := errors.Errorf(str, funcName, cfg.MinRelayTxFee)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Limit the max block size to a sane value.
	if cfg.BlockMaxSize < blockMaxSizeMin || cfg.BlockMaxSize > blockMaxSizeMax {
		str := "%s: The blockmaxsize option must be in between %d " +
			"and %d -- parsed [%d]"
		err := errors.Errorf(str, funcName, blockMaxSizeMin,
			blockMaxSizeMax, cfg.BlockMaxSize)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Limit the max orphan count to a sane value.
	if cfg.MaxOrphanTxs < 0 {
		str := "%s: The maxorphantx option may not be less than 0 " +
			"-- parsed [%d]"
		err := errors.Errorf(str, funcName, cfg.MaxOrphanTxs)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Check mining addresses are valid and saved parsed versions.
	cfg.MiningAddrs = make([]util.Address, 0, len(cfg.Flags.MiningAddrs))
	for _, strAddr := range cfg.Flags.MiningAddrs {
		addr, err := util.DecodeAddress(strAddr, cfg.NetParams().PubKeyHashAddrID)
		if err != nil {
			str := "%s: mining address '%s' failed to decode: %s"
			err := errors.Errorf(str, funcName, strAddr, err)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		cfg.MiningAddrs = append(cfg.MiningAddrs, addr)
	}

	return cfg, nil
}

// createDefaultConfigFile creates a default config file at the given path
// from the sample configuration.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	return os.WriteFile(destinationPath, []byte(sampleConfig), 0600)
}
