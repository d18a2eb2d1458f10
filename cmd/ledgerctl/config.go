package main

import (
	"github.com/jessevdk/go-flags"
	"github.com/ledgerkit/ledgerd/infrastructure/config"
	"github.com/pkg/errors"
)

var (
	defaultRPCServer        = "localhost"
	defaultTimeout   uint64 = 30
)

type configFlags struct {
	RPCServer            string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	Timeout              uint64 `short:"t" long:"timeout" description:"Timeout for the request (in seconds)"`
	ListCommands         bool   `short:"l" long:"list-commands" description:"List all commands and exit"`
	CommandAndParameters []string
	config.NetworkFlags
}

func parseConfig(args []string) (*configFlags, error) {
	cfg := &configFlags{
		RPCServer: defaultRPCServer,
		Timeout:   defaultTimeout,
	}
	parser := flags.NewParser(cfg, flags.HelpFlag)
	parser.Usage = "ledgerctl [OPTIONS] [COMMAND] [COMMAND PARAMETERS]" +
		"\n\nUse `ledgerctl --list-commands` to get a list of all commands and their parameters"
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if cfg.ListCommands {
		return cfg, nil
	}

	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	cfg.CommandAndParameters = remainingArgs
	if len(cfg.CommandAndParameters) == 0 {
		return nil, errors.New("A command must be specified")
	}

	return cfg, nil
}
