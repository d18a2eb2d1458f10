package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ledgerkit/ledgerd/infrastructure/network/rpcclient"
	"github.com/ledgerkit/ledgerd/util/network"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error parsing command-line arguments: %s", err))
	}

	if cfg.ListCommands {
		for _, cmd := range commands {
			fmt.Println(cmd.help())
		}
		return
	}

	cmd, err := findCommand(cfg.CommandAndParameters[0])
	if err != nil {
		printErrorAndExit(err.Error())
	}
	args := cfg.CommandAndParameters[1:]
	err = cmd.checkArgs(args)
	if err != nil {
		printErrorAndExit(err.Error())
	}

	rpcAddresses, err := network.NormalizeAddresses([]string{cfg.RPCServer}, cfg.NetParams().RPCPort)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error parsing RPC server address: %s", err))
	}
	client, err := rpcclient.NewRPCClient(rpcAddresses[0])
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error connecting to the RPC server: %s", err))
	}
	defer client.Close()
	client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)

	response, err := cmd.run(client, args)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error running %s: %s", cmd.name, err))
	}
	responseBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error formatting the response: %s", err))
	}
	fmt.Println(string(responseBytes))
}

func printErrorAndExit(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
