package main

import (
	"time"

	"github.com/ledgerkit/ledgerd/infrastructure/network/rpcclient"
	"github.com/ledgerkit/ledgerd/util/network"
)

const minerTimeout = 10 * time.Second

func connectToServer(cfg *configFlags) (*rpcclient.RPCClient, error) {
	rpcAddresses, err := network.NormalizeAddresses([]string{cfg.RPCServer}, cfg.NetParams().RPCPort)
	if err != nil {
		return nil, err
	}
	client, err := rpcclient.NewRPCClient(rpcAddresses[0])
	if err != nil {
		return nil, err
	}
	client.SetTimeout(minerTimeout)
	return client, nil
}
