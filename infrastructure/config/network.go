package config

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet        bool `long:"testnet" description:"Use the test network"`
	RegressionTest bool `long:"regtest" description:"Use the regression test network"`
	Simnet         bool `long:"simnet" description:"Use the simulation test network"`

	ActiveNetParams *chaincfg.Params
}

// ResolveNetwork parses the network command line argument and sets
// ActiveNetParams accordingly. It returns error if more than one network
// was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// ActiveNetParams holds the selected network parameters. Default value is main-net.
	networkFlags.ActiveNetParams = &chaincfg.MainNetParams

	// Count number of network flags passed; assign active network params
	// while we're at it
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.TestNetParams
	}
	if networkFlags.RegressionTest {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.RegressionNetParams
	}
	if networkFlags.Simnet {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.SimNetParams
	}

	// Multiple networks can't be selected simultaneously.
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, regtest, simnet) cannot be used " +
			"together. Please choose only one network"
		err := errors.New(message)
		fmt.Fprintln(os.Stderr, err)
		if parser != nil {
			parser.WriteHelp(os.Stderr)
		}
		return err
	}

	return nil
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chaincfg.Params {
	return networkFlags.ActiveNetParams
}
