// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/ledgerkit/ledgerd/util/network"
	"github.com/pkg/errors"
)

// These variables are the chain proof-of-work limit parameters for each default
// network.
var (
	// bigOne is 1 represented as a big.Int. It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a block can
	// have for the main network. It is the value 2^224 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// regressionPowLimit is the highest proof of work value a block
	// can have for the regression test network. It is the value 2^255 - 1.
	regressionPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	// testNetPowLimit is the highest proof of work value a block
	// can have for the test network. It is the value 2^224 - 1.
	testNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// simNetPowLimit is the highest proof of work value a block
	// can have for the simulation test network. It is the value 2^255 - 1.
	simNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

const (
	baseSubsidy      = 50 * 100000000
	coinbaseMaturity = 100
	maxTimeOffset    = 2 * time.Hour
)

// Net represents which network a message belongs to. It doubles as the
// magic value that namespaces the on-disk state of a network.
type Net uint32

// Constants used to indicate the message network. They can also be
// used to seek to the next message when a stream's state is unknown, but
// this package does not provide that functionality since it's generally a
// better idea to simply disconnect clients that are misbehaving over TCP.
const (
	// Mainnet represents the main network.
	Mainnet Net = 0xd9b4bef9

	// Testnet represents the test network.
	Testnet Net = 0x0709110b

	// Regtest represents the regression test network.
	Regtest Net = 0xdab5bffa

	// Simnet represents the simulation test network.
	Simnet Net = 0x12141c16
)

// Params defines a network by its parameters. These parameters may be
// used by applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net Net

	// RPCPort defines the rpc server port
	RPCPort string

	// GenesisBlock defines the first block of the chain.
	GenesisBlock *appmessage.MsgBlock

	// GenesisHash is the starting block hash.
	GenesisHash *chainhash.Hash

	// PowLimit defines the highest allowed proof of work value for a block
	// as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// BaseSubsidy is the coinbase reward of a block before any halving.
	BaseSubsidy uint64

	// CoinbaseMaturity is the number of blocks required before newly mined
	// coins can be spent.
	CoinbaseMaturity uint64

	// SubsidyReductionInterval is the interval of blocks before the subsidy
	// is reduced.
	SubsidyReductionInterval uint64

	// MaxTimeOffset is the maximum offset a block timestamp is allowed to be
	// ahead of the adjusted clock.
	MaxTimeOffset time.Duration

	// Mempool parameters
	RelayNonStdTxs bool

	// Address encoding magics
	PubKeyHashAddrID byte // First byte of a P2PKH address
	PrivateKeyID     byte // First byte of a WIF private key
}

// NormalizeRPCServerAddress returns addr with the current network default
// port appended if there is not already a port specified.
func (p *Params) NormalizeRPCServerAddress(addr string) (string, error) {
	return network.NormalizeAddress(addr, p.RPCPort)
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:    "mainnet",
	Net:     Mainnet,
	RPCPort: "8334",

	// Chain parameters
	GenesisBlock:             &genesisBlock,
	GenesisHash:              &genesisHash,
	PowLimit:                 mainPowLimit,
	PowLimitBits:             0x1d00ffff,
	BaseSubsidy:              baseSubsidy,
	CoinbaseMaturity:         coinbaseMaturity,
	SubsidyReductionInterval: 210000,
	MaxTimeOffset:            maxTimeOffset,

	// Mempool parameters
	RelayNonStdTxs: false,

	// Address encoding magics
	PubKeyHashAddrID: 0x00, // starts with 1
	PrivateKeyID:     0x80, // starts with 5 (uncompressed) or K (compressed)
}

// RegressionNetParams defines the network parameters for the regression test
// network. Not to be confused with the test network, this network is
// sometimes simply called "testnet".
var RegressionNetParams = Params{
	Name:    "regtest",
	Net:     Regtest,
	RPCPort: "18334",

	// Chain parameters
	GenesisBlock:             &regtestGenesisBlock,
	GenesisHash:              &regtestGenesisHash,
	PowLimit:                 regressionPowLimit,
	PowLimitBits:             0x207fffff,
	BaseSubsidy:              baseSubsidy,
	CoinbaseMaturity:         coinbaseMaturity,
	SubsidyReductionInterval: 150,
	MaxTimeOffset:            maxTimeOffset,

	// Mempool parameters
	RelayNonStdTxs: true,

	// Address encoding magics
	PubKeyHashAddrID: 0x6f, // starts with m or n
	PrivateKeyID:     0xef, // starts with 9 (uncompressed) or c (compressed)
}

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Name:    "testnet",
	Net:     Testnet,
	RPCPort: "18336",

	// Chain parameters
	GenesisBlock:             &testnetGenesisBlock,
	GenesisHash:              &testnetGenesisHash,
	PowLimit:                 testNetPowLimit,
	PowLimitBits:             0x1d00ffff,
	BaseSubsidy:              baseSubsidy,
	CoinbaseMaturity:         coinbaseMaturity,
	SubsidyReductionInterval: 210000,
	MaxTimeOffset:            maxTimeOffset,

	// Mempool parameters
	RelayNonStdTxs: true,

	// Address encoding magics
	PubKeyHashAddrID: 0x6f, // starts with m or n
	PrivateKeyID:     0xef, // starts with 9 (uncompressed) or c (compressed)
}

// SimNetParams defines the network parameters for the simulation test
// network. This network is similar to the normal test network except it is
// intended for private use within a group of individuals doing simulation
// testing.
var SimNetParams = Params{
	Name:    "simnet",
	Net:     Simnet,
	RPCPort: "18556",

	// Chain parameters
	GenesisBlock:             &simnetGenesisBlock,
	GenesisHash:              &simnetGenesisHash,
	PowLimit:                 simNetPowLimit,
	PowLimitBits:             0x207fffff,
	BaseSubsidy:              baseSubsidy,
	CoinbaseMaturity:         coinbaseMaturity,
	SubsidyReductionInterval: 210000,
	MaxTimeOffset:            maxTimeOffset,

	// Mempool parameters
	RelayNonStdTxs: true,

	// Address encoding magics
	PubKeyHashAddrID: 0x3f, // starts with S
	PrivateKeyID:     0x64, // starts with 4 (uncompressed) or F (compressed)
}

var (
	// ErrDuplicateNet describes an error where the parameters for a
	// network could not be set due to the network already being a standard
	// network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate network")

	// ErrUnknownNet describes an error where a network name does not match
	// any registered network.
	ErrUnknownNet = errors.New("unknown network")
)

var (
	registeredNets = make(map[Net]*Params)
)

// Register registers the network parameters for a network. This may
// error with ErrDuplicateNet if the network is already registered (either
// due to a previous Register call, or the network being one of the default
// networks).
//
// Network parameters should be registered into this package by a main package
// as early as possible. Then, library packages may lookup networks or network
// parameters based on inputs and work regardless of the network being standard
// or not.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = params

	return nil
}

// ParamsByName returns the registered network with the given name.
func ParamsByName(name string) (*Params, error) {
	for _, params := range registeredNets {
		if params.Name == name {
			return params, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownNet, "network %q", name)
}

// mustRegister performs the same function as Register except it panics if there
// is an error. This should only be called from package init functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&MainNetParams)
	mustRegister(&TestNetParams)
	mustRegister(&RegressionNetParams)
	mustRegister(&SimNetParams)
}
