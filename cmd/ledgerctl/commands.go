package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/infrastructure/network/rpcclient"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

type command struct {
	name        string
	parameters  []string
	minArgs     int
	maxArgs     int
	description string
	run         func(client *rpcclient.RPCClient, args []string) (interface{}, error)
}

// A maxArgs of -1 means the trailing parameter may repeat.
var commands = []*command{
	{
		name:        "getbesttip",
		description: "Show the hash, height and cumulative work of the best chain tip",
		run: func(client *rpcclient.RPCClient, _ []string) (interface{}, error) {
			tip, err := client.GetBestTip()
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"hash":           tip.Hash.String(),
				"height":         tip.Height,
				"cumulativeWork": tip.CumulativeWork.String(),
			}, nil
		},
	},
	{
		name:        "getblocklocator",
		parameters:  []string{"hash"},
		maxArgs:     1,
		description: "Show the block locator of the given block, or of the best tip",
		run: func(client *rpcclient.RPCClient, args []string) (interface{}, error) {
			var hash *chainhash.Hash
			if len(args) == 1 {
				var err error
				hash, err = chainhash.NewHashFromStr(args[0])
				if err != nil {
					return nil, err
				}
			}
			locator, err := client.GetBlockLocator(hash)
			if err != nil {
				return nil, err
			}
			hashStrings := make([]string, len(locator.BlockLocatorHashes))
			for i, hash := range locator.BlockLocatorHashes {
				hashStrings[i] = hash.String()
			}
			return hashStrings, nil
		},
	},
	{
		name:        "findcommonancestor",
		parameters:  []string{"hash"},
		minArgs:     1,
		maxArgs:     -1,
		description: "Find the first of the given locator hashes that is on the best chain",
		run: func(client *rpcclient.RPCClient, args []string) (interface{}, error) {
			hashes, err := parseHashes(args)
			if err != nil {
				return nil, err
			}
			ancestor, err := client.FindCommonAncestor(appmessage.NewMsgBlockLocator(hashes))
			if err != nil {
				return nil, err
			}
			return ancestor.String(), nil
		},
	},
	{
		name:        "getblocktemplate",
		parameters:  []string{"payToScriptHex"},
		maxArgs:     1,
		description: "Build a candidate block paying the given script, or a configured mining address",
		run: func(client *rpcclient.RPCClient, args []string) (interface{}, error) {
			var payToScript []byte
			if len(args) == 1 {
				var err error
				payToScript, err = hex.DecodeString(args[0])
				if err != nil {
					return nil, errors.Wrap(err, "malformed script")
				}
			}
			block, err := client.GetBlockTemplate(payToScript)
			if err != nil {
				return nil, err
			}
			blockBytes, err := block.Bytes()
			if err != nil {
				return nil, err
			}
			return hex.EncodeToString(blockBytes), nil
		},
	},
	{
		name:        "submitblock",
		parameters:  []string{"blockHex"},
		minArgs:     1,
		maxArgs:     1,
		description: "Submit a serialized block",
		run: func(client *rpcclient.RPCClient, args []string) (interface{}, error) {
			blockBytes, err := hex.DecodeString(args[0])
			if err != nil {
				return nil, errors.Wrap(err, "malformed block")
			}
			block, err := util.NewBlockFromBytes(blockBytes)
			if err != nil {
				return nil, err
			}
			return client.SubmitBlock(block.MsgBlock())
		},
	},
	{
		name:        "submittransaction",
		parameters:  []string{"transactionHex"},
		minArgs:     1,
		maxArgs:     1,
		description: "Submit a serialized transaction to the mempool",
		run: func(client *rpcclient.RPCClient, args []string) (interface{}, error) {
			txBytes, err := hex.DecodeString(args[0])
			if err != nil {
				return nil, errors.Wrap(err, "malformed transaction")
			}
			return client.SubmitRawTransaction(txBytes)
		},
	},
}

func findCommand(name string) (*command, error) {
	for _, cmd := range commands {
		if cmd.name == strings.ToLower(name) {
			return cmd, nil
		}
	}
	return nil, errors.Errorf("unknown command '%s'. Use --list-commands to see the available commands", name)
}

func (cmd *command) checkArgs(args []string) error {
	if len(args) < cmd.minArgs {
		return errors.Errorf("'%s' requires at least %d parameters, got %d", cmd.name, cmd.minArgs, len(args))
	}
	if cmd.maxArgs >= 0 && len(args) > cmd.maxArgs {
		return errors.Errorf("'%s' accepts at most %d parameters, got %d", cmd.name, cmd.maxArgs, len(args))
	}
	return nil
}

func (cmd *command) help() string {
	sb := &strings.Builder{}
	sb.WriteString(cmd.name)
	for _, parameter := range cmd.parameters {
		_, _ = fmt.Fprintf(sb, " [%s]", parameter)
	}
	if cmd.maxArgs < 0 {
		sb.WriteString("...")
	}
	_, _ = fmt.Fprintf(sb, "\n\t%s", cmd.description)
	return sb.String()
}

func parseHashes(args []string) ([]*chainhash.Hash, error) {
	hashes := make([]*chainhash.Hash, len(args))
	for i, arg := range args {
		hash, err := chainhash.NewHashFromStr(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed hash '%s'", arg)
		}
		hashes[i] = hash
	}
	return hashes, nil
}
