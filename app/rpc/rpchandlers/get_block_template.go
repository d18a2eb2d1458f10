package rpchandlers

import (
	"context"
	"math/rand"

	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"github.com/ledgerkit/ledgerd/domain/txscript"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// HandleGetBlockTemplate handles the respectively named RPC command. The
// request carries the payout script; when it is empty a configured mining
// address is paid instead.
func HandleGetBlockTemplate(context *rpccontext.Context, ctx context.Context,
	request *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	payToScript := request.GetValue()
	if len(payToScript) == 0 {
		miningAddrs := context.Config.MiningAddrs
		if len(miningAddrs) == 0 {
			return nil, status.Error(codes.FailedPrecondition,
				"no payout script given and no mining addresses configured")
		}
		var err error
		payToScript, err = txscript.PayToAddrScript(miningAddrs[rand.Intn(len(miningAddrs))])
		if err != nil {
			return nil, internalError(err)
		}
	}

	template, err := context.Domain.BlockTemplate(payToScript)
	if err != nil {
		return nil, chainError(err)
	}
	blockBytes, err := template.Block.Bytes()
	if err != nil {
		return nil, internalError(err)
	}
	return wrapperspb.Bytes(blockBytes), nil
}
