package rpchandlers

import (
	"context"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// HandleGetBlockLocator handles the respectively named RPC command. An
// empty hash locates the best tip.
func HandleGetBlockLocator(context *rpccontext.Context, ctx context.Context,
	request *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	var hash *chainhash.Hash
	if request.GetValue() != "" {
		var err error
		hash, err = chainhash.NewHashFromStr(request.GetValue())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid block hash: %s", err)
		}
	}

	locator, err := context.Domain.BlockLocator(hash)
	if errors.Is(err, blockchain.ErrChainHalted) {
		return nil, chainError(err)
	}
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	locatorBytes, err := appmessage.NewMsgBlockLocator(locator).Bytes()
	if err != nil {
		return nil, internalError(err)
	}
	return wrapperspb.Bytes(locatorBytes), nil
}
