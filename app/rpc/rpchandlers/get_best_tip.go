package rpchandlers

import (
	"context"

	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// HandleGetBestTip handles the respectively named RPC command
func HandleGetBestTip(context *rpccontext.Context, ctx context.Context,
	_ *emptypb.Empty) (*structpb.Struct, error) {

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	tip, err := context.Domain.BestTip()
	if err != nil {
		return nil, chainError(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"hash":           tip.Hash.String(),
		"height":         tip.Height,
		"cumulativeWork": tip.CumulativeWork.String(),
	})
}
