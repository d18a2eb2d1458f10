package rpchandlers

import (
	"context"

	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"github.com/ledgerkit/ledgerd/domain"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// HandleSubmitBlock handles the respectively named RPC command
func HandleSubmitBlock(context *rpccontext.Context, ctx context.Context,
	request *wrapperspb.BytesValue) (*structpb.Struct, error) {

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	result, err := context.Domain.SubmitBlock(request.GetValue())
	if err != nil {
		return nil, chainError(err)
	}
	if result.Status == domain.StatusAccepted {
		log.Infof("Accepted block %s via submitBlock", result.Hash)
	}
	return rpccontext.SubmitResultToStruct(result)
}
