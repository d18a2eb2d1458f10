package rpchandlers

import (
	"context"

	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// HandleSubmitTransaction handles the respectively named RPC command
func HandleSubmitTransaction(context *rpccontext.Context, ctx context.Context,
	request *wrapperspb.BytesValue) (*structpb.Struct, error) {

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	result, err := context.Domain.SubmitTransaction(request.GetValue())
	if err != nil {
		return nil, chainError(err)
	}
	log.Debugf("Transaction %s submitted: %s", result.Hash, result.Status)
	return rpccontext.SubmitResultToStruct(result)
}
