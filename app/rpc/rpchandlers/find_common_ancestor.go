package rpchandlers

import (
	"context"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// HandleFindCommonAncestor handles the respectively named RPC command
func HandleFindCommonAncestor(context *rpccontext.Context, ctx context.Context,
	request *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	msgLocator, err := appmessage.NewMsgBlockLocatorFromBytes(request.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid block locator: %s", err)
	}
	ancestor, err := context.Domain.FindCommonAncestor(msgLocator.BlockLocatorHashes)
	if err != nil {
		return nil, chainError(err)
	}
	return wrapperspb.String(ancestor.String()), nil
}
