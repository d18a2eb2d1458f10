package rpchandlers

import (
	"context"

	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// checkContext refuses to start work for a request that was already
// cancelled.
func checkContext(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Canceled, err.Error())
}

// chainError reports a halted chain as unavailable and anything else as an
// internal failure.
func chainError(err error) error {
	if errors.Is(err, blockchain.ErrChainHalted) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return internalError(err)
}

func internalError(err error) error {
	log.Errorf("RPC request failed: %+v", err)
	return status.Error(codes.Internal, err.Error())
}
