package rpccontext

import (
	"github.com/ledgerkit/ledgerd/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// Keys of the struct returned by the submit calls.
const (
	SubmitResultHashKey       = "hash"
	SubmitResultStatusKey     = "status"
	SubmitResultReasonKey     = "reason"
	SubmitResultRejectCodeKey = "rejectCode"
	SubmitResultAcceptedKey   = "accepted"
)

// SubmitResultToStruct converts a submission outcome into its wire form.
func SubmitResultToStruct(result *domain.SubmitResult) (*structpb.Struct, error) {
	accepted := make([]interface{}, len(result.Accepted))
	for i, txID := range result.Accepted {
		accepted[i] = txID.String()
	}
	fields := map[string]interface{}{
		SubmitResultHashKey:     result.Hash.String(),
		SubmitResultStatusKey:   result.Status.String(),
		SubmitResultAcceptedKey: accepted,
	}
	if result.Status == domain.StatusRejected {
		fields[SubmitResultReasonKey] = result.Reason
		fields[SubmitResultRejectCodeKey] = int(result.RejectCode)
	}
	return structpb.NewStruct(fields)
}
