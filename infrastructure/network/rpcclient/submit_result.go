package rpcclient

import (
	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// SubmitResult is the outcome of a block or transaction submission as
// reported by the server.
type SubmitResult struct {
	Hash       string
	Status     string
	Reason     string
	RejectCode int
	Accepted   []string
}

func submitResultFromStruct(response *structpb.Struct) (*SubmitResult, error) {
	fields := response.GetFields()
	result := &SubmitResult{
		Hash:   fields[rpccontext.SubmitResultHashKey].GetStringValue(),
		Status: fields[rpccontext.SubmitResultStatusKey].GetStringValue(),
		Reason: fields[rpccontext.SubmitResultReasonKey].GetStringValue(),
	}
	if result.Hash == "" || result.Status == "" {
		return nil, errors.Errorf("malformed submit response: %s", response)
	}
	if code, ok := fields[rpccontext.SubmitResultRejectCodeKey]; ok {
		result.RejectCode = int(code.GetNumberValue())
	}
	for _, txID := range fields[rpccontext.SubmitResultAcceptedKey].GetListValue().GetValues() {
		result.Accepted = append(result.Accepted, txID.GetStringValue())
	}
	return result, nil
}
