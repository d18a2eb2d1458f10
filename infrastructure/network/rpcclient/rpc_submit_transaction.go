package rpcclient

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SubmitTransaction sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) SubmitTransaction(tx *appmessage.MsgTx) (*SubmitResult, error) {
	txBytes, err := tx.Bytes()
	if err != nil {
		return nil, err
	}
	return c.SubmitRawTransaction(txBytes)
}

// SubmitRawTransaction submits already serialized transaction bytes.
func (c *RPCClient) SubmitRawTransaction(txBytes []byte) (*SubmitResult, error) {
	response := &structpb.Struct{}
	err := c.invoke(rpc.SubmitTransactionMethod, wrapperspb.Bytes(txBytes), response)
	if err != nil {
		return nil, err
	}
	return submitResultFromStruct(response)
}
