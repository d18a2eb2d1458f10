package rpcclient

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SubmitBlock sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) SubmitBlock(block *appmessage.MsgBlock) (*SubmitResult, error) {
	blockBytes, err := block.Bytes()
	if err != nil {
		return nil, err
	}
	response := &structpb.Struct{}
	err = c.invoke(rpc.SubmitBlockMethod, wrapperspb.Bytes(blockBytes), response)
	if err != nil {
		return nil, err
	}
	return submitResultFromStruct(response)
}
