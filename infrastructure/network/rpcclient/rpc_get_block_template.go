package rpcclient

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/util"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GetBlockTemplate sends an RPC request respective to the function's name and returns the RPC server's response.
// An empty payToScript lets the server pay one of its configured mining addresses.
func (c *RPCClient) GetBlockTemplate(payToScript []byte) (*appmessage.MsgBlock, error) {
	response := &wrapperspb.BytesValue{}
	err := c.invoke(rpc.GetBlockTemplateMethod, wrapperspb.Bytes(payToScript), response)
	if err != nil {
		return nil, err
	}
	block, err := util.NewBlockFromBytes(response.GetValue())
	if err != nil {
		return nil, err
	}
	return block.MsgBlock(), nil
}
