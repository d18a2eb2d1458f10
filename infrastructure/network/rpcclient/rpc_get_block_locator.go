package rpcclient

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GetBlockLocator sends an RPC request respective to the function's name and returns the RPC server's response.
// A nil hash asks for the locator of the best tip.
func (c *RPCClient) GetBlockLocator(hash *chainhash.Hash) (*appmessage.MsgBlockLocator, error) {
	request := wrapperspb.String("")
	if hash != nil {
		request = wrapperspb.String(hash.String())
	}
	response := &wrapperspb.BytesValue{}
	err := c.invoke(rpc.GetBlockLocatorMethod, request, response)
	if err != nil {
		return nil, err
	}
	return appmessage.NewMsgBlockLocatorFromBytes(response.GetValue())
}
