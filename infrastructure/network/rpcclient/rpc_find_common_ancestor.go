package rpcclient

import (
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// FindCommonAncestor sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) FindCommonAncestor(locator *appmessage.MsgBlockLocator) (*chainhash.Hash, error) {
	locatorBytes, err := locator.Bytes()
	if err != nil {
		return nil, err
	}
	response := &wrapperspb.StringValue{}
	err = c.invoke(rpc.FindCommonAncestorMethod, wrapperspb.Bytes(locatorBytes), response)
	if err != nil {
		return nil, err
	}
	return chainhash.NewHashFromStr(response.GetValue())
}
