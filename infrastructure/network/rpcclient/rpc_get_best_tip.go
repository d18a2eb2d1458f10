package rpcclient

import (
	"math/big"

	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// BestTip describes the tip of the server's best chain.
type BestTip struct {
	Hash           *chainhash.Hash
	Height         uint64
	CumulativeWork *big.Int
}

// GetBestTip sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) GetBestTip() (*BestTip, error) {
	response := &structpb.Struct{}
	err := c.invoke(rpc.GetBestTipMethod, &emptypb.Empty{}, response)
	if err != nil {
		return nil, err
	}
	fields := response.GetFields()
	hash, err := chainhash.NewHashFromStr(fields["hash"].GetStringValue())
	if err != nil {
		return nil, errors.Wrap(err, "malformed best tip hash")
	}
	work, ok := new(big.Int).SetString(fields["cumulativeWork"].GetStringValue(), 10)
	if !ok {
		return nil, errors.Errorf("malformed cumulative work %q",
			fields["cumulativeWork"].GetStringValue())
	}
	return &BestTip{
		Hash:           hash,
		Height:         uint64(fields["height"].GetNumberValue()),
		CumulativeWork: work,
	}, nil
}
