package rpcclient

import (
	"context"
	"time"

	"github.com/ledgerkit/ledgerd/app/rpc"
	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

const defaultTimeout = 30 * time.Second

// RPCClient is an RPC client
type RPCClient struct {
	connection *grpc.ClientConn
	rpcAddress string
	timeout    time.Duration
}

// NewRPCClient creates a new RPC client
func NewRPCClient(rpcAddress string) (*RPCClient, error) {
	const dialTimeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	connection, err := grpc.DialContext(ctx, rpcAddress, grpc.WithInsecure(), grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(rpc.MaxMessageSize),
			grpc.MaxCallSendMsgSize(rpc.MaxMessageSize)))
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to address %s", rpcAddress)
	}

	log.Infof("Connected to server %s", rpcAddress)

	return &RPCClient{
		connection: connection,
		rpcAddress: rpcAddress,
		timeout:    defaultTimeout,
	}, nil
}

// SetTimeout sets the timeout by which to wait for RPC responses
func (c *RPCClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Close closes the RPC client
func (c *RPCClient) Close() error {
	return c.connection.Close()
}

// Address returns the address the RPC client connected to
func (c *RPCClient) Address() string {
	return c.rpcAddress
}

func (c *RPCClient) invoke(method string, request, response proto.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.connection.Invoke(ctx, method, request, response)
}

// SetLogger uses a specified Logger to output package logging info
func (c *RPCClient) SetLogger(backend *logger.Backend, level logger.Level) {
	const logSubsystem = "RPCC"
	log = backend.Logger(logSubsystem)
	log.SetLevel(level)
}
