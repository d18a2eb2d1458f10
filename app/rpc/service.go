package rpc

import (
	"context"

	"github.com/ledgerkit/ledgerd/app/rpc/rpccontext"
	"github.com/ledgerkit/ledgerd/app/rpc/rpchandlers"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the node service.
const ServiceName = "ledgerd.Node"

// Full method names of the node service.
const (
	SubmitBlockMethod        = "/" + ServiceName + "/SubmitBlock"
	SubmitTransactionMethod  = "/" + ServiceName + "/SubmitTransaction"
	GetBestTipMethod         = "/" + ServiceName + "/GetBestTip"
	GetBlockLocatorMethod    = "/" + ServiceName + "/GetBlockLocator"
	FindCommonAncestorMethod = "/" + ServiceName + "/FindCommonAncestor"
	GetBlockTemplateMethod   = "/" + ServiceName + "/GetBlockTemplate"
)

// NodeServer is the server API of the node service. Requests and responses
// are protobuf well-known types so no generated code is needed.
type NodeServer interface {
	SubmitBlock(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	SubmitTransaction(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetBestTip(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetBlockLocator(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	FindCommonAncestor(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	GetBlockTemplate(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// nodeServer routes every call to its handler in rpchandlers.
type nodeServer struct {
	context *rpccontext.Context
}

func (s *nodeServer) SubmitBlock(ctx context.Context, request *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return rpchandlers.HandleSubmitBlock(s.context, ctx, request)
}

func (s *nodeServer) SubmitTransaction(ctx context.Context, request *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return rpchandlers.HandleSubmitTransaction(s.context, ctx, request)
}

func (s *nodeServer) GetBestTip(ctx context.Context, request *emptypb.Empty) (*structpb.Struct, error) {
	return rpchandlers.HandleGetBestTip(s.context, ctx, request)
}

func (s *nodeServer) GetBlockLocator(ctx context.Context, request *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return rpchandlers.HandleGetBlockLocator(s.context, ctx, request)
}

func (s *nodeServer) FindCommonAncestor(ctx context.Context, request *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return rpchandlers.HandleFindCommonAncestor(s.context, ctx, request)
}

func (s *nodeServer) GetBlockTemplate(ctx context.Context, request *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return rpchandlers.HandleGetBlockTemplate(s.context, ctx, request)
}

// RegisterNodeServer registers srv as the node service of s.
func RegisterNodeServer(s *grpc.Server, srv NodeServer) {
	s.RegisterService(&nodeServiceDesc, srv)
}

var nodeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NodeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitBlock", Handler: submitBlockHandler},
		{MethodName: "SubmitTransaction", Handler: submitTransactionHandler},
		{MethodName: "GetBestTip", Handler: getBestTipHandler},
		{MethodName: "GetBlockLocator", Handler: getBlockLocatorHandler},
		{MethodName: "FindCommonAncestor", Handler: findCommonAncestorHandler},
		{MethodName: "GetBlockTemplate", Handler: getBlockTemplateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func submitBlockHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).SubmitBlock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitBlockMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).SubmitBlock(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func submitTransactionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).SubmitTransaction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitTransactionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).SubmitTransaction(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getBestTipHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).GetBestTip(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetBestTipMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).GetBestTip(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getBlockLocatorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).GetBlockLocator(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetBlockLocatorMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).GetBlockLocator(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func findCommonAncestorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).FindCommonAncestor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FindCommonAncestorMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).FindCommonAncestor(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getBlockTemplateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NodeServer).GetBlockTemplate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetBlockTemplateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).GetBlockTemplate(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
