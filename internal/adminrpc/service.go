// Package adminrpc exposes the record store read-only over gRPC so the admin
// console can inspect a running server. Messages are JSON encoded and the
// service descriptor is declared by hand.
package adminrpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
)

const serviceName = "flatapi.admin.Admin"

// Full method names, as seen by interceptors.
const (
	ListMethod        = "/" + serviceName + "/List"
	ReadMethod        = "/" + serviceName + "/Read"
	CollectionsMethod = "/" + serviceName + "/Collections"
)

// Methods lists every method of the service.
var Methods = []string{ListMethod, ReadMethod, CollectionsMethod}

type ListRequest struct {
	Collection string `json:"collection"`
}

type ListResponse struct {
	IDs []string `json:"ids"`
}

type ReadRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type ReadResponse struct {
	Record json.RawMessage `json:"record"`
}

type CollectionsRequest struct{}

type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// AdminServer is implemented by Server.
type AdminServer interface {
	List(ctx context.Context, in *ListRequest) (*ListResponse, error)
	Read(ctx context.Context, in *ReadRequest) (*ReadResponse, error)
	Collections(ctx context.Context, in *CollectionsRequest) (*CollectionsResponse, error)
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).List(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).List(ctx, req.(*ListRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func readHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Read(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReadMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Read(ctx, req.(*ReadRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func collectionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CollectionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Collections(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CollectionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Collections(ctx, req.(*CollectionsRequest))
	}

	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: listHandler},
		{MethodName: "Read", Handler: readHandler},
		{MethodName: "Collections", Handler: collectionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "adminrpc",
}
