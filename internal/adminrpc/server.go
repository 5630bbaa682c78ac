package adminrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/flatapi/internal/adminrpc/interceptor"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

type recordReader interface {
	Read(ctx context.Context, collection, id string, dst any) error
	List(ctx context.Context, collection string) ([]string, error)
	Collections(ctx context.Context) ([]string, error)
}

// Server answers admin queries from the record store.
type Server struct {
	db recordReader
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, recordstore.ErrInvalidKey):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) List(ctx context.Context, in *ListRequest) (*ListResponse, error) {
	ids, err := s.db.List(ctx, in.Collection)
	if err != nil {
		return nil, toStatus(err)
	}

	return &ListResponse{IDs: ids}, nil
}

func (s *Server) Read(ctx context.Context, in *ReadRequest) (*ReadResponse, error) {
	var record json.RawMessage
	if err := s.db.Read(ctx, in.Collection, in.ID, &record); err != nil {
		return nil, toStatus(err)
	}

	return &ReadResponse{Record: record}, nil
}

func (s *Server) Collections(ctx context.Context, _ *CollectionsRequest) (*CollectionsResponse, error) {
	collections, err := s.db.Collections(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return &CollectionsResponse{Collections: collections}, nil
}

// New returns a gRPC server with the admin service registered. Every call
// must present adminKey in the authorization metadata.
func New(db recordReader, adminKey string) *grpc.Server {
	server := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor(Methods),
			interceptor.UnaryAdminKeyInterceptor(adminKey, Methods),
		),
	)
	server.RegisterService(&serviceDesc, &Server{db: db})

	return server
}

// Listen opens the TCP listener for New's server.
func Listen(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("in internal/adminrpc/server.go/Listen(): error while `net.Listen()` calling: %w", err)
	}

	return listener, nil
}
