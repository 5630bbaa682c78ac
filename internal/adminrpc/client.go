package adminrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/flatapi/internal/adminrpc/interceptor"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

// Client reads a remote record store. Its method set mirrors the local store
// so the console can use either.
type Client struct {
	conn *grpc.ClientConn
	key  string
}

// Dial connects to addr without transport security; the admin port is meant
// to stay on a private network.
func Dial(addr, adminKey string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)

	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("in internal/adminrpc/client.go/Dial(): error while `grpc.Dial()` calling: %w", err)
	}

	return &Client{conn: conn, key: adminKey}, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	ctx = metadata.AppendToOutgoingContext(ctx, interceptor.AuthorizationKey, c.key)

	err := c.conn.Invoke(ctx, method, in, out)
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", status.Convert(err).Message(), recordstore.ErrNotFound)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", status.Convert(err).Message(), recordstore.ErrInvalidKey)
	default:
		return fmt.Errorf("in internal/adminrpc/client.go/invoke(): error while `c.conn.Invoke()` calling %s: %w", method, err)
	}
}

func (c *Client) List(ctx context.Context, collection string) ([]string, error) {
	var out ListResponse
	if err := c.invoke(ctx, ListMethod, &ListRequest{Collection: collection}, &out); err != nil {
		return nil, err
	}
	if out.IDs == nil {
		out.IDs = []string{}
	}

	return out.IDs, nil
}

// Read decodes the remote record into dst.
func (c *Client) Read(ctx context.Context, collection, id string, dst any) error {
	var out ReadResponse
	if err := c.invoke(ctx, ReadMethod, &ReadRequest{Collection: collection, ID: id}, &out); err != nil {
		return err
	}

	if err := json.Unmarshal(out.Record, dst); err != nil {
		return fmt.Errorf("in internal/adminrpc/client.go/Read(): error while `json.Unmarshal()` calling: %w", err)
	}

	return nil
}

func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var out CollectionsResponse
	if err := c.invoke(ctx, CollectionsMethod, &CollectionsRequest{}, &out); err != nil {
		return nil, err
	}

	return out.Collections, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
