package adminrpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

type user struct {
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
}

func startServer(t *testing.T, db recordReader, key string) *bufconn.Listener {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := New(db, key)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	return listener
}

func dial(t *testing.T, listener *bufconn.Listener, key string) *Client {
	t.Helper()

	client, err := Dial("passthrough:///bufnet", key, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClientReadsRemoteStore(t *testing.T) {
	ctx := context.Background()
	db := recordstore.NewMemoryStore()
	require.NoError(t, db.Create(ctx, "users", "5551234567", &user{Phone: "5551234567", FirstName: "Alice"}))
	require.NoError(t, db.Create(ctx, "checks", "abc", map[string]string{"id": "abc"}))

	client := dial(t, startServer(t, db, "admin-key"), "admin-key")

	ids, err := client.List(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"5551234567"}, ids)

	ids, err = client.List(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	var got user
	require.NoError(t, client.Read(ctx, "users", "5551234567", &got))
	assert.Equal(t, user{Phone: "5551234567", FirstName: "Alice"}, got)

	err = client.Read(ctx, "users", "0000000000", &got)
	assert.ErrorIs(t, err, recordstore.ErrNotFound)

	err = client.Read(ctx, "users", "../etc", &got)
	assert.ErrorIs(t, err, recordstore.ErrInvalidKey)

	collections, err := client.Collections(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users", "checks"}, collections)
}

func TestWrongAdminKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	listener := startServer(t, recordstore.NewMemoryStore(), "admin-key")

	_, err := dial(t, listener, "guess").List(ctx, "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthenticated")
	assert.NotErrorIs(t, err, recordstore.ErrNotFound)
}
