package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/flatapi/internal/pizza"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
	"github.com/patric-chuzhbe/flatapi/internal/uptime"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type backupStub struct {
	count int
	err   error
	calls int
}

func (b *backupStub) Backup(context.Context) (int, error) {
	b.calls++
	return b.count, b.err
}

func newConsole(t *testing.T, opts ...InitOption) (*Console, *recordstore.MemoryStore, *bytes.Buffer) {
	t.Helper()

	db := recordstore.NewMemoryStore()
	out := &bytes.Buffer{}
	c := New(db, append([]InitOption{WithOutput(out), WithClock(func() time.Time { return now })}, opts...)...)
	c.width = 40
	c.collectStats = func() []stat {
		return []stat{{"CPU Count", "4"}, {"Uptime", "10 Seconds"}}
	}

	return c, db, out
}

func seed(t *testing.T, db *recordstore.MemoryStore, collection, id string, record any) {
	t.Helper()
	require.NoError(t, db.Create(context.Background(), collection, id, record))
}

func TestProcessUnknownAndExit(t *testing.T) {
	c, _, out := newConsole(t)
	ctx := context.Background()

	assert.True(t, c.Process(ctx, "   "))
	assert.Empty(t, out.String())

	assert.True(t, c.Process(ctx, "make coffee"))
	assert.Equal(t, "Sorry, try again\n", out.String())

	assert.False(t, c.Process(ctx, "EXIT"))
}

func TestHelpListsEveryCommand(t *testing.T) {
	c, _, out := newConsole(t)

	assert.True(t, c.Process(context.Background(), "help"))

	text := out.String()
	assert.Contains(t, text, "CLI MANUAL")
	for _, cmd := range commands {
		assert.Contains(t, text, cmd.input)
	}
}

func TestStats(t *testing.T) {
	c, _, out := newConsole(t)

	c.Process(context.Background(), "stats")

	assert.Contains(t, out.String(), "SYSTEM STATISTICS")
	assert.Contains(t, out.String(), "CPU Count")
	assert.Contains(t, out.String(), "10 Seconds")
}

func TestUsers(t *testing.T) {
	c, db, out := newConsole(t)
	ctx := context.Background()

	seed(t, db, uptime.UsersCollection, "5551234567", uptime.User{
		Phone:          "5551234567",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		HashedPassword: "secret-hash",
		Checks:         []string{"a", "b"},
		CreatedAt:      now.Add(-48 * time.Hour),
	})

	c.Process(ctx, "list users")
	assert.Contains(t, out.String(), "Name: Ada Lovelace Phone: 5551234567 Checks: 2")

	out.Reset()
	c.Process(ctx, "more user info --5551234567")
	assert.Contains(t, out.String(), `"firstName": "Ada"`)
	assert.NotContains(t, out.String(), "secret-hash")

	out.Reset()
	c.Process(ctx, "more user info")
	assert.Equal(t, "Missing --{id}\n", out.String())

	out.Reset()
	c.Process(ctx, "more user info --0000000000")
	assert.True(t, strings.HasPrefix(out.String(), "Error:"))
}

func TestRecentUsers(t *testing.T) {
	c, db, out := newConsole(t)

	seed(t, db, pizza.UsersCollection, "new@example.com", pizza.User{
		Email:     "new@example.com",
		FirstName: "New",
		LastName:  "Comer",
		Carts:     []string{"cart_1_of_new@example.com"},
		CreatedAt: now.Add(-time.Hour),
	})
	seed(t, db, pizza.UsersCollection, "old@example.com", pizza.User{
		Email:     "old@example.com",
		FirstName: "Old",
		LastName:  "Timer",
		CreatedAt: now.Add(-25 * time.Hour),
	})

	c.Process(context.Background(), "recent users")

	assert.Contains(t, out.String(), "Name: New Comer Email: new@example.com Carts: 1")
	assert.NotContains(t, out.String(), "old@example.com")
}

func TestListChecksFilters(t *testing.T) {
	c, db, out := newConsole(t)
	ctx := context.Background()

	seed(t, db, uptime.ChecksCollection, "upupupupupupupupupup", uptime.Check{
		ID: "upupupupupupupupupup", Protocol: "https", URL: "up.example.com", Method: "get", State: uptime.StateUp,
	})
	seed(t, db, uptime.ChecksCollection, "dndndndndndndndndndn", uptime.Check{
		ID: "dndndndndndndndndndn", Protocol: "http", URL: "down.example.com", Method: "post", State: uptime.StateDown,
	})
	seed(t, db, uptime.ChecksCollection, "nwnwnwnwnwnwnwnwnwnw", uptime.Check{
		ID: "nwnwnwnwnwnwnwnwnwnw", Protocol: "http", URL: "new.example.com", Method: "get",
	})

	c.Process(ctx, "list checks")
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "GET https://up.example.com State: up")
	assert.Contains(t, out.String(), "POST http://down.example.com State: down")
	assert.Contains(t, out.String(), "State: unknown")

	out.Reset()
	c.Process(ctx, "list checks --up")
	assert.Contains(t, out.String(), "up.example.com")
	assert.NotContains(t, out.String(), "down.example.com")
	assert.NotContains(t, out.String(), "new.example.com")

	out.Reset()
	c.Process(ctx, "list checks --down")
	assert.NotContains(t, out.String(), "up.example.com")
	assert.Contains(t, out.String(), "down.example.com")
	assert.Contains(t, out.String(), "new.example.com")

	out.Reset()
	c.Process(ctx, "more check info --upupupupupupupupupup")
	assert.Contains(t, out.String(), `"url": "up.example.com"`)
}

func TestMenuAndOrders(t *testing.T) {
	c, db, out := newConsole(t, WithMenu(pizza.Menu{{ID: 7, Name: "Calzone", Price: 9.5}}))
	ctx := context.Background()

	c.Process(ctx, "menu")
	assert.Equal(t, "ID: 7 Name: Calzone Price: 9.50\n", out.String())

	seed(t, db, pizza.PurchasesCollection, "fresh", pizza.Purchase{
		PurchaseID: "fresh", Email: "a@b.com", Total: 21, CreatedAt: now.Add(-2 * time.Hour),
	})
	seed(t, db, pizza.PurchasesCollection, "stale", pizza.Purchase{
		PurchaseID: "stale", Email: "a@b.com", Total: 10.5, CreatedAt: now.Add(-72 * time.Hour),
	})

	out.Reset()
	c.Process(ctx, "recent orders")
	assert.Contains(t, out.String(), "Order: fresh Email: a@b.com Total: 21.00")
	assert.NotContains(t, out.String(), "stale")

	out.Reset()
	c.Process(ctx, "order info --stale")
	assert.Contains(t, out.String(), `"purchaseId": "stale"`)
}

func TestBackup(t *testing.T) {
	c, _, out := newConsole(t)
	c.Process(context.Background(), "backup")
	assert.Equal(t, "Backup is not configured\n", out.String())

	stub := &backupStub{count: 12}
	c, _, out = newConsole(t, WithBackup(stub))
	c.Process(context.Background(), "backup")
	assert.Equal(t, "Backed up 12 records\n", out.String())
	assert.Equal(t, 1, stub.calls)

	stub.err = errors.New("bucket is gone")
	out.Reset()
	c.Process(context.Background(), "backup")
	assert.Contains(t, out.String(), "bucket is gone")
}

func TestRunStopsOnExit(t *testing.T) {
	c, _, out := newConsole(t)

	err := c.Run(context.Background(), strings.NewReader("menu\nexit\nstats\n"))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "The CLI is running")
	assert.Contains(t, out.String(), "Margherita")
	assert.NotContains(t, out.String(), "SYSTEM STATISTICS")
}
