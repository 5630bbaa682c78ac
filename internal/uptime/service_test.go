package uptime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/cascade"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

type fakeResolver struct {
	known map[string]bool
}

func (r fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if r.known[host] {
		return []string{"127.0.0.1"}, nil
	}
	return nil, errors.New("no such host")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db      *recordstore.MemoryStore
	clock   *fakeClock
	service *Service
}

func newFixture(t *testing.T, maxChecks int) *fixture {
	t.Helper()

	db := recordstore.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokens(db, time.Hour, auth.WithClock(clock.Now))
	hasher := auth.NewHasher("secret", auth.WithArgon2Params(1, 64, 1))
	reaper := cascade.New(db, 10, time.Millisecond)

	service := New(db, tokens, hasher, reaper, maxChecks,
		WithResolver(fakeResolver{known: map[string]bool{"example.com": true}}),
		WithClock(clock.Now),
	)

	return &fixture{db: db, clock: clock, service: service}
}

func (f *fixture) signUp(t *testing.T, phone string) string {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.service.CreateUser(ctx, NewUser{
		FirstName:    "Alice",
		LastName:     "Liddell",
		Phone:        phone,
		Password:     "pw",
		TOSAgreement: true,
	}))
	token, err := f.service.Login(ctx, Credentials{Phone: phone, Password: "pw"})
	require.NoError(t, err)

	return token.ID
}

func validCheck() NewCheck {
	return NewCheck{
		Protocol:       "https",
		URL:            "example.com/health",
		Method:         "GET",
		SuccessCodes:   []int{200, 201},
		TimeoutSeconds: 3,
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewUser
		want error
	}{
		{
			name: "valid",
			in:   NewUser{FirstName: "Alice", LastName: "L", Phone: "5551234567", Password: "pw", TOSAgreement: true},
		},
		{
			name: "duplicate phone",
			in:   NewUser{FirstName: "Bob", LastName: "B", Phone: "5551234567", Password: "pw", TOSAgreement: true},
			want: apperr.ErrConflict,
		},
		{
			name: "short phone",
			in:   NewUser{FirstName: "Bob", LastName: "B", Phone: "555", Password: "pw", TOSAgreement: true},
			want: apperr.ErrValidation,
		},
		{
			name: "signed phone",
			in:   NewUser{FirstName: "Bob", LastName: "B", Phone: "-123456789", Password: "pw", TOSAgreement: true},
			want: apperr.ErrValidation,
		},
		{
			name: "plus sign phone",
			in:   NewUser{FirstName: "Bob", LastName: "B", Phone: "+123456789", Password: "pw", TOSAgreement: true},
			want: apperr.ErrValidation,
		},
		{
			name: "decimal phone",
			in:   NewUser{FirstName: "Bob", LastName: "B", Phone: "12345.6789", Password: "pw", TOSAgreement: true},
			want: apperr.ErrValidation,
		},
		{
			name: "no tos agreement",
			in:   NewUser{FirstName: "Bob", LastName: "B", Phone: "5559999999", Password: "pw"},
			want: apperr.ErrValidation,
		},
		{
			name: "blank first name",
			in:   NewUser{FirstName: "   ", LastName: "B", Phone: "5559999999", Password: "pw", TOSAgreement: true},
			want: apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.CreateUser(ctx, tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetUserHidesPasswordAndChecksOwnership(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")
	bob := f.signUp(t, "5557654321")

	user, err := f.service.GetUser(ctx, alice, "5551234567")
	require.NoError(t, err)
	assert.Empty(t, user.HashedPassword)
	assert.Equal(t, "Alice", user.FirstName)
	assert.Equal(t, []string{}, user.Checks)

	_, err = f.service.GetUser(ctx, bob, "5551234567")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = f.service.GetUser(ctx, alice, "55512")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	err := f.service.UpdateUser(ctx, alice, UserUpdate{Phone: "5551234567"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.service.UpdateUser(ctx, alice, UserUpdate{Phone: "5551234567", LastName: "Smith", Password: "new"}))

	user, err := f.service.GetUser(ctx, alice, "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "Smith", user.LastName)
	assert.Equal(t, "Alice", user.FirstName)

	_, err = f.service.Login(ctx, Credentials{Phone: "5551234567", Password: "pw"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.service.Login(ctx, Credentials{Phone: "5551234567", Password: "new"})
	assert.NoError(t, err)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.service.Login(context.Background(), Credentials{Phone: "5550000000", Password: "pw"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTokenLifecycle(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	token, err := f.service.GetToken(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "5551234567", token.Owner)

	_, err = f.service.ExtendToken(ctx, TokenExtension{ID: alice, Extend: false})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.clock.Advance(30 * time.Minute)
	extended, err := f.service.ExtendToken(ctx, TokenExtension{ID: alice, Extend: true})
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(time.Hour), extended.Expires)

	f.clock.Advance(2 * time.Hour)
	_, err = f.service.GetUser(ctx, alice, "5551234567")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	require.NoError(t, f.service.Logout(ctx, alice))
	assert.ErrorIs(t, f.service.Logout(ctx, alice), apperr.ErrNotFound)
}

func TestCreateCheckQuotaAndDNS(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	check, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)
	assert.True(t, auth.IsID(check.ID))
	assert.Equal(t, "get", check.Method)
	assert.Equal(t, "5551234567", check.UserPhone)

	unresolvable := validCheck()
	unresolvable.URL = "nowhere.invalid"
	_, err = f.service.CreateCheck(ctx, alice, unresolvable)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)

	_, err = f.service.CreateCheck(ctx, alice, validCheck())
	assert.ErrorIs(t, err, apperr.ErrCapacity)
	assert.Equal(t, "The user already has the maximum number of checks (2)", apperr.Message(err))

	user, err := f.service.GetUser(ctx, alice, "5551234567")
	require.NoError(t, err)
	assert.Len(t, user.Checks, 2)
}

func TestCreateCheckValidation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	mutations := map[string]func(*NewCheck){
		"protocol":      func(c *NewCheck) { c.Protocol = "ftp" },
		"method":        func(c *NewCheck) { c.Method = "patch" },
		"no codes":      func(c *NewCheck) { c.SuccessCodes = nil },
		"zero timeout":  func(c *NewCheck) { c.TimeoutSeconds = 0 },
		"long timeout":  func(c *NewCheck) { c.TimeoutSeconds = 6 },
		"missing url":   func(c *NewCheck) { c.URL = " " },
		"invalid codes": func(c *NewCheck) { c.SuccessCodes = []int{42} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := validCheck()
			mutate(&in)
			_, err := f.service.CreateCheck(ctx, alice, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := f.service.CreateCheck(ctx, "aaaaaaaaaaaaaaaaaaaa", validCheck())
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestCheckOwnership(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")
	bob := f.signUp(t, "5557654321")

	check, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)

	_, err = f.service.GetCheck(ctx, bob, check.ID)
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = f.service.GetCheck(ctx, bob, "bbbbbbbbbbbbbbbbbbbb")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, f.service.DeleteCheck(ctx, bob, check.ID), apperr.ErrAuth)

	got, err := f.service.GetCheck(ctx, alice, check.ID)
	require.NoError(t, err)
	assert.Equal(t, check, got)
}

func TestUpdateCheck(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	check, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)

	_, err = f.service.UpdateCheck(ctx, alice, CheckUpdate{ID: check.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bad := "ftp"
	_, err = f.service.UpdateCheck(ctx, alice, CheckUpdate{ID: check.ID, Protocol: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	method := "POST"
	timeout := 5
	updated, err := f.service.UpdateCheck(ctx, alice, CheckUpdate{ID: check.ID, Method: &method, TimeoutSeconds: &timeout})
	require.NoError(t, err)
	assert.Equal(t, "post", updated.Method)
	assert.Equal(t, 5, updated.TimeoutSeconds)
	assert.Equal(t, "https", updated.Protocol)
}

func TestDeleteCheckRemovesItFromUser(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	first, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)
	second, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteCheck(ctx, alice, first.ID))
	assert.ErrorIs(t, f.service.DeleteCheck(ctx, alice, first.ID), apperr.ErrNotFound)

	checks, err := f.service.ListChecks(ctx, alice)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, second.ID, checks[0].ID)
}

func TestDeleteUserCascadesToChecks(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	check, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteUser(ctx, alice, "5551234567"))

	var stored Check
	assert.ErrorIs(t, f.db.Read(ctx, ChecksCollection, check.ID, &stored), recordstore.ErrNotFound)
	markers, err := f.db.List(ctx, cascade.MarkersCollection)
	require.NoError(t, err)
	assert.Empty(t, markers)

	assert.ErrorIs(t, f.service.DeleteUser(ctx, alice, "5551234567"), apperr.ErrNotFound)
}

func TestRecordOutcome(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	alice := f.signUp(t, "5551234567")

	check, err := f.service.CreateCheck(ctx, alice, validCheck())
	require.NoError(t, err)

	at := f.clock.Now()
	_, changed, err := f.service.RecordOutcome(ctx, check.ID, StateUp, at)
	require.NoError(t, err)
	assert.False(t, changed)

	_, changed, err = f.service.RecordOutcome(ctx, check.ID, StateUp, at)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, changed, err := f.service.RecordOutcome(ctx, check.ID, StateDown, at)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StateDown, stored.State)

	all, err := f.service.AllChecks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, StateDown, all[0].State)
}

func TestCreateCheckConcurrently(t *testing.T) {
	const (
		maxChecks = 5
		workers   = 12
	)
	f := newFixture(t, maxChecks)
	ctx := context.Background()
	token := f.signUp(t, "5551234567")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   []string
		capacity  int
		otherErrs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check, err := f.service.CreateCheck(ctx, token, validCheck())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created = append(created, check.ID)
			case errors.Is(err, apperr.ErrCapacity):
				capacity++
			default:
				otherErrs = append(otherErrs, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, otherErrs)
	assert.Len(t, created, maxChecks)
	assert.Equal(t, workers-maxChecks, capacity)

	user, err := f.service.GetUser(ctx, token, "5551234567")
	require.NoError(t, err)
	assert.ElementsMatch(t, created, user.Checks)

	stored, err := f.db.List(ctx, ChecksCollection)
	require.NoError(t, err)
	assert.ElementsMatch(t, user.Checks, stored)
}
