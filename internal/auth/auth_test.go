package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/mockstore"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

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

func newTestTokens() (*Tokens, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewTokens(recordstore.NewMemoryStore(), time.Hour, WithClock(clock.Now)), clock
}

func TestHasherIsDeterministicAndKeyed(t *testing.T) {
	light := WithArgon2Params(1, 1024, 1)
	first := NewHasher("secret", light)
	second := NewHasher("other secret", light)

	a, err := first.Hash("hunter2")
	require.NoError(t, err)
	b, err := first.Hash("hunter2")
	require.NoError(t, err)
	c, err := second.Hash("hunter2")
	require.NoError(t, err)
	d, err := first.Hash("hunter3")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "hunter2")

	_, err = first.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestRandomString(t *testing.T) {
	id, err := RandomString(IDLength)
	require.NoError(t, err)
	assert.True(t, IsID(id))

	assert.False(t, IsID("short"))
	assert.False(t, IsID("ABCDEFGHIJKLMNOPQRST"))
}

func TestTokenValidityIsMonotonic(t *testing.T) {
	tokens, clock := newTestTokens()
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "5551234567")
	require.NoError(t, err)
	assert.True(t, token.Expires.After(clock.Now()))

	require.NoError(t, tokens.Verify(ctx, token.ID, "5551234567"))

	clock.Advance(time.Hour - time.Nanosecond)
	require.NoError(t, tokens.Verify(ctx, token.ID, "5551234567"))

	clock.Advance(time.Nanosecond)
	err = tokens.Verify(ctx, token.ID, "5551234567")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	clock.Advance(time.Hour)
	assert.ErrorIs(t, tokens.Verify(ctx, token.ID, "5551234567"), apperr.ErrAuth)
}

func TestVerifyFailures(t *testing.T) {
	tokens, _ := newTestTokens()
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "5551234567")
	require.NoError(t, err)

	assert.ErrorIs(t, tokens.Verify(ctx, token.ID, "5559999999"), apperr.ErrAuth)
	assert.ErrorIs(t, tokens.Verify(ctx, "aaaaaaaaaaaaaaaaaaaa", "5551234567"), apperr.ErrAuth)
	assert.ErrorIs(t, tokens.Verify(ctx, "", "5551234567"), apperr.ErrAuth)
}

func TestExtend(t *testing.T) {
	tokens, clock := newTestTokens()
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "5551234567")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	extended, err := tokens.Extend(ctx, token.ID)
	require.NoError(t, err)
	assert.True(t, extended.Expires.After(token.Expires))
	assert.Equal(t, clock.Now().Add(time.Hour), extended.Expires, "expiry is pushed from now, not from the old expiry")

	stored, err := tokens.Get(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, extended.Expires, stored.Expires)

	clock.Advance(2 * time.Hour)
	_, err = tokens.Extend(ctx, token.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorIs(t, tokens.Verify(ctx, token.ID, "5551234567"), apperr.ErrAuth)

	_, err = tokens.Extend(ctx, "aaaaaaaaaaaaaaaaaaaa")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete(t *testing.T) {
	tokens, _ := newTestTokens()
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, tokens.Delete(ctx, token.ID))
	assert.ErrorIs(t, tokens.Delete(ctx, token.ID), apperr.ErrNotFound)
	_, err = tokens.Get(ctx, token.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIssueRetriesOnCollision(t *testing.T) {
	store := &mockstore.StoreMock{}
	store.On("Create", mock.Anything, TokensCollection, mock.Anything, mock.Anything).
		Return(recordstore.ErrAlreadyExists).Twice()
	store.On("Create", mock.Anything, TokensCollection, mock.Anything, mock.Anything).
		Return(nil).Once()

	tokens := NewTokens(store, time.Hour)
	token, err := tokens.Issue(context.Background(), "5551234567")
	require.NoError(t, err)
	assert.True(t, IsID(token.ID))
	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "Create", 3)
}

func TestStorageFailureIsInternal(t *testing.T) {
	store := &mockstore.StoreMock{}
	store.On("Read", mock.Anything, TokensCollection, mock.Anything, mock.Anything).
		Return(nil, errors.New("disk on fire"))

	tokens := NewTokens(store, time.Hour)
	err := tokens.Verify(context.Background(), "aaaaaaaaaaaaaaaaaaaa", "5551234567")
	assert.ErrorIs(t, err, apperr.ErrInternal)
}

func TestTokenFromRequest(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/api/checks", nil)
	assert.Equal(t, "", TokenFromRequest(request))

	request.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(request))

	request.Header.Set(TokenHeader, "xyz")
	assert.Equal(t, "xyz", TokenFromRequest(request))
}

func TestRequireToken(t *testing.T) {
	var seen string
	handler := RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFromContext(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/menu", nil))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.JSONEq(t, `{"Error":"`+InvalidTokenMessage+`"}`, recorder.Body.String())

	request := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	request.Header.Set(TokenHeader, "abc")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "abc", seen)
}
