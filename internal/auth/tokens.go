package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/keylock"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

// TokensCollection is the collection holding issued tokens.
const TokensCollection = "tokens"

const triesToGenerateUniqueID = 10

// InvalidTokenMessage is returned to clients for every token failure on a
// protected operation.
const InvalidTokenMessage = "Missing required token in header, or token is invalid"

// Token is a bearer token. It is valid strictly before Expires.
type Token struct {
	ID      string    `json:"id"`
	Owner   string    `json:"owner"`
	Expires time.Time `json:"expires"`
}

// ValidAt reports whether the token is still usable at now.
func (t *Token) ValidAt(now time.Time) bool {
	return now.Before(t.Expires)
}

type recordStore interface {
	Create(ctx context.Context, collection, id string, record any) error
	Read(ctx context.Context, collection, id string, dst any) error
	Update(ctx context.Context, collection, id string, record any) error
	Delete(ctx context.Context, collection, id string) error
}

// Tokens issues and checks bearer tokens persisted in the record store.
type Tokens struct {
	db    recordStore
	ttl   time.Duration
	now   func() time.Time
	locks *keylock.Locker
}

// TokensOption tunes NewTokens.
type TokensOption func(*Tokens)

// WithClock replaces time.Now, which lets tests move time forward.
func WithClock(now func() time.Time) TokensOption {
	return func(t *Tokens) {
		t.now = now
	}
}

// NewTokens returns a token service issuing tokens that live for ttl.
func NewTokens(db recordStore, ttl time.Duration, opts ...TokensOption) *Tokens {
	t := &Tokens{
		db:    db,
		ttl:   ttl,
		now:   time.Now,
		locks: keylock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Issue creates a token for owner. Ids are regenerated on collision.
func (t *Tokens) Issue(ctx context.Context, owner string) (*Token, error) {
	for i := 0; i < triesToGenerateUniqueID; i++ {
		id, err := RandomString(IDLength)
		if err != nil {
			return nil, apperr.Internal("Could not create the new token", err)
		}

		token := &Token{
			ID:      id,
			Owner:   owner,
			Expires: t.now().Add(t.ttl),
		}
		err = t.db.Create(ctx, TokensCollection, id, token)
		if errors.Is(err, recordstore.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal(
				"Could not create the new token",
				fmt.Errorf("in internal/auth/tokens.go/Issue(): error while `t.db.Create()` calling: %w", err),
			)
		}

		return token, nil
	}

	return nil, apperr.Internal("Could not create the new token", errors.New("the number of attempts to generate a unique token id has been exceeded"))
}

// Get returns a token whether or not it has expired.
func (t *Tokens) Get(ctx context.Context, id string) (*Token, error) {
	if !IsID(id) {
		return nil, apperr.Validation("Missing required field")
	}

	var token Token
	err := t.db.Read(ctx, TokensCollection, id, &token)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, apperr.NotFound("Specified token does not exist")
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not read the token",
			fmt.Errorf("in internal/auth/tokens.go/Get(): error while `t.db.Read()` calling: %w", err),
		)
	}

	return &token, nil
}

// Resolve returns the owner of a valid token.
func (t *Tokens) Resolve(ctx context.Context, id string) (string, error) {
	token, err := t.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrInternal) {
			return "", err
		}
		return "", apperr.Auth(InvalidTokenMessage)
	}

	if !token.ValidAt(t.now()) {
		return "", apperr.Auth(InvalidTokenMessage)
	}

	return token.Owner, nil
}

// Verify succeeds only if the token exists, belongs to owner and has not
// expired. Every failure other than a storage error is an authorization
// failure.
func (t *Tokens) Verify(ctx context.Context, id, owner string) error {
	tokenOwner, err := t.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if tokenOwner != owner {
		return apperr.Auth(InvalidTokenMessage)
	}

	return nil
}

// Extend moves the expiry of a still valid token to now + ttl.
func (t *Tokens) Extend(ctx context.Context, id string) (*Token, error) {
	if !IsID(id) {
		return nil, apperr.Validation("Missing required field(s) or field(s) are invalid")
	}

	unlock := t.locks.Lock(id)
	defer unlock()

	token, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := t.now()
	if !token.ValidAt(now) {
		return nil, apperr.Validation("The token has already expired, and cannot be extended")
	}

	token.Expires = now.Add(t.ttl)
	err = t.db.Update(ctx, TokensCollection, id, token)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, apperr.NotFound("Specified token does not exist")
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not update the token's expiration",
			fmt.Errorf("in internal/auth/tokens.go/Extend(): error while `t.db.Update()` calling: %w", err),
		)
	}

	return token, nil
}

// Delete removes a token.
func (t *Tokens) Delete(ctx context.Context, id string) error {
	if !IsID(id) {
		return apperr.Validation("Missing required field")
	}

	unlock := t.locks.Lock(id)
	defer unlock()

	err := t.db.Delete(ctx, TokensCollection, id)
	if errors.Is(err, recordstore.ErrNotFound) {
		return apperr.NotFound("Could not find the specified token")
	}
	if err != nil {
		return apperr.Internal(
			"Could not delete the specified token",
			fmt.Errorf("in internal/auth/tokens.go/Delete(): error while `t.db.Delete()` calling: %w", err),
		)
	}

	return nil
}
