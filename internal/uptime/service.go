// Package uptime implements the uptime monitor: users keyed by phone number,
// bearer tokens and the URL checks each user owns.
package uptime

import (
	"context"
	"net"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/cascade"
	"github.com/patric-chuzhbe/flatapi/internal/keylock"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

type recordStore interface {
	Create(ctx context.Context, collection, id string, record any) error
	Read(ctx context.Context, collection, id string, dst any) error
	Update(ctx context.Context, collection, id string, record any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]string, error)
}

type tokenService interface {
	Issue(ctx context.Context, owner string) (*auth.Token, error)
	Get(ctx context.Context, id string) (*auth.Token, error)
	Resolve(ctx context.Context, id string) (string, error)
	Verify(ctx context.Context, id, owner string) error
	Extend(ctx context.Context, id string) (*auth.Token, error)
	Delete(ctx context.Context, id string) error
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
}

type cascader interface {
	Cascade(ctx context.Context, ownerCollection, ownerID string, dependents []cascade.Dependent) error
}

// Resolver looks up the addresses of a host name.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Service holds the uptime monitor operations.
type Service struct {
	db        recordStore
	tokens    tokenService
	hasher    passwordHasher
	cascader  cascader
	resolver  Resolver
	maxChecks int
	locks     *keylock.Locker
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Service)

// WithResolver replaces the system DNS resolver.
func WithResolver(resolver Resolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(
	db recordStore,
	tokens tokenService,
	hasher passwordHasher,
	cascader cascader,
	maxChecks int,
	opts ...Option,
) *Service {
	s := &Service{
		db:        db,
		tokens:    tokens,
		hasher:    hasher,
		cascader:  cascader,
		resolver:  net.DefaultResolver,
		maxChecks: maxChecks,
		locks:     keylock.New(),
		validate:  validation.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func userLockKey(phone string) string {
	return UsersCollection + "/" + phone
}

func checkLockKey(id string) string {
	return ChecksCollection + "/" + id
}
