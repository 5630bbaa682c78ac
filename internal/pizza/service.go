// Package pizza implements the pizza ordering API: users keyed by e-mail,
// the menu, carts and paid purchases.
package pizza

import (
	"context"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/cascade"
	"github.com/patric-chuzhbe/flatapi/internal/keylock"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

const defaultReceiptTimeout = 30 * time.Second

type recordStore interface {
	Create(ctx context.Context, collection, id string, record any) error
	Read(ctx context.Context, collection, id string, dst any) error
	Update(ctx context.Context, collection, id string, record any) error
	Delete(ctx context.Context, collection, id string) error
	ListMatching(ctx context.Context, collection string, match recordstore.Matcher) ([]string, error)
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

// PaymentProcessor charges an amount given in cents.
type PaymentProcessor interface {
	Charge(ctx context.Context, amount int64, description string) (string, error)
}

// Notifier delivers receipts.
type Notifier interface {
	Send(ctx context.Context, to, subject, text string) (string, error)
}

type Service struct {
	db             recordStore
	tokens         tokenService
	hasher         passwordHasher
	cascader       cascader
	payments       PaymentProcessor
	notifier       Notifier
	menu           Menu
	maxCarts       int
	receiptTimeout time.Duration
	locks          *keylock.Locker
	validate       *validator.Validate
	now            func() time.Time
	receipts       sync.WaitGroup
}

type Option func(*Service)

func WithMenu(menu Menu) Option {
	return func(s *Service) {
		s.menu = menu
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithReceiptTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.receiptTimeout = timeout
	}
}

func New(
	db recordStore,
	tokens tokenService,
	hasher passwordHasher,
	cascader cascader,
	payments PaymentProcessor,
	notifier Notifier,
	maxCarts int,
	opts ...Option,
) *Service {
	s := &Service{
		db:             db,
		tokens:         tokens,
		hasher:         hasher,
		cascader:       cascader,
		payments:       payments,
		notifier:       notifier,
		menu:           DefaultMenu,
		maxCarts:       maxCarts,
		receiptTimeout: defaultReceiptTimeout,
		locks:          keylock.New(),
		validate:       validation.New(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Wait blocks until every pending receipt has been sent or has failed.
func (s *Service) Wait() {
	s.receipts.Wait()
}

func userLockKey(email string) string {
	return UsersCollection + "/" + email
}
