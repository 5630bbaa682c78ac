package pizza

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

const (
	cartNotFoundMessage     = "The specified cart does not exist"
	triesToGenerateUniqueID = 10
)

type cartRequest struct {
	Items []CartItem `json:"items" validate:"required,min=1,dive"`
}

// Menu returns the menu to any holder of a valid token.
func (s *Service) Menu(ctx context.Context, tokenID string) (Menu, error) {
	if _, err := s.tokens.Resolve(ctx, tokenID); err != nil {
		return nil, err
	}

	return s.menu, nil
}

func (s *Service) ownerOf(ctx context.Context, tokenID string) (*User, func(), error) {
	owner, err := s.tokens.Resolve(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.Lock(userLockKey(owner))

	user, err := s.readUser(ctx, owner)
	if errors.Is(err, apperr.ErrNotFound) {
		unlock()
		return nil, nil, apperr.Auth(auth.InvalidTokenMessage)
	}
	if err != nil {
		unlock()
		return nil, nil, err
	}

	return user, unlock, nil
}

// CreateCart stores a new cart for the token owner and returns its id.
func (s *Service) CreateCart(ctx context.Context, tokenID string, items []CartItem) (string, error) {
	if err := validation.Struct(s.validate, cartRequest{Items: items}); err != nil {
		return "", apperr.Validation("Invalid cart request")
	}
	for _, item := range items {
		if _, ok := s.menu.find(item.ID); !ok {
			return "", apperr.Validation(fmt.Sprintf("Item %d is not on the menu", item.ID))
		}
	}

	user, unlock, err := s.ownerOf(ctx, tokenID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if len(user.Carts) >= s.maxCarts {
		return "", apperr.Capacity(fmt.Sprintf("The user already has the maximum number of carts (%d)", s.maxCarts))
	}

	cart := &Cart{
		Email:     user.Email,
		Items:     items,
		CreatedAt: s.now(),
	}
	key, err := s.createCartRecord(ctx, cart)
	if err != nil {
		return "", err
	}

	user.Carts = append(user.Carts, key)
	if err := s.db.Update(ctx, UsersCollection, user.Email, user); err != nil {
		if rollbackErr := s.db.Delete(ctx, CartsCollection, key); rollbackErr != nil {
			logger.Log.Warnw("could not roll back an orphaned cart", "cart", key, "err", rollbackErr)
		}
		return "", apperr.Internal(
			"Error adding pizzas to cart",
			fmt.Errorf("in internal/pizza/carts.go/CreateCart(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return cart.CartID, nil
}

func (s *Service) createCartRecord(ctx context.Context, cart *Cart) (string, error) {
	stamp := cart.CreatedAt.UnixMilli()
	for i := 0; i < triesToGenerateUniqueID; i++ {
		cart.CartID = strconv.FormatInt(stamp+int64(i), 10)
		key := CartKey(cart.CartID, cart.Email)

		err := s.db.Create(ctx, CartsCollection, key, cart)
		if errors.Is(err, recordstore.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return "", apperr.Internal(
				"Error adding pizzas to cart",
				fmt.Errorf("in internal/pizza/carts.go/createCartRecord(): error while `s.db.Create()` calling: %w", err),
			)
		}
		return key, nil
	}

	return "", apperr.Internal("Error adding pizzas to cart", errors.New("the number of attempts to generate a unique cart id has been exceeded"))
}

func (s *Service) readCart(ctx context.Context, key string) (*Cart, error) {
	var cart Cart
	err := s.db.Read(ctx, CartsCollection, key, &cart)
	if errors.Is(err, recordstore.ErrNotFound) || errors.Is(err, recordstore.ErrInvalidKey) {
		return nil, apperr.NotFound(cartNotFoundMessage)
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not read the cart",
			fmt.Errorf("in internal/pizza/carts.go/readCart(): error while `s.db.Read()` calling: %w", err),
		)
	}

	return &cart, nil
}

// ownedCart reads a cart of owner. Carts stored for anybody else are
// reported as missing.
func (s *Service) ownedCart(ctx context.Context, cartID, owner string) (*Cart, string, error) {
	key := CartKey(cartID, owner)
	cart, err := s.readCart(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if cart.Email != owner || cart.CartID != cartID {
		return nil, "", apperr.NotFound(cartNotFoundMessage)
	}

	return cart, key, nil
}

// ListCarts returns every cart of the token owner.
func (s *Service) ListCarts(ctx context.Context, tokenID string) ([]Cart, error) {
	owner, err := s.tokens.Resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	keys, err := s.db.ListMatching(ctx, CartsCollection, recordstore.HasSuffix(cartsOfSuffix(owner)))
	if err != nil {
		return nil, apperr.Internal(
			"Could not list the carts",
			fmt.Errorf("in internal/pizza/carts.go/ListCarts(): error while `s.db.ListMatching()` calling: %w", err),
		)
	}

	carts := make([]Cart, 0, len(keys))
	for _, key := range keys {
		if !ownsCartKey(key, owner) {
			continue
		}
		cart, err := s.readCart(ctx, key)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if cart.Email != owner {
			continue
		}
		carts = append(carts, *cart)
	}

	return carts, nil
}

// DeleteCart removes one of the token owner's carts. Carts are addressed
// relative to the owner, so a foreign cart id is simply not found.
func (s *Service) DeleteCart(ctx context.Context, tokenID, cartID string) error {
	cartID = strings.TrimSpace(cartID)
	if !IsCartID(cartID) {
		return apperr.Validation("Missing required field")
	}

	user, unlock, err := s.ownerOf(ctx, tokenID)
	if err != nil {
		return err
	}
	defer unlock()

	_, key, err := s.ownedCart(ctx, cartID, user.Email)
	if err != nil {
		return err
	}

	return s.removeCart(ctx, user, key)
}

func (s *Service) removeCart(ctx context.Context, user *User, key string) error {
	err := s.db.Delete(ctx, CartsCollection, key)
	if errors.Is(err, recordstore.ErrNotFound) || errors.Is(err, recordstore.ErrInvalidKey) {
		return apperr.NotFound(cartNotFoundMessage)
	}
	if err != nil {
		return apperr.Internal(
			"Error deleting cart",
			fmt.Errorf("in internal/pizza/carts.go/removeCart(): error while `s.db.Delete()` calling: %w", err),
		)
	}

	position := funk.IndexOfString(user.Carts, key)
	if position < 0 {
		return apperr.Internal("Could not find the cart on the user's object", errors.New("cart key is missing from the owner's list"))
	}
	user.Carts = append(user.Carts[:position], user.Carts[position+1:]...)

	if err := s.db.Update(ctx, UsersCollection, user.Email, user); err != nil {
		return apperr.Internal(
			"Could not update the user",
			fmt.Errorf("in internal/pizza/carts.go/removeCart(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return nil
}
