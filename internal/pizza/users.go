package pizza

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/cascade"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

const (
	userNotFoundMessage = "The specified user does not exist"
	invalidKeyMessage   = "The email cannot be used as a user identifier"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) validEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) error {
	in.normalize()
	if err := validation.Struct(s.validate, in); err != nil {
		return err
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return apperr.Internal(
			"Could not hash the user's password",
			fmt.Errorf("in internal/pizza/users.go/CreateUser(): error while `s.hasher.Hash()` calling: %w", err),
		)
	}

	unlock := s.locks.Lock(userLockKey(in.Email))
	defer unlock()

	user := User{
		Email:          in.Email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		HashedPassword: hashedPassword,
		Address:        in.Address,
		StreetAddress:  in.StreetAddress,
		Carts:          []string{},
		CreatedAt:      s.now(),
	}
	err = s.db.Create(ctx, UsersCollection, user.Email, &user)
	if errors.Is(err, recordstore.ErrInvalidKey) {
		return apperr.Validation(invalidKeyMessage)
	}
	if errors.Is(err, recordstore.ErrAlreadyExists) {
		return apperr.Conflict("A user with that email already exists")
	}
	if err != nil {
		return apperr.Internal(
			"Could not create the new user",
			fmt.Errorf("in internal/pizza/users.go/CreateUser(): error while `s.db.Create()` calling: %w", err),
		)
	}

	return nil
}

func (s *Service) readUser(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.Read(ctx, UsersCollection, email, &user)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, apperr.NotFound(userNotFoundMessage)
	}
	if errors.Is(err, recordstore.ErrInvalidKey) {
		return nil, apperr.Validation(invalidKeyMessage)
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not read the user",
			fmt.Errorf("in internal/pizza/users.go/readUser(): error while `s.db.Read()` calling: %w", err),
		)
	}

	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, tokenID, email string) (*User, error) {
	email = normalizeEmail(email)
	if !s.validEmail(email) {
		return nil, apperr.Validation("Missing required field")
	}
	if err := s.tokens.Verify(ctx, tokenID, email); err != nil {
		return nil, err
	}

	user, err := s.readUser(ctx, email)
	if err != nil {
		return nil, err
	}

	public := user.Public()

	return &public, nil
}

func (s *Service) UpdateUser(ctx context.Context, tokenID string, in UserUpdate) error {
	in.normalize()
	if err := validation.Struct(s.validate, in); err != nil {
		return err
	}
	if in.empty() {
		return apperr.Validation("Missing fields to update")
	}
	if err := s.tokens.Verify(ctx, tokenID, in.Email); err != nil {
		return err
	}

	var hashedPassword string
	if in.Password != "" {
		var err error
		hashedPassword, err = s.hasher.Hash(in.Password)
		if err != nil {
			return apperr.Internal(
				"Could not hash the user's password",
				fmt.Errorf("in internal/pizza/users.go/UpdateUser(): error while `s.hasher.Hash()` calling: %w", err),
			)
		}
	}

	unlock := s.locks.Lock(userLockKey(in.Email))
	defer unlock()

	user, err := s.readUser(ctx, in.Email)
	if err != nil {
		return err
	}
	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	if in.Address != "" {
		user.Address = in.Address
	}
	if in.StreetAddress != "" {
		user.StreetAddress = in.StreetAddress
	}
	if hashedPassword != "" {
		user.HashedPassword = hashedPassword
	}

	if err := s.db.Update(ctx, UsersCollection, user.Email, user); err != nil {
		return apperr.Internal(
			"Could not update the user",
			fmt.Errorf("in internal/pizza/users.go/UpdateUser(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return nil
}

// DeleteUser removes the user together with every cart stored for it, both
// the listed ones and any whose key names exactly this user. Purchases stay
// as order history.
func (s *Service) DeleteUser(ctx context.Context, tokenID, email string) error {
	email = normalizeEmail(email)
	if !s.validEmail(email) {
		return apperr.Validation("Missing required field")
	}
	if err := s.tokens.Verify(ctx, tokenID, email); err != nil {
		return err
	}

	unlock := s.locks.Lock(userLockKey(email))
	defer unlock()

	user, err := s.readUser(ctx, email)
	if err != nil {
		return err
	}

	matching, err := s.db.ListMatching(ctx, CartsCollection, recordstore.HasSuffix(cartsOfSuffix(email)))
	if err != nil {
		return apperr.Internal(
			"Could not list the user's carts",
			fmt.Errorf("in internal/pizza/users.go/DeleteUser(): error while `s.db.ListMatching()` calling: %w", err),
		)
	}

	owned := funk.FilterString(matching, func(key string) bool {
		return ownsCartKey(key, email)
	})
	keys := funk.UniqString(append(append([]string{}, user.Carts...), owned...))
	dependents := make([]cascade.Dependent, 0, len(keys))
	for _, key := range keys {
		dependents = append(dependents, cascade.Dependent{Collection: CartsCollection, ID: key})
	}

	err = s.cascader.Cascade(ctx, UsersCollection, email, dependents)
	if errors.Is(err, recordstore.ErrNotFound) {
		return apperr.NotFound(userNotFoundMessage)
	}
	if err != nil {
		return apperr.Internal(
			"Could not delete the specified user",
			fmt.Errorf("in internal/pizza/users.go/DeleteUser(): error while `s.cascader.Cascade()` calling: %w", err),
		)
	}

	return nil
}
