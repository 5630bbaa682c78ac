package uptime

import (
	"context"
	"errors"
	"fmt"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/cascade"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

const (
	userNotFoundMessage = "The specified user does not exist"
	invalidKeyMessage   = "The phone number cannot be used as a user identifier"
)

func (s *Service) CreateUser(ctx context.Context, in NewUser) error {
	in.normalize()
	if err := validation.Struct(s.validate, in); err != nil {
		return err
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return apperr.Internal(
			"Could not hash the user's password",
			fmt.Errorf("in internal/uptime/users.go/CreateUser(): error while `s.hasher.Hash()` calling: %w", err),
		)
	}

	unlock := s.locks.Lock(userLockKey(in.Phone))
	defer unlock()

	user := User{
		Phone:          in.Phone,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		HashedPassword: hashedPassword,
		TOSAgreement:   true,
		Checks:         []string{},
		CreatedAt:      s.now(),
	}
	err = s.db.Create(ctx, UsersCollection, user.Phone, &user)
	if errors.Is(err, recordstore.ErrInvalidKey) {
		return apperr.Validation(invalidKeyMessage)
	}
	if errors.Is(err, recordstore.ErrAlreadyExists) {
		return apperr.Conflict("A user with that phone number already exists")
	}
	if err != nil {
		return apperr.Internal(
			"Could not create the new user",
			fmt.Errorf("in internal/uptime/users.go/CreateUser(): error while `s.db.Create()` calling: %w", err),
		)
	}

	return nil
}

func (s *Service) readUser(ctx context.Context, phone string) (*User, error) {
	var user User
	err := s.db.Read(ctx, UsersCollection, phone, &user)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, apperr.NotFound(userNotFoundMessage)
	}
	if errors.Is(err, recordstore.ErrInvalidKey) {
		return nil, apperr.Validation(invalidKeyMessage)
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not read the user",
			fmt.Errorf("in internal/uptime/users.go/readUser(): error while `s.db.Read()` calling: %w", err),
		)
	}

	return &user, nil
}

// GetUser returns the user without its password hash. The token must belong
// to the requested user.
func (s *Service) GetUser(ctx context.Context, tokenID, phone string) (*User, error) {
	if !validation.IsPhone(phone) {
		return nil, apperr.Validation("Missing required field")
	}
	if err := s.tokens.Verify(ctx, tokenID, phone); err != nil {
		return nil, err
	}

	user, err := s.readUser(ctx, phone)
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
	if err := s.tokens.Verify(ctx, tokenID, in.Phone); err != nil {
		return err
	}

	var hashedPassword string
	if in.Password != "" {
		var err error
		hashedPassword, err = s.hasher.Hash(in.Password)
		if err != nil {
			return apperr.Internal(
				"Could not hash the user's password",
				fmt.Errorf("in internal/uptime/users.go/UpdateUser(): error while `s.hasher.Hash()` calling: %w", err),
			)
		}
	}

	unlock := s.locks.Lock(userLockKey(in.Phone))
	defer unlock()

	user, err := s.readUser(ctx, in.Phone)
	if err != nil {
		return err
	}
	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	if hashedPassword != "" {
		user.HashedPassword = hashedPassword
	}

	if err := s.db.Update(ctx, UsersCollection, user.Phone, user); err != nil {
		return apperr.Internal(
			"Could not update the user",
			fmt.Errorf("in internal/uptime/users.go/UpdateUser(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return nil
}

// DeleteUser removes the user and every check it owns.
func (s *Service) DeleteUser(ctx context.Context, tokenID, phone string) error {
	if !validation.IsPhone(phone) {
		return apperr.Validation("Missing required field")
	}
	if err := s.tokens.Verify(ctx, tokenID, phone); err != nil {
		return err
	}

	unlock := s.locks.Lock(userLockKey(phone))
	defer unlock()

	user, err := s.readUser(ctx, phone)
	if err != nil {
		return err
	}

	dependents := make([]cascade.Dependent, 0, len(user.Checks))
	for _, checkID := range user.Checks {
		dependents = append(dependents, cascade.Dependent{Collection: ChecksCollection, ID: checkID})
	}

	err = s.cascader.Cascade(ctx, UsersCollection, phone, dependents)
	if errors.Is(err, recordstore.ErrNotFound) {
		return apperr.NotFound(userNotFoundMessage)
	}
	if err != nil {
		return apperr.Internal(
			"Could not delete the specified user",
			fmt.Errorf("in internal/uptime/users.go/DeleteUser(): error while `s.cascader.Cascade()` calling: %w", err),
		)
	}

	return nil
}
