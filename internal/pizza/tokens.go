package pizza

import (
	"context"
	"errors"
	"strings"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

func (s *Service) Login(ctx context.Context, in Credentials) (*auth.Token, error) {
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	if err := validation.Struct(s.validate, in); err != nil {
		return nil, err
	}

	user, err := s.readUser(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Could not find the specified user")
		}
		return nil, err
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("Could not hash the password", err)
	}
	if hashedPassword != user.HashedPassword {
		return nil, apperr.Validation("Password did not match the specified user's stored password")
	}

	return s.tokens.Issue(ctx, user.Email)
}

func (s *Service) GetToken(ctx context.Context, id string) (*auth.Token, error) {
	return s.tokens.Get(ctx, strings.TrimSpace(id))
}

func (s *Service) ExtendToken(ctx context.Context, in TokenExtension) (*auth.Token, error) {
	in.ID = strings.TrimSpace(in.ID)
	if !auth.IsID(in.ID) || !in.Extend {
		return nil, apperr.Validation("Missing required field(s) or field(s) are invalid")
	}

	return s.tokens.Extend(ctx, in.ID)
}

func (s *Service) Logout(ctx context.Context, id string) error {
	return s.tokens.Delete(ctx, strings.TrimSpace(id))
}
