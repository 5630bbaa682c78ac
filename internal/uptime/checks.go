package uptime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
	"github.com/patric-chuzhbe/flatapi/internal/validation"
)

const (
	checkNotFoundMessage    = "The specified check does not exist"
	triesToGenerateUniqueID = 10
)

func (s *Service) readCheck(ctx context.Context, id string) (*Check, error) {
	var check Check
	err := s.db.Read(ctx, ChecksCollection, id, &check)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, apperr.NotFound(checkNotFoundMessage)
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not read the check",
			fmt.Errorf("in internal/uptime/checks.go/readCheck(): error while `s.db.Read()` calling: %w", err),
		)
	}

	return &check, nil
}

func (s *Service) resolves(ctx context.Context, protocol, rawURL string) bool {
	parsed, err := url.Parse(protocol + "://" + rawURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}

	addresses, err := s.resolver.LookupHost(ctx, parsed.Hostname())

	return err == nil && len(addresses) > 0
}

// CreateCheck adds a check to the token owner's list, up to the configured
// quota.
func (s *Service) CreateCheck(ctx context.Context, tokenID string, in NewCheck) (*Check, error) {
	in.normalize()
	if err := validation.Struct(s.validate, in); err != nil {
		return nil, err
	}

	owner, err := s.tokens.Resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userLockKey(owner))
	defer unlock()

	user, err := s.readUser(ctx, owner)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Auth(auth.InvalidTokenMessage)
	}
	if err != nil {
		return nil, err
	}

	if len(user.Checks) >= s.maxChecks {
		return nil, apperr.Capacity(fmt.Sprintf("The user already has the maximum number of checks (%d)", s.maxChecks))
	}

	if !s.resolves(ctx, in.Protocol, in.URL) {
		return nil, apperr.Validation("The hostname of the URL entered did not resolve to any DNS entries")
	}

	check := &Check{
		UserPhone:      owner,
		Protocol:       in.Protocol,
		URL:            in.URL,
		Method:         in.Method,
		SuccessCodes:   in.SuccessCodes,
		TimeoutSeconds: in.TimeoutSeconds,
	}
	if err := s.createCheckRecord(ctx, check); err != nil {
		return nil, err
	}

	user.Checks = append(user.Checks, check.ID)
	if err := s.db.Update(ctx, UsersCollection, owner, user); err != nil {
		if rollbackErr := s.db.Delete(ctx, ChecksCollection, check.ID); rollbackErr != nil {
			logger.Log.Warnw("could not roll back an orphaned check", "check", check.ID, "err", rollbackErr)
		}
		return nil, apperr.Internal(
			"Could not update the user with the new check",
			fmt.Errorf("in internal/uptime/checks.go/CreateCheck(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return check, nil
}

func (s *Service) createCheckRecord(ctx context.Context, check *Check) error {
	for i := 0; i < triesToGenerateUniqueID; i++ {
		id, err := auth.RandomString(auth.IDLength)
		if err != nil {
			return apperr.Internal("Could not create the new check", err)
		}
		check.ID = id

		err = s.db.Create(ctx, ChecksCollection, check.ID, check)
		if errors.Is(err, recordstore.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return apperr.Internal(
				"Could not create the new check",
				fmt.Errorf("in internal/uptime/checks.go/createCheckRecord(): error while `s.db.Create()` calling: %w", err),
			)
		}
		return nil
	}

	return apperr.Internal("Could not create the new check", errors.New("the number of attempts to generate a unique check id has been exceeded"))
}

// GetCheck returns a check if the token belongs to its owner. A missing
// check is reported before the token is looked at.
func (s *Service) GetCheck(ctx context.Context, tokenID, id string) (*Check, error) {
	if !auth.IsID(id) {
		return nil, apperr.Validation("Missing required field")
	}

	check, err := s.readCheck(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Verify(ctx, tokenID, check.UserPhone); err != nil {
		return nil, err
	}

	return check, nil
}

func (s *Service) UpdateCheck(ctx context.Context, tokenID string, in CheckUpdate) (*Check, error) {
	in.normalize()
	if !auth.IsID(in.ID) {
		return nil, apperr.Validation("Missing required field")
	}
	if in.empty() {
		return nil, apperr.Validation("Missing fields to update")
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(checkLockKey(in.ID))
	defer unlock()

	check, err := s.readCheck(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Verify(ctx, tokenID, check.UserPhone); err != nil {
		return nil, err
	}

	in.apply(check)
	err = s.db.Update(ctx, ChecksCollection, check.ID, check)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, apperr.NotFound(checkNotFoundMessage)
	}
	if err != nil {
		return nil, apperr.Internal(
			"Could not update the check",
			fmt.Errorf("in internal/uptime/checks.go/UpdateCheck(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return check, nil
}

// DeleteCheck removes the check and drops it from the owner's list.
func (s *Service) DeleteCheck(ctx context.Context, tokenID, id string) error {
	if !auth.IsID(id) {
		return apperr.Validation("Missing required field")
	}

	check, err := s.readCheck(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tokens.Verify(ctx, tokenID, check.UserPhone); err != nil {
		return err
	}

	unlockUser := s.locks.Lock(userLockKey(check.UserPhone))
	defer unlockUser()
	unlockCheck := s.locks.Lock(checkLockKey(id))
	defer unlockCheck()

	err = s.db.Delete(ctx, ChecksCollection, id)
	if errors.Is(err, recordstore.ErrNotFound) {
		return apperr.NotFound(checkNotFoundMessage)
	}
	if err != nil {
		return apperr.Internal(
			"Could not delete the check",
			fmt.Errorf("in internal/uptime/checks.go/DeleteCheck(): error while `s.db.Delete()` calling: %w", err),
		)
	}

	user, err := s.readUser(ctx, check.UserPhone)
	if err != nil {
		return apperr.Internal("Could not find the user who created the check", err)
	}

	position := funk.IndexOfString(user.Checks, id)
	if position < 0 {
		return apperr.Internal("Could not find the check on the user's object", errors.New("check id is missing from the owner's list"))
	}
	user.Checks = append(user.Checks[:position], user.Checks[position+1:]...)

	if err := s.db.Update(ctx, UsersCollection, user.Phone, user); err != nil {
		return apperr.Internal(
			"Could not update the user",
			fmt.Errorf("in internal/uptime/checks.go/DeleteCheck(): error while `s.db.Update()` calling: %w", err),
		)
	}

	return nil
}

// ListChecks returns the checks of the token owner. Ids whose record is gone
// are skipped.
func (s *Service) ListChecks(ctx context.Context, tokenID string) ([]Check, error) {
	owner, err := s.tokens.Resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	user, err := s.readUser(ctx, owner)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Auth(auth.InvalidTokenMessage)
	}
	if err != nil {
		return nil, err
	}

	checks := make([]Check, 0, len(user.Checks))
	for _, id := range user.Checks {
		check, err := s.readCheck(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			logger.Log.Warnw("user lists a missing check", "user", owner, "check", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		checks = append(checks, *check)
	}

	return checks, nil
}

// AllChecks returns every stored check. Used by the background checker.
func (s *Service) AllChecks(ctx context.Context) ([]Check, error) {
	ids, err := s.db.List(ctx, ChecksCollection)
	if err != nil {
		return nil, fmt.Errorf("in internal/uptime/checks.go/AllChecks(): error while `s.db.List()` calling: %w", err)
	}

	checks := make([]Check, 0, len(ids))
	for _, id := range ids {
		var check Check
		err := s.db.Read(ctx, ChecksCollection, id, &check)
		if errors.Is(err, recordstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("in internal/uptime/checks.go/AllChecks(): error while `s.db.Read()` calling: %w", err)
		}
		checks = append(checks, check)
	}

	return checks, nil
}

// RecordOutcome stores the result of a probe and reports whether the state
// changed from a previously known one.
func (s *Service) RecordOutcome(ctx context.Context, id, state string, at time.Time) (*Check, bool, error) {
	unlock := s.locks.Lock(checkLockKey(id))
	defer unlock()

	check, err := s.readCheck(ctx, id)
	if err != nil {
		return nil, false, err
	}

	previous := check.State
	check.State = state
	check.LastChecked = &at

	if err := s.db.Update(ctx, ChecksCollection, id, check); err != nil {
		return nil, false, fmt.Errorf("in internal/uptime/checks.go/RecordOutcome(): error while `s.db.Update()` calling: %w", err)
	}

	return check, previous != "" && previous != state, nil
}
