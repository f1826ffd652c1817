package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/repository"
)

// Caller is the authenticated user behind a request. A zero Caller is anonymous.
type Caller struct {
	UserID string
}

func (c Caller) Anonymous() bool { return strings.TrimSpace(c.UserID) == "" }

type UserReader interface {
	GetUser(ctx context.Context, userID string) (domain.UserProfile, error)
}

// profileOf reads the caller's profile with a strong read and checks its role.
// No roles means any role is accepted.
func profileOf(ctx context.Context, users UserReader, caller Caller, roles ...domain.Role) (domain.UserProfile, *Error) {
	if caller.Anonymous() {
		return domain.UserProfile{}, newError(ErrorUnauthenticated, "unauthenticated", nil)
	}
	profile, err := users.GetUser(ctx, caller.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.UserProfile{}, newError(ErrorForbidden, "caller_profile_missing", err)
	}
	if err != nil {
		return domain.UserProfile{}, newError(ErrorInternal, "caller_profile_read_error", err)
	}
	if len(roles) > 0 && !slices.Contains(roles, profile.Role) {
		return profile, newError(ErrorForbidden, "role_required", nil)
	}
	return profile, nil
}
