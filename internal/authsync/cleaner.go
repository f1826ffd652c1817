// Package authsync keeps login accounts in step with user profile documents.
package authsync

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Directory deletes login accounts. Deleting an absent account succeeds.
type Directory interface {
	DeleteUser(ctx context.Context, userID string) error
}

type Cleaner struct {
	directory Directory
	log       zerolog.Logger
}

func New(directory Directory, log zerolog.Logger) (*Cleaner, error) {
	if directory == nil {
		return nil, errors.New("authsync: directory must not be nil")
	}
	return &Cleaner{
		directory: directory,
		log:       log.With().Str("component", "authsync").Logger(),
	}, nil
}

// ProfileDeleted removes the login account of a deleted user profile. Failures
// are logged and reported as false; they never fail the trigger.
func (c *Cleaner) ProfileDeleted(ctx context.Context, userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		c.log.Warn().Msg("deleted profile without id")
		return false
	}
	if err := c.directory.DeleteUser(ctx, userID); err != nil {
		c.log.Error().Err(err).Str("user_id", userID).Msg("login account cleanup failed")
		return false
	}
	c.log.Info().Str("user_id", userID).Msg("login account removed")
	return true
}
