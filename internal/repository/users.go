package repository

import (
	"context"
	"fmt"

	"clinic-booking/internal/domain"
)

// GetUser reads a user profile with a strongly consistent read so role checks never
// act on a stale record.
func (c *Client) GetUser(ctx context.Context, userID string) (domain.UserProfile, error) {
	item, err := c.getItem(ctx, domain.CollectionUsers, userID, true)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("repository: GetUser: %w", err)
	}
	var rec userRecord
	if err := decode(item, &rec); err != nil {
		return domain.UserProfile{}, err
	}
	return rec.profile()
}

// DeleteUser removes a user profile document. Deleting a missing document succeeds.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if err := c.deleteItem(ctx, domain.CollectionUsers, userID); err != nil {
		return fmt.Errorf("repository: DeleteUser: %w", err)
	}
	return nil
}
