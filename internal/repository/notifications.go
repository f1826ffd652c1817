package repository

import (
	"context"
	"fmt"

	"clinic-booking/internal/domain"
)

// MarkNotificationRead flags one of userID's notifications read. A notification
// that is not in userID's collection fails with ErrConditionFailed.
func (c *Client) MarkNotificationRead(ctx context.Context, userID, id string) error {
	u := newUpdate().set(true, "read").requireExists()
	if err := c.updateItem(ctx, domain.NotificationsCollection(userID), id, u); err != nil {
		return fmt.Errorf("repository: MarkNotificationRead: %w", err)
	}
	return nil
}
