package usecase

import (
	"context"
	"errors"
	"strings"
)

type NotificationStore interface {
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

type NotificationService struct {
	store NotificationStore
}

func NewNotificationService(store NotificationStore) (*NotificationService, error) {
	if store == nil {
		return nil, errors.New("usecase: notification store must not be nil")
	}
	return &NotificationService{store: store}, nil
}

// MarkRead flags one of the caller's notifications read. Notifications of other
// users are reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, caller Caller, id string) error {
	if caller.Anonymous() {
		return newError(ErrorUnauthenticated, "unauthenticated", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return newError(ErrorInvalidInput, "missing_notification_id", nil)
	}
	if err := s.store.MarkNotificationRead(ctx, caller.UserID, id); err != nil {
		e := storeError("notification_not_found", err)
		if e.Code == ErrorConflict {
			e.Code = ErrorNotFound
		}
		return e
	}
	return nil
}
