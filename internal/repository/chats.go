package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"clinic-booking/internal/domain"
)

func (c *Client) GetThread(ctx context.Context, id string) (domain.ChatThread, error) {
	item, err := c.getItem(ctx, domain.CollectionChats, id, true)
	if err != nil {
		return domain.ChatThread{}, fmt.Errorf("repository: GetThread: %w", err)
	}
	var rec threadRecord
	if err := decode(item, &rec); err != nil {
		return domain.ChatThread{}, err
	}
	return rec.thread()
}

// CreateThread stores a new thread; an existing thread with the same id fails with
// ErrConditionFailed.
func (c *Client) CreateThread(ctx context.Context, t domain.ChatThread) error {
	if err := c.putItem(ctx, newThreadRecord(t), true); err != nil {
		return fmt.Errorf("repository: CreateThread: %w", err)
	}
	return nil
}

// SetThreadStatus moves a thread from status from to status to.
func (c *Client) SetThreadStatus(ctx context.Context, id string, from, to domain.ThreadStatus) error {
	u := newUpdate().
		set(to, "status").
		requireEq(from, "status")
	if err := c.updateItem(ctx, domain.CollectionChats, id, u); err != nil {
		return fmt.Errorf("repository: SetThreadStatus: %w", err)
	}
	return nil
}

// AppendMessage stores msg and updates the thread summary in one batch: last
// message, the recipient's unread counter and both deleted flags.
func (c *Client) AppendMessage(ctx context.Context, thread domain.ChatThread, msg domain.Message, preview string, notice *domain.Notification) error {
	recipient := thread.Other(msg.SenderID)
	b := c.newBatch()
	b.create(newMessageRecord(msg))
	b.update(domain.CollectionChats, thread.ID, newUpdate().
		set(preview, "lastMessage").
		set(msg.CreatedAt, "lastMessageTime").
		set(false, "deleted", thread.ParticipantA).
		set(false, "deleted", thread.ParticipantB).
		add(1, "unread", recipient).
		requireEq(domain.ThreadAccepted, "status"))
	if notice != nil {
		b.create(newNotificationRecord(*notice))
	}
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return nil
}

// UnreadMessageIDs lists messages in a thread not yet read by readerID.
func (c *Client) UnreadMessageIDs(ctx context.Context, threadID, readerID string) ([]string, error) {
	items, err := c.queryItems(ctx, Query{
		Collection: domain.MessagesCollection(threadID),
		Filters: []Filter{
			Eq("read", false),
			{Field: "senderId", Op: OpNe, Value: readerID},
		},
		Projection: []string{"createdAt"},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: UnreadMessageIDs: %w", err)
	}
	return skValues(items)
}

// MarkThreadRead resets readerID's unread counter and flags messageIDs read. The
// counter reset commits with the first chunk of messages; remaining messages are
// flagged in further batches.
func (c *Client) MarkThreadRead(ctx context.Context, threadID, readerID string, messageIDs []string) error {
	collection := domain.MessagesCollection(threadID)
	b := c.newBatch()
	b.update(domain.CollectionChats, threadID, newUpdate().
		set(0, "unread", readerID).
		requireExists())
	for _, id := range messageIDs {
		if b.len() == MaxBatchItems {
			if err := c.commit(ctx, b); err != nil {
				return fmt.Errorf("repository: MarkThreadRead: %w", err)
			}
			b = c.newBatch()
		}
		b.update(collection, id, newUpdate().set(true, "read").requireExists())
	}
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: MarkThreadRead: %w", err)
	}
	return nil
}

// HideThread sets userID's deleted flag so the thread drops out of their list
// until the next message clears it.
func (c *Client) HideThread(ctx context.Context, threadID, userID string) error {
	u := newUpdate().set(true, "deleted", userID).requireExists()
	if err := c.updateItem(ctx, domain.CollectionChats, threadID, u); err != nil {
		return fmt.Errorf("repository: HideThread: %w", err)
	}
	return nil
}

// ListThreadIDs enumerates every top-level thread.
func (c *Client) ListThreadIDs(ctx context.Context) ([]string, error) {
	items, err := c.queryItems(ctx, Query{
		Collection: domain.CollectionChats,
		Projection: []string{"status"},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListThreadIDs: %w", err)
	}
	return skValues(items)
}

// ListExpiredMessageIDs returns ids of messages in a thread created strictly before cutoff.
func (c *Client) ListExpiredMessageIDs(ctx context.Context, threadID string, cutoff time.Time) ([]string, error) {
	items, err := c.queryItems(ctx, Query{
		Collection: domain.MessagesCollection(threadID),
		Filters:    []Filter{{Field: "createdAt", Op: OpLt, Value: cutoff}},
		Projection: []string{"createdAt"},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListExpiredMessageIDs: %w", err)
	}
	return skValues(items)
}

// DeleteMessages removes messages of one thread in a single batch.
func (c *Client) DeleteMessages(ctx context.Context, threadID string, ids []string) error {
	collection := domain.MessagesCollection(threadID)
	b := c.newBatch()
	for _, id := range ids {
		b.delete(collection, id)
	}
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: DeleteMessages: %w", err)
	}
	return nil
}

func skValues(items []map[string]types.AttributeValue) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		var key keyRecord
		if err := decode(item, &key); err != nil {
			return nil, err
		}
		ids = append(ids, key.SK)
	}
	return ids, nil
}
