package repository

import (
	"context"
	"errors"
	"fmt"

	"clinic-booking/internal/domain"
)

// ListFeatured returns the featured list ordered by rank.
func (c *Client) ListFeatured(ctx context.Context) ([]domain.FeaturedEntry, error) {
	items, err := c.queryItems(ctx, Query{
		Collection: domain.CollectionFeatured,
		OrderBy:    "rank",
		Consistent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListFeatured: %w", err)
	}
	out := make([]domain.FeaturedEntry, 0, len(items))
	for _, item := range items {
		var rec featuredRecord
		if err := decode(item, &rec); err != nil {
			return nil, fmt.Errorf("repository: ListFeatured: %w", err)
		}
		e, err := rec.entry()
		if err != nil {
			return nil, fmt.Errorf("repository: ListFeatured: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// FeaturedHighWater returns the highest rank ever assigned, 0 when none was.
func (c *Client) FeaturedHighWater(ctx context.Context) (int, error) {
	item, err := c.getItem(ctx, domain.CollectionMeta, domain.CollectionFeatured, true)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repository: FeaturedHighWater: %w", err)
	}
	var rec highWaterRecord
	if err := decode(item, &rec); err != nil {
		return 0, fmt.Errorf("repository: FeaturedHighWater: %w", err)
	}
	return rec.HighWater, nil
}

// AddFeatured inserts entry and advances the high-water mark to entry.Rank in one
// batch. The batch fails with ErrConditionFailed if the mark moved away from
// expectedHighWater or the entity is already featured.
func (c *Client) AddFeatured(ctx context.Context, entry domain.FeaturedEntry, expectedHighWater int) error {
	b := c.newBatch()
	if expectedHighWater == 0 {
		b.create(highWaterRecord{
			PK:        domain.CollectionMeta,
			SK:        domain.CollectionFeatured,
			HighWater: entry.Rank,
		})
	} else {
		b.update(domain.CollectionMeta, domain.CollectionFeatured, newUpdate().
			set(entry.Rank, "highWater").
			requireEq(expectedHighWater, "highWater"))
	}
	b.create(newFeaturedRecord(entry))
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: AddFeatured: %w", err)
	}
	return nil
}

// SwapFeaturedRanks exchanges the ranks of a and b in one batch, guarded on both
// entries still holding the ranks the caller observed.
func (c *Client) SwapFeaturedRanks(ctx context.Context, a, b domain.FeaturedEntry) error {
	if a.EntityID == b.EntityID {
		return fmt.Errorf("repository: SwapFeaturedRanks: cannot swap %q with itself", a.EntityID)
	}
	changes := []domain.RankChange{
		{EntityID: a.EntityID, From: a.Rank, To: b.Rank},
		{EntityID: b.EntityID, From: b.Rank, To: a.Rank},
	}
	if err := c.applyRankChanges(ctx, changes); err != nil {
		return fmt.Errorf("repository: SwapFeaturedRanks: %w", err)
	}
	return nil
}

// RewriteFeaturedRanks applies a set of rank changes in one batch.
func (c *Client) RewriteFeaturedRanks(ctx context.Context, changes []domain.RankChange) error {
	if err := c.applyRankChanges(ctx, changes); err != nil {
		return fmt.Errorf("repository: RewriteFeaturedRanks: %w", err)
	}
	return nil
}

func (c *Client) applyRankChanges(ctx context.Context, changes []domain.RankChange) error {
	b := c.newBatch()
	for _, ch := range changes {
		b.update(domain.CollectionFeatured, ch.EntityID, newUpdate().
			set(ch.To, "rank").
			requireEq(ch.From, "rank"))
	}
	return c.commit(ctx, b)
}

// RemoveFeatured deletes an entry. Remaining ranks are left as they are.
func (c *Client) RemoveFeatured(ctx context.Context, entityID string) error {
	if err := c.deleteItem(ctx, domain.CollectionFeatured, entityID); err != nil {
		return fmt.Errorf("repository: RemoveFeatured: %w", err)
	}
	return nil
}
