package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/repository"
)

type FeaturedStore interface {
	GetUser(ctx context.Context, userID string) (domain.UserProfile, error)
	GetDoctor(ctx context.Context, id string) (domain.Doctor, error)
	ListFeatured(ctx context.Context) ([]domain.FeaturedEntry, error)
	FeaturedHighWater(ctx context.Context) (int, error)
	AddFeatured(ctx context.Context, entry domain.FeaturedEntry, expectedHighWater int) error
	SwapFeaturedRanks(ctx context.Context, a, b domain.FeaturedEntry) error
	RewriteFeaturedRanks(ctx context.Context, changes []domain.RankChange) error
	RemoveFeatured(ctx context.Context, entityID string) error
}

// FeaturedService maintains the curated, ranked list of featured doctors. Every
// mutation that touches more than one rank commits as one conditional batch.
type FeaturedService struct {
	store FeaturedStore
}

func NewFeaturedService(store FeaturedStore) (*FeaturedService, error) {
	if store == nil {
		return nil, errors.New("usecase: featured store must not be nil")
	}
	return &FeaturedService{store: store}, nil
}

func (s *FeaturedService) List(ctx context.Context) ([]domain.FeaturedEntry, error) {
	entries, err := s.store.ListFeatured(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "featured_read_error", err)
	}
	return entries, nil
}

// Add appends a doctor after every rank ever handed out. Ranks of removed entries
// are not reused.
func (s *FeaturedService) Add(ctx context.Context, caller Caller, doctorID string) (domain.FeaturedEntry, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return domain.FeaturedEntry{}, newError(ErrorInvalidInput, "missing_doctor_id", nil)
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return domain.FeaturedEntry{}, e
	}
	if _, err := s.store.GetDoctor(ctx, doctorID); err != nil {
		return domain.FeaturedEntry{}, storeError("doctor_not_found", err)
	}
	entries, err := s.store.ListFeatured(ctx)
	if err != nil {
		return domain.FeaturedEntry{}, newError(ErrorInternal, "featured_read_error", err)
	}
	if indexOf(entries, doctorID) >= 0 {
		return domain.FeaturedEntry{}, newError(ErrorConflict, "already_featured", nil)
	}
	highWater, err := s.store.FeaturedHighWater(ctx)
	if err != nil {
		return domain.FeaturedEntry{}, newError(ErrorInternal, "featured_read_error", err)
	}

	entry := domain.FeaturedEntry{
		EntityID: doctorID,
		Rank:     max(highWater, maxRank(entries)) + 1,
		AddedAt:  now(),
		AddedBy:  caller.UserID,
	}
	if err := s.store.AddFeatured(ctx, entry, highWater); err != nil {
		return domain.FeaturedEntry{}, storeError("concurrent_update", err)
	}
	return entry, nil
}

// MoveUp swaps the entry with its predecessor. Moving the first entry is a no-op.
func (s *FeaturedService) MoveUp(ctx context.Context, caller Caller, doctorID string) ([]domain.FeaturedEntry, error) {
	return s.move(ctx, caller, doctorID, -1)
}

// MoveDown swaps the entry with its successor. Moving the last entry is a no-op.
func (s *FeaturedService) MoveDown(ctx context.Context, caller Caller, doctorID string) ([]domain.FeaturedEntry, error) {
	return s.move(ctx, caller, doctorID, 1)
}

func (s *FeaturedService) move(ctx context.Context, caller Caller, doctorID string, step int) ([]domain.FeaturedEntry, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, newError(ErrorInvalidInput, "missing_doctor_id", nil)
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return nil, e
	}
	entries, err := s.store.ListFeatured(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "featured_read_error", err)
	}
	i := indexOf(entries, doctorID)
	if i < 0 {
		return nil, newError(ErrorNotFound, "not_featured", nil)
	}
	j := i + step
	if j < 0 || j >= len(entries) {
		return entries, nil
	}

	if err := s.store.SwapFeaturedRanks(ctx, entries[i], entries[j]); err != nil {
		return nil, storeError("concurrent_update", err)
	}
	entries[i].Rank, entries[j].Rank = entries[j].Rank, entries[i].Rank
	entries[i], entries[j] = entries[j], entries[i]
	return entries, nil
}

// Remove drops a doctor from the list. The ranks of the others are untouched.
func (s *FeaturedService) Remove(ctx context.Context, caller Caller, doctorID string) error {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return newError(ErrorInvalidInput, "missing_doctor_id", nil)
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return e
	}
	if err := s.store.RemoveFeatured(ctx, doctorID); err != nil {
		return newError(ErrorInternal, "featured_write_error", err)
	}
	return nil
}

// Compact renumbers the list 1..n in its current order. It only runs when asked.
func (s *FeaturedService) Compact(ctx context.Context, caller Caller) ([]domain.FeaturedEntry, error) {
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return nil, e
	}
	entries, err := s.store.ListFeatured(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "featured_read_error", err)
	}
	changes := compactChanges(entries)
	if len(changes) == 0 {
		return entries, nil
	}
	if len(changes) > repository.MaxBatchItems {
		return nil, newError(ErrorConflict, "list_too_large", nil)
	}
	if err := s.store.RewriteFeaturedRanks(ctx, changes); err != nil {
		return nil, storeError("concurrent_update", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// compactChanges moves entries whose rank differs from their 1-based position.
// Moving to a rank another entry still holds is safe because the whole set
// commits together.
func compactChanges(entries []domain.FeaturedEntry) []domain.RankChange {
	sorted := append([]domain.FeaturedEntry(nil), entries...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Rank < sorted[b].Rank })
	var changes []domain.RankChange
	for i, e := range sorted {
		if e.Rank != i+1 {
			changes = append(changes, domain.RankChange{EntityID: e.EntityID, From: e.Rank, To: i + 1})
		}
	}
	return changes
}

func indexOf(entries []domain.FeaturedEntry, id string) int {
	for i, e := range entries {
		if e.EntityID == id {
			return i
		}
	}
	return -1
}

func maxRank(entries []domain.FeaturedEntry) int {
	m := 0
	for _, e := range entries {
		m = max(m, e.Rank)
	}
	return m
}
