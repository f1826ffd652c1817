// Package retention purges chat messages older than the retention horizon.
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"clinic-booking/internal/metrics"
)

const (
	DefaultHorizon     = 7 * 24 * time.Hour
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

// Trigger labels what started a sweep.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Store is the slice of the document store a sweep needs.
type Store interface {
	ListThreadIDs(ctx context.Context) ([]string, error)
	ListExpiredMessageIDs(ctx context.Context, threadID string, cutoff time.Time) ([]string, error)
	DeleteMessages(ctx context.Context, threadID string, ids []string) error
}

// Report summarises one sweep.
type Report struct {
	Cutoff  time.Time `json:"cutoff"`
	Threads int       `json:"threads"`
	Deleted int       `json:"deleted"`
	Failed  int       `json:"failed"`
}

type Sweeper struct {
	store       Store
	log         zerolog.Logger
	horizon     time.Duration
	batchSize   int
	concurrency int
	now         func() time.Time
}

type Option func(*Sweeper)

func WithHorizon(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.horizon = d
		}
	}
}

// WithBatchSize bounds how many deletions are committed together. Values above
// the store's atomic batch limit are clamped.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = min(n, DefaultBatchSize)
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSweeper(store Store, log zerolog.Logger, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("retention: store must not be nil")
	}
	s := &Sweeper{
		store:       store,
		log:         log.With().Str("component", "retention").Logger(),
		horizon:     DefaultHorizon,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run deletes every message created strictly before now minus the horizon.
// Threads are processed independently: a failure stops that thread's purge and is
// logged, the rest carry on. Run never fails; the outcome is in the Report.
func (s *Sweeper) Run(ctx context.Context, trigger Trigger) Report {
	metrics.RetentionRuns.WithLabelValues(string(trigger)).Inc()

	cutoff := s.now().UTC().Add(-s.horizon)
	report := Report{Cutoff: cutoff}
	log := s.log.With().Str("trigger", string(trigger)).Time("cutoff", cutoff).Logger()

	threads, err := s.store.ListThreadIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list chat threads")
		return report
	}
	report.Threads = len(threads)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, threadID := range threads {
		g.Go(func() error {
			deleted, err := s.sweepThread(gctx, threadID, cutoff)
			mu.Lock()
			report.Deleted += deleted
			if err != nil {
				report.Failed++
			}
			mu.Unlock()
			if err != nil {
				metrics.RetentionThreadFailures.Inc()
				log.Warn().Err(err).Str("thread_id", threadID).Int("deleted", deleted).Msg("thread purge failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.RetentionDeleted.Add(float64(report.Deleted))
	log.Info().
		Int("threads", report.Threads).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Msg("retention sweep finished")
	return report
}

func (s *Sweeper) sweepThread(ctx context.Context, threadID string, cutoff time.Time) (int, error) {
	ids, err := s.store.ListExpiredMessageIDs(ctx, threadID, cutoff)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))
		if err := s.store.DeleteMessages(ctx, threadID, ids[start:end]); err != nil {
			return deleted, err
		}
		deleted += end - start
	}
	return deleted, nil
}
