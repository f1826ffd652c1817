// Package livequery keeps filtered, ordered views of a collection up to date.
//
// A Manager owns named slots. Each slot holds at most one feed; subscribing to an
// occupied slot cancels and joins the previous feed before the new one opens, so a
// consumer never receives snapshots from two feeds for the same slot. Every
// snapshot carries the complete current result set, never a diff.
package livequery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clinic-booking/internal/metrics"
	"clinic-booking/internal/repository"
)

var (
	ErrClosed     = errors.New("livequery: manager closed")
	ErrFeedClosed = errors.New("livequery: change stream closed")
)

// Querier runs a query against the document store.
type Querier interface {
	QueryDocuments(ctx context.Context, q repository.Query) ([]repository.Document, error)
}

// Watch signals that a collection changed. Events coalesce: one pending signal
// stands for any number of writes.
type Watch interface {
	Events() <-chan struct{}
	Close() error
}

// Changes opens change watches on collections.
type Changes interface {
	Watch(ctx context.Context, collection string) (Watch, error)
}

// Snapshot is one delivery to a subscriber.
type Snapshot struct {
	Docs    []repository.Document
	Loading bool
	Err     error
}

// Callback receives snapshots. It runs on the feed goroutine and must not call
// back into the Manager.
type Callback func(Snapshot)

const defaultRefreshRate = 4

type Manager struct {
	querier     Querier
	changes     Changes
	log         zerolog.Logger
	refreshRate rate.Limit

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
	active atomic.Int64
}

type slot struct {
	mu   sync.Mutex
	refs int
	feed *feed
}

type feed struct {
	spec    Spec
	cb      Callback
	watch   Watch
	cancel  context.CancelFunc
	done    chan struct{}
	limiter *rate.Limiter
}

type Option func(*Manager)

// WithRefreshRate caps how many re-queries per second a single feed runs.
func WithRefreshRate(perSecond float64) Option {
	return func(m *Manager) {
		if perSecond > 0 {
			m.refreshRate = rate.Limit(perSecond)
		}
	}
}

func NewManager(q Querier, changes Changes, log zerolog.Logger, opts ...Option) (*Manager, error) {
	if q == nil {
		return nil, errors.New("livequery: querier must not be nil")
	}
	if changes == nil {
		return nil, errors.New("livequery: changes must not be nil")
	}
	m := &Manager{
		querier:     q,
		changes:     changes,
		log:         log.With().Str("component", "livequery").Logger(),
		refreshRate: defaultRefreshRate,
		slots:       map[string]*slot{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Subscribe binds spec to slot key, replacing whatever feed the slot held.
//
// When spec needs an identity and has none, the slot is left empty and cb receives
// an empty, non-loading snapshot. Otherwise cb receives a loading snapshot, then
// the initial result set and a fresh result set after every change.
func (m *Manager) Subscribe(ctx context.Context, key string, spec Spec, cb Callback) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("livequery: slot key is required")
	}
	if cb == nil {
		return errors.New("livequery: callback must not be nil")
	}
	if strings.TrimSpace(spec.Collection) == "" {
		return errors.New("livequery: collection is required")
	}

	s, err := m.acquire(key)
	if err != nil {
		return err
	}
	defer m.release(key, s)
	return m.bind(ctx, s, spec, cb)
}

// bind replaces the feed of an acquired slot. Close may run between acquire and
// s.mu.Lock, so closed is checked again once the slot is held.
func (m *Manager) bind(ctx context.Context, s *slot, spec Spec, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.stop(s)
	if m.isClosed() {
		return ErrClosed
	}

	if !spec.Anonymous && spec.Identity == "" {
		cb(Snapshot{Docs: []repository.Document{}})
		return nil
	}

	cb(Snapshot{Loading: true})
	w, err := m.changes.Watch(ctx, spec.Collection)
	if err != nil {
		cb(Snapshot{Err: err})
		return fmt.Errorf("livequery: watch %s: %w", spec.Collection, err)
	}

	fctx, cancel := context.WithCancel(ctx)
	f := &feed{
		spec:    spec,
		cb:      cb,
		watch:   w,
		cancel:  cancel,
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(m.refreshRate, 1),
	}
	m.active.Add(1)
	metrics.ActiveFeeds.Inc()
	s.feed = f
	go m.run(fctx, f)
	return nil
}

// Unsubscribe closes the slot's feed, if any. No snapshot from it is delivered
// after Unsubscribe returns.
func (m *Manager) Unsubscribe(key string) {
	s, err := m.acquire(key)
	if err != nil {
		return
	}
	defer m.release(key, s)

	s.mu.Lock()
	m.stop(s)
	s.mu.Unlock()
}

// Close stops every feed and rejects further subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	slots := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		m.stop(s)
		s.mu.Unlock()
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Active returns the number of running feeds.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

func (m *Manager) acquire(key string) (*slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.slots[key]
	if !ok {
		s = &slot{}
		m.slots[key] = s
	}
	s.refs++
	return s, nil
}

func (m *Manager) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 && s.feed == nil {
		delete(m.slots, key)
	}
}

// stop cancels the slot's feed and waits for its goroutine to exit.
// Callers hold s.mu.
func (m *Manager) stop(s *slot) {
	if s.feed == nil {
		return
	}
	s.feed.cancel()
	<-s.feed.done
	s.feed = nil
}

func (m *Manager) run(ctx context.Context, f *feed) {
	defer func() {
		if err := f.watch.Close(); err != nil {
			m.log.Warn().Err(err).Str("collection", f.spec.Collection).Msg("close change watch")
		}
		m.active.Add(-1)
		metrics.ActiveFeeds.Dec()
		close(f.done)
	}()

	m.refresh(ctx, f)
	events := f.watch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					f.cb(Snapshot{Err: ErrFeedClosed})
				}
				return
			}
			if err := f.limiter.Wait(ctx); err != nil {
				return
			}
			m.refresh(ctx, f)
		}
	}
}

func (m *Manager) refresh(ctx context.Context, f *feed) {
	docs, err := m.querier.QueryDocuments(ctx, f.spec.query())
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.log.Error().Err(err).Str("collection", f.spec.Collection).Msg("live query refresh failed")
		metrics.SnapshotsDelivered.WithLabelValues(metricLabel(f.spec.Collection), "error").Inc()
		f.cb(Snapshot{Err: err})
		return
	}
	normalizeTimes(docs, f.spec.timeFields())
	metrics.SnapshotsDelivered.WithLabelValues(metricLabel(f.spec.Collection), "ok").Inc()
	f.cb(Snapshot{Docs: docs})
}

// metricLabel collapses per-owner subcollections such as chats/<id>/messages into
// one label value per kind.
func metricLabel(collection string) string {
	first := strings.Index(collection, "/")
	if first < 0 {
		return collection
	}
	last := strings.LastIndex(collection, "/")
	if last == first {
		return collection[:first] + "/*"
	}
	return collection[:first] + "/*" + collection[last:]
}
