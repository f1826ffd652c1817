// Package changefeed carries document change notifications over Redis pub/sub.
//
// The streams Lambda publishes one Change per written document on a channel named
// after its collection; realtime gateways watch those channels and re-run their
// live queries when a signal arrives.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"clinic-booking/internal/livequery"
)

// Op is the kind of write that produced a change.
type Op string

const (
	OpInsert Op = "insert"
	OpModify Op = "modify"
	OpRemove Op = "remove"
)

// Change is the payload published for a document write.
type Change struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	At         time.Time `json:"at"`
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("changefeed: redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("changefeed: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("changefeed: ping: %w", err)
	}
	return c, nil
}

// Channel returns the pub/sub channel for a collection path.
func Channel(prefix, collection string) string {
	return prefix + collection
}

type publishAPI interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type Publisher struct {
	client publishAPI
	prefix string
}

func NewPublisher(client publishAPI, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Publish(ctx context.Context, ch Change) error {
	if ch.Collection == "" {
		return errors.New("changefeed: change has no collection")
	}
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("changefeed: encode change: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(p.prefix, ch.Collection), payload).Err(); err != nil {
		return fmt.Errorf("changefeed: publish %s: %w", ch.Collection, err)
	}
	return nil
}

type subscribeAPI interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Subscriber opens watches backed by Redis subscriptions.
type Subscriber struct {
	client subscribeAPI
	prefix string
}

func NewSubscriber(client subscribeAPI, prefix string) *Subscriber {
	return &Subscriber{client: client, prefix: prefix}
}

var _ livequery.Changes = (*Subscriber)(nil)

// Watch subscribes to the collection's channel and waits for the server to
// confirm the subscription, so no write after Watch returns is missed.
func (s *Subscriber) Watch(ctx context.Context, collection string) (livequery.Watch, error) {
	ps := s.client.Subscribe(ctx, Channel(s.prefix, collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("changefeed: subscribe %s: %w", collection, err)
	}
	w := newWatch(ps)
	go w.pump(ps.Channel())
	return w, nil
}

type watch struct {
	events chan struct{}
	closer interface{ Close() error }
	once   sync.Once
	err    error
}

func newWatch(closer interface{ Close() error }) *watch {
	return &watch{events: make(chan struct{}, 1), closer: closer}
}

func (w *watch) Events() <-chan struct{} { return w.events }

func (w *watch) Close() error {
	w.once.Do(func() {
		w.err = w.closer.Close()
	})
	return w.err
}

// pump folds incoming messages into at most one pending signal and closes
// events once the subscription ends.
func (w *watch) pump(msgs <-chan *redis.Message) {
	defer close(w.events)
	for range msgs {
		select {
		case w.events <- struct{}{}:
		default:
		}
	}
}
