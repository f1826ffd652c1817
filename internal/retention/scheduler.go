package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
)

// Scheduler runs a Sweeper on a cron expression evaluated in a fixed timezone.
type Scheduler struct {
	sweeper *Sweeper
	expr    string
	loc     *time.Location
	log     zerolog.Logger
	now     func() time.Time
}

func NewScheduler(sweeper *Sweeper, expr string, loc *time.Location, log zerolog.Logger) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("retention: sweeper must not be nil")
	}
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("retention: invalid cron expression %q", expr)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		sweeper: sweeper,
		expr:    expr,
		loc:     loc,
		log:     log.With().Str("component", "retention_scheduler").Logger(),
		now:     time.Now,
	}, nil
}

// Next returns the first tick strictly after t, in the scheduler's timezone.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t.In(s.loc), false)
}

// Run blocks until ctx is cancelled, sweeping at every tick. Sweeps run inline so
// two never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Str("cron", s.expr).Str("timezone", s.loc.String()).Msg("retention scheduler started")
	for {
		next, err := s.Next(s.now())
		if err != nil {
			s.log.Error().Err(err).Msg("compute next tick")
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.sweeper.Run(ctx, TriggerSchedule)
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("retention scheduler stopping")
			return nil
		}
	}
}
