package usecase

import (
	"context"
	"fmt"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
	"github.com/virtuals-lab/leaguescout/internal/platform/resilience"
)

// guardedFeed wraps a MatchFeed with a circuit breaker. While the breaker
// is open every read degrades to a transient failure, so workers skip
// ticks instead of piling onto a dying page session.
type guardedFeed struct {
	inner   MatchFeed
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

func NewGuardedFeed(inner MatchFeed, cfg resilience.CircuitBreakerConfig, logger *logging.Logger) MatchFeed {
	if inner == nil {
		return nil
	}
	if !cfg.Enabled {
		return inner
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &guardedFeed{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker(cfg.FailureThreshold, cfg.OpenTimeout),
		logger:  logger,
	}
}

func (f *guardedFeed) allow(op string) error {
	if err := f.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %s short-circuited: %v", ErrFeedTransient, op, err)
	}
	return nil
}

func (f *guardedFeed) record(err error) {
	if err == nil {
		f.breaker.RecordSuccess()
		return
	}
	f.breaker.RecordFailure()
	if f.breaker.State() == resilience.CircuitStateOpen {
		f.logger.Warn("feed circuit opened", "error", err)
	}
}

func (f *guardedFeed) ReadTimer(ctx context.Context, lg league.League) (workflow.TimerReading, error) {
	if err := f.allow("read timer"); err != nil {
		return workflow.TimerReading{}, err
	}
	reading, err := f.inner.ReadTimer(ctx, lg)
	f.record(err)
	return reading, err
}

func (f *guardedFeed) ReadMatchday(ctx context.Context, lg league.League) ([]FeedMatchdayRow, error) {
	if err := f.allow("read matchday"); err != nil {
		return nil, err
	}
	rows, err := f.inner.ReadMatchday(ctx, lg)
	f.record(err)
	return rows, err
}

func (f *guardedFeed) ReadLive(ctx context.Context, lg league.League) ([]FeedLiveRow, error) {
	if err := f.allow("read live"); err != nil {
		return nil, err
	}
	rows, err := f.inner.ReadLive(ctx, lg)
	f.record(err)
	return rows, err
}

func (f *guardedFeed) ReadResults(ctx context.Context, lg league.League) ([]FeedResultRow, error) {
	if err := f.allow("read results"); err != nil {
		return nil, err
	}
	rows, err := f.inner.ReadResults(ctx, lg)
	f.record(err)
	return rows, err
}

func (f *guardedFeed) ReadStandings(ctx context.Context, lg league.League) (standings.Snapshot, error) {
	if err := f.allow("read standings"); err != nil {
		return standings.Snapshot{}, err
	}
	table, err := f.inner.ReadStandings(ctx, lg)
	f.record(err)
	return table, err
}

func (f *guardedFeed) SwitchView(ctx context.Context, lg league.League, view FeedView) error {
	// View switches are fire-and-forget; they never trip the breaker.
	return f.inner.SwitchView(ctx, lg, view)
}
