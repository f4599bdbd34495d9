package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

// PhaseRun configures one in-phase collection loop.
type PhaseRun struct {
	// TickInterval is the spacing between collection ticks. Zero means
	// the phase has no ticks (pure waiting, e.g. PRE_LIVE).
	TickInterval time.Duration
	// TickTimeout bounds a single collaborator read; an expired tick is
	// logged as skipped and never blocks the next one.
	TickTimeout time.Duration
	// PollInterval is how often the exit condition is re-evaluated.
	PollInterval time.Duration
	// MaxWait bounds the whole phase; expiry returns ErrPhaseTimeout.
	// Zero means unbounded.
	MaxWait time.Duration
}

// PhaseStats counts what happened during one phase loop.
type PhaseStats struct {
	Ticks   int
	Skipped int
}

// ScrapeScheduler runs the per-phase loop: evaluate the exit condition at
// the poll interval and issue collection ticks at the tick interval.
// Everything happens on the caller's goroutine, so ticks for one league
// never overlap, and the exit condition is always checked before the
// next tick fires.
type ScrapeScheduler struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewScrapeScheduler(logger *logging.Logger) *ScrapeScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScrapeScheduler{
		logger: logger,
		now:    time.Now,
	}
}

// RunPhase loops until evaluate reports done, the phase wait expires, the
// context is cancelled, or a non-transient error escapes. A transient
// evaluate error skips that poll; a transient or timed-out tick is
// counted as skipped and collection resumes on the next interval.
func (s *ScrapeScheduler) RunPhase(
	ctx context.Context,
	phase string,
	run PhaseRun,
	evaluate func(context.Context) (bool, error),
	tick func(context.Context) error,
) (PhaseStats, error) {
	if evaluate == nil {
		return PhaseStats{}, fmt.Errorf("%w: evaluate func is required", ErrInvalidInput)
	}
	if run.PollInterval <= 0 {
		run.PollInterval = time.Second
	}
	if tick != nil && run.TickTimeout <= 0 {
		run.TickTimeout = 10 * time.Second
	}

	var stats PhaseStats
	var deadline time.Time
	if run.MaxWait > 0 {
		deadline = s.now().Add(run.MaxWait)
	}

	nextTick := s.now()
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		done, err := evaluate(ctx)
		switch {
		case err == nil:
			if done {
				return stats, nil
			}
		case errors.Is(err, ErrFeedTransient):
			s.logger.WarnContext(ctx, "phase evaluation skipped", "phase", phase, "error", err)
		default:
			return stats, err
		}

		if tick != nil && !s.now().Before(nextTick) {
			if err := s.runTick(ctx, phase, run, tick, &stats); err != nil {
				return stats, err
			}
			nextTick = s.now().Add(run.TickInterval)
		}

		if !deadline.IsZero() && !s.now().Before(deadline) {
			return stats, fmt.Errorf("%w: %s exceeded %s", ErrPhaseTimeout, phase, run.MaxWait)
		}

		if err := s.sleep(ctx, s.sleepFor(run, nextTick, deadline, tick != nil)); err != nil {
			return stats, err
		}
	}
}

func (s *ScrapeScheduler) runTick(
	ctx context.Context,
	phase string,
	run PhaseRun,
	tick func(context.Context) error,
	stats *PhaseStats,
) error {
	tickCtx, cancel := context.WithTimeout(ctx, run.TickTimeout)
	err := tick(tickCtx)
	cancel()

	switch {
	case err == nil:
		stats.Ticks++
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrFeedTransient):
		stats.Skipped++
		s.logger.WarnContext(ctx, "collection tick skipped",
			"phase", phase,
			"skipped_total", stats.Skipped,
			"error", err,
		)
		return nil
	default:
		return err
	}
}

// sleepFor picks the shortest of: poll interval, time to the next tick,
// time to the phase deadline.
func (s *ScrapeScheduler) sleepFor(run PhaseRun, nextTick, deadline time.Time, ticking bool) time.Duration {
	wait := run.PollInterval
	now := s.now()

	if ticking {
		if until := nextTick.Sub(now); until > 0 && until < wait {
			wait = until
		}
	}
	if !deadline.IsZero() {
		if until := deadline.Sub(now); until > 0 && until < wait {
			wait = until
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

func (s *ScrapeScheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
