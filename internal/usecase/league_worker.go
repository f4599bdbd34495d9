package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/reconciliation"
	"github.com/virtuals-lab/leaguescout/internal/domain/result"
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

// DataStore is the shared match store as the worker sees it. All methods
// are safe for concurrent use across workers.
type DataStore interface {
	UpsertMatch(key match.Key, patch match.Patch) match.Record
	UpsertLive(key match.Key, patch livematch.Patch) (livematch.Record, error)
	LiveRecord(key match.Key) (livematch.Record, bool)
	FreezeLive(leagueCode string)
	PutResult(key match.Key, rec result.Record) (result.Record, bool)
	PutReconciled(key match.Key, rec reconciliation.Record) (reconciliation.Record, bool)
}

// SnapshotWriter persists a league's collected data at phase boundaries.
type SnapshotWriter interface {
	FlushLeague(leagueCode, kind string) (string, error)
	WriteStandings(snap standings.Snapshot) (string, error)
}

// WorkerConfig tunes one league worker's collection cycle.
type WorkerConfig struct {
	// TimerPollInterval is how often the league timer is re-read to drive
	// phase transitions.
	TimerPollInterval time.Duration
	// MatchdayScrapeInterval spaces matchday board scrapes while monitoring.
	MatchdayScrapeInterval time.Duration
	// LiveScrapeInterval spaces in-play board scrapes.
	LiveScrapeInterval time.Duration
	// TickTimeout bounds a single feed read.
	TickTimeout time.Duration
	// MinMonitorLead is the countdown value under which matchday
	// collection is not worth starting; the worker arms for kickoff
	// straight away.
	MinMonitorLead time.Duration
	// MaxMonitorWait bounds the whole MONITORING phase so a timer that
	// never approaches kickoff cannot pin the worker.
	MaxMonitorWait time.Duration
	// MaxPreLiveWait bounds waiting for kickoff after arming.
	MaxPreLiveWait time.Duration
	// MaxResultsWait bounds waiting for the results board to fill in.
	MaxResultsWait time.Duration
	// ViewSwitchRetries is how many times a failed tab switch is retried
	// before the cycle fails.
	ViewSwitchRetries int
	// FlushRetries is how many times a failed snapshot flush is retried
	// before the cycle fails. The store keeps the data between attempts.
	FlushRetries int

	Machine MachineConfig
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.TimerPollInterval <= 0 {
		c.TimerPollInterval = 5 * time.Second
	}
	if c.MatchdayScrapeInterval <= 0 {
		c.MatchdayScrapeInterval = 30 * time.Second
	}
	if c.LiveScrapeInterval <= 0 {
		c.LiveScrapeInterval = 15 * time.Second
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = 10 * time.Second
	}
	if c.MinMonitorLead <= 0 {
		c.MinMonitorLead = time.Minute
	}
	if c.MaxMonitorWait <= 0 {
		c.MaxMonitorWait = 30 * time.Minute
	}
	if c.MaxPreLiveWait <= 0 {
		c.MaxPreLiveWait = 5 * time.Minute
	}
	if c.MaxResultsWait <= 0 {
		c.MaxResultsWait = 2 * time.Minute
	}
	if c.ViewSwitchRetries <= 0 {
		c.ViewSwitchRetries = 3
	}
	if c.FlushRetries <= 0 {
		c.FlushRetries = 2
	}
	return c
}

// LeagueWorker drives one league through a full fixture cycle:
// MONITORING, PRE_LIVE, LIVE, RESULTS and, on cadence, STANDINGS. A
// worker owns its league exclusively; everything it does runs on the
// calling goroutine, so ticks and transitions are strictly ordered.
type LeagueWorker struct {
	feed       MatchFeed
	store      DataStore
	writer     SnapshotWriter
	reconciler *ReconcilerService
	scheduler  *ScrapeScheduler
	cfg        WorkerConfig
	logger     *logging.Logger
	now        func() time.Time

	completed int
}

func NewLeagueWorker(
	feed MatchFeed,
	store DataStore,
	writer SnapshotWriter,
	reconciler *ReconcilerService,
	cfg WorkerConfig,
	logger *logging.Logger,
) *LeagueWorker {
	if logger == nil {
		logger = logging.Default()
	}
	return &LeagueWorker{
		feed:       feed,
		store:      store,
		writer:     writer,
		reconciler: reconciler,
		scheduler:  NewScrapeScheduler(logger),
		cfg:        cfg.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// CompletedMatches is the league's running completed-match counter. It
// survives across cycles so the standings cadence lines up with the
// league's season, not with process restarts of individual cycles.
func (w *LeagueWorker) CompletedMatches() int {
	return w.completed
}

// Run executes one full fixture cycle and reports what happened. A
// context cancellation mid-cycle yields a partial outcome with whatever
// was collected flushed to disk; any other escaped error fails the cycle.
func (w *LeagueWorker) Run(ctx context.Context, runID string, lg league.League) workflow.RunReport {
	ctx, span := startUsecaseSpan(ctx, "LeagueWorker.Run")
	defer span.End()

	report := workflow.RunReport{
		RunID:      runID,
		LeagueCode: lg.Code,
		LeagueName: lg.Name,
		StartedAt:  w.now(),
	}
	machine := NewPhaseMachine(w.cfg.Machine)

	err := w.runCycle(ctx, lg, machine, &report)
	report.FinishedAt = w.now()
	report.CompletedMatches = w.completed

	switch {
	case err == nil:
		report.Outcome = workflow.OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		report.Outcome = workflow.OutcomePartial
		report.Reason = "run cancelled mid-cycle"
		w.flushPartial(lg, report)
	default:
		machine.Fail()
		report.Outcome = workflow.OutcomeFailed
		report.Reason = err.Error()
		w.logger.ErrorContext(ctx, "league cycle failed",
			"league", lg.Code,
			"phase", machine.Phase().String(),
			"error", err,
		)
	}
	return report
}

func (w *LeagueWorker) runCycle(ctx context.Context, lg league.League, machine *PhaseMachine, report *workflow.RunReport) error {
	reading, err := w.feed.ReadTimer(ctx, lg)
	if err != nil && !errors.Is(err, ErrFeedTransient) {
		return fmt.Errorf("initial timer read: %w", err)
	}

	// A countdown already inside the lead window is not worth a matchday
	// pass; arm for kickoff instead.
	collectMatchday := true
	if reading.State == workflow.TimerCountdown && reading.Remaining < w.cfg.MinMonitorLead {
		collectMatchday = false
		w.logger.InfoContext(ctx, "matchday collection skipped, kickoff too close",
			"league", lg.Code,
			"remaining", reading.Remaining.String(),
		)
	}

	if collectMatchday {
		if err := w.switchView(ctx, lg, ViewMatchday); err != nil {
			return err
		}
	}
	stats, err := w.scheduler.RunPhase(ctx, workflow.PhaseMonitoring.String(),
		PhaseRun{
			TickInterval: w.cfg.MatchdayScrapeInterval,
			TickTimeout:  w.cfg.TickTimeout,
			PollInterval: w.cfg.TimerPollInterval,
			MaxWait:      w.cfg.MaxMonitorWait,
		},
		w.advance(lg, machine, workflow.PhaseMonitoring),
		w.matchdayTickIf(collectMatchday, lg),
	)
	report.MatchdayScrapes += stats.Ticks
	report.SkippedTicks += stats.Skipped
	if err != nil {
		return err
	}
	if report.MatchdayScrapes > 0 {
		if err := w.flush(ctx, lg, ViewMatchday); err != nil {
			return err
		}
	}

	stats, err = w.scheduler.RunPhase(ctx, workflow.PhasePreLive.String(),
		PhaseRun{
			PollInterval: w.cfg.TimerPollInterval,
			MaxWait:      w.cfg.MaxPreLiveWait,
		},
		w.advance(lg, machine, workflow.PhasePreLive),
		nil,
	)
	report.SkippedTicks += stats.Skipped
	if err != nil {
		return err
	}

	if err := w.switchView(ctx, lg, ViewLive); err != nil {
		return err
	}
	// The live board carries its own full-time marker; once every fixture
	// shows it the phase is over even if the timer read lags or fails.
	var fullTime bool
	advanceLive := w.advance(lg, machine, workflow.PhaseLive)
	stats, err = w.scheduler.RunPhase(ctx, workflow.PhaseLive.String(),
		PhaseRun{
			TickInterval: w.cfg.LiveScrapeInterval,
			TickTimeout:  w.cfg.TickTimeout,
			PollInterval: w.cfg.TimerPollInterval,
		},
		func(ctx context.Context) (bool, error) {
			if fullTime {
				phase, changed := machine.Evaluate(workflow.TimerReading{State: workflow.TimerFinished}, w.completed)
				if changed {
					w.logger.InfoContext(ctx, "phase transition",
						"league", lg.Code,
						"from", workflow.PhaseLive.String(),
						"to", phase.String(),
						"timer", "full time on board",
					)
				}
				return phase != workflow.PhaseLive, nil
			}
			return advanceLive(ctx)
		},
		w.liveTick(lg, &fullTime),
	)
	report.LiveScrapes += stats.Ticks
	report.SkippedTicks += stats.Skipped
	if err != nil {
		return err
	}
	if err := w.flush(ctx, lg, ViewLive); err != nil {
		return err
	}

	if err := w.collectResults(ctx, lg, report); err != nil {
		return err
	}

	// Leaving RESULTS depends only on the completed-match counter.
	phase, _ := machine.Evaluate(workflow.TimerReading{State: workflow.TimerFinished}, w.completed)
	if phase == workflow.PhaseStandings {
		if err := w.collectStandings(ctx, lg, report); err != nil {
			return err
		}
		machine.Evaluate(workflow.TimerReading{State: workflow.TimerFinished}, w.completed)
	}

	w.logger.InfoContext(ctx, "league cycle complete",
		"league", lg.Code,
		"cycle", machine.Cycle(),
		"matchday_scrapes", report.MatchdayScrapes,
		"live_scrapes", report.LiveScrapes,
		"skipped_ticks", report.SkippedTicks,
		"completed_matches", w.completed,
	)
	return nil
}

// advance re-reads the timer and asks the machine whether the phase is
// over. A transient read still drives the machine with an unknown
// reading so time-based transitions, like the live-phase cap, fire even
// while the feed misbehaves.
func (w *LeagueWorker) advance(lg league.League, machine *PhaseMachine, from workflow.Phase) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		reading, err := w.feed.ReadTimer(ctx, lg)
		if err != nil {
			if !errors.Is(err, ErrFeedTransient) {
				return false, err
			}
			w.logger.WarnContext(ctx, "timer read failed", "league", lg.Code, "error", err)
			reading = workflow.TimerReading{}
		}

		phase, changed := machine.Evaluate(reading, w.completed)
		if changed {
			w.logger.InfoContext(ctx, "phase transition",
				"league", lg.Code,
				"from", from.String(),
				"to", phase.String(),
				"timer", reading.String(),
			)
		}
		return phase != from, nil
	}
}

func (w *LeagueWorker) matchdayTickIf(enabled bool, lg league.League) func(context.Context) error {
	if !enabled {
		return nil
	}
	return func(ctx context.Context) error {
		rows, err := w.feed.ReadMatchday(ctx, lg)
		if err != nil {
			return err
		}
		observed := w.now()
		for _, row := range rows {
			key := match.NewKey(lg.Code, row.FixtureIndex, row.MatchDay)
			w.store.UpsertMatch(key, match.Patch{
				LeagueCode:    lg.Code,
				FixtureIndex:  row.FixtureIndex,
				MatchDay:      row.MatchDay,
				HomeTeam:      row.HomeTeam,
				AwayTeam:      row.AwayTeam,
				MarketOdds:    row.MarketOdds,
				TimerSnapshot: row.TimerSnapshot,
				PhaseObserved: workflow.PhaseMonitoring.String(),
				ObservedAt:    observed,
			})
		}
		return nil
	}
}

func (w *LeagueWorker) liveTick(lg league.League, fullTime *bool) func(context.Context) error {
	return func(ctx context.Context) error {
		rows, err := w.feed.ReadLive(ctx, lg)
		if err != nil {
			return err
		}
		observed := w.now()
		finished := len(rows) > 0
		for _, row := range rows {
			if !row.FullTime {
				finished = false
			}
			key := match.NewKey(lg.Code, row.FixtureIndex, row.MatchDay)
			score := row.Score
			if _, err := w.store.UpsertLive(key, livematch.Patch{
				HomeTeam:      row.HomeTeam,
				AwayTeam:      row.AwayTeam,
				Score:         &score,
				Goals:         row.Goals,
				HalfTimeScore: row.HalfTime,
				ObservedAt:    observed,
			}); err != nil {
				return fmt.Errorf("store live row %s: %w", key, err)
			}
		}
		if finished {
			*fullTime = true
		}
		return nil
	}
}

// collectResults freezes live records, reads the results board until it
// carries the finished fixtures, stores each final score as the
// authoritative record and reconciles it against the live view.
func (w *LeagueWorker) collectResults(ctx context.Context, lg league.League, report *workflow.RunReport) error {
	if err := w.switchView(ctx, lg, ViewResults); err != nil {
		return err
	}
	w.store.FreezeLive(lg.Code)

	var rows []FeedResultRow
	_, err := w.scheduler.RunPhase(ctx, workflow.PhaseResults.String(),
		PhaseRun{
			PollInterval: w.cfg.TimerPollInterval,
			MaxWait:      w.cfg.MaxResultsWait,
		},
		func(ctx context.Context) (bool, error) {
			got, err := w.feed.ReadResults(ctx, lg)
			if err != nil {
				return false, err
			}
			if len(got) == 0 {
				return false, nil
			}
			rows = got
			return true, nil
		},
		nil,
	)
	if err != nil {
		return err
	}

	observed := w.now()
	reconciledCount := 0
	for _, row := range rows {
		key := match.NewKey(lg.Code, row.FixtureIndex, row.MatchDay)
		stored, _ := w.store.PutResult(key, result.Record{
			HomeTeam:   row.HomeTeam,
			AwayTeam:   row.AwayTeam,
			FinalScore: row.FinalScore,
			MatchWeek:  row.MatchWeek,
			RecordedAt: observed,
		})

		// Reconciliation needs both views. Without any live data the
		// result stands on its own; fabricating discrepancies against an
		// empty record would only pollute the archive.
		live, ok := w.store.LiveRecord(key)
		if !ok {
			w.logger.WarnContext(ctx, "reconciliation skipped, no live data",
				"league", lg.Code,
				"match_key", string(key),
			)
			continue
		}
		reconciled := w.reconciler.Reconcile(ctx, live, stored)
		w.store.PutReconciled(key, reconciled)
		reconciledCount++
	}
	w.completed += len(rows)
	report.ResultsScraped = true
	report.ValidationComplete = reconciledCount == len(rows)

	return w.flush(ctx, lg, ViewResults)
}

func (w *LeagueWorker) collectStandings(ctx context.Context, lg league.League, report *workflow.RunReport) error {
	if err := w.switchView(ctx, lg, ViewStandings); err != nil {
		return err
	}

	var snap standings.Snapshot
	_, err := w.scheduler.RunPhase(ctx, workflow.PhaseStandings.String(),
		PhaseRun{
			PollInterval: w.cfg.TimerPollInterval,
			MaxWait:      w.cfg.MaxResultsWait,
		},
		func(ctx context.Context) (bool, error) {
			got, err := w.feed.ReadStandings(ctx, lg)
			if err != nil {
				return false, err
			}
			if len(got.Table) == 0 {
				return false, nil
			}
			snap = got
			return true, nil
		},
		nil,
	)
	if err != nil {
		return err
	}

	snap.LeagueCode = lg.Code
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = w.now()
	}
	if _, err := w.writer.WriteStandings(snap); err != nil {
		return fmt.Errorf("write standings snapshot: %w", err)
	}
	report.StandingsScraped = true
	return nil
}

func (w *LeagueWorker) switchView(ctx context.Context, lg league.League, view FeedView) error {
	var err error
	for attempt := 0; attempt <= w.cfg.ViewSwitchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		if err = w.feed.SwitchView(ctx, lg, view); err == nil {
			return nil
		}
		if !errors.Is(err, ErrFeedTransient) {
			return fmt.Errorf("switch to %s view: %w", view, err)
		}
	}
	return fmt.Errorf("switch to %s view after %d retries: %w", view, w.cfg.ViewSwitchRetries, err)
}

// flush writes the league's current snapshot for the given view, retrying
// a few times with backoff. The store keeps everything in memory, so a
// retried write always carries the full current state; only an exhausted
// retry budget fails the cycle.
func (w *LeagueWorker) flush(ctx context.Context, lg league.League, view FeedView) error {
	var err error
	for attempt := 0; attempt <= w.cfg.FlushRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		if _, err = w.writer.FlushLeague(lg.Code, string(view)); err == nil {
			return nil
		}
		w.logger.WarnContext(ctx, "snapshot flush failed",
			"league", lg.Code,
			"kind", string(view),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return fmt.Errorf("flush %s snapshot after %d retries: %w", view, w.cfg.FlushRetries, err)
}

// flushPartial writes whatever was collected before cancellation. Errors
// only get logged; the report already carries the partial outcome.
func (w *LeagueWorker) flushPartial(lg league.League, report workflow.RunReport) {
	kind := string(ViewMatchday)
	if report.LiveScrapes > 0 {
		kind = string(ViewLive)
	}
	if _, err := w.writer.FlushLeague(lg.Code, kind); err != nil {
		w.logger.Warn("partial snapshot flush failed", "league", lg.Code, "error", err)
	}
}
