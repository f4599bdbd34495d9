package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
	"github.com/virtuals-lab/leaguescout/internal/platform/id"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

// RunObserver is notified as league workers start and finish inside a
// run. Implementations must be safe for concurrent use.
type RunObserver interface {
	WorkerStarted(runID string, lg league.League)
	WorkerFinished(report workflow.RunReport)
}

// RunArchiver stores finished run reports in durable storage.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, runID string, reports []workflow.RunReport) error
}

// RunSummaryWriter persists the aggregate run document to disk.
type RunSummaryWriter interface {
	WriteRunSummary(runID string, startedAt, finishedAt time.Time, reports []workflow.RunReport) (string, error)
}

// OrchestratorConfig tunes one orchestrator run.
type OrchestratorConfig struct {
	// MaxWorkers caps how many leagues collect concurrently. Zero means
	// one worker per league.
	MaxWorkers int
}

// RunSummary aggregates every league's report for one run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Reports    []workflow.RunReport
	Succeeded  int
	Partial    int
	Failed     int
}

// OrchestratorService fans league workers out over a bounded pool and
// collects their reports. Workers are created once per league and reused
// across runs so per-league counters, like the standings cadence, keep
// accumulating. One league's failure or panic never touches the others.
type OrchestratorService struct {
	leagues []league.League
	workers map[string]*LeagueWorker
	ids     id.Generator
	cfg     OrchestratorConfig
	logger  *logging.Logger
	now     func() time.Time

	observer      RunObserver
	archiver      RunArchiver
	summaryWriter RunSummaryWriter
}

func NewOrchestratorService(
	leagues []league.League,
	newWorker func(lg league.League) *LeagueWorker,
	ids id.Generator,
	cfg OrchestratorConfig,
	logger *logging.Logger,
) *OrchestratorService {
	if logger == nil {
		logger = logging.Default()
	}

	workers := make(map[string]*LeagueWorker, len(leagues))
	for _, lg := range leagues {
		workers[lg.Code] = newWorker(lg)
	}

	return &OrchestratorService{
		leagues: leagues,
		workers: workers,
		ids:     ids,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *OrchestratorService) WithObserver(o RunObserver) *OrchestratorService {
	s.observer = o
	return s
}

func (s *OrchestratorService) WithArchiver(a RunArchiver) *OrchestratorService {
	s.archiver = a
	return s
}

func (s *OrchestratorService) WithSummaryWriter(w RunSummaryWriter) *OrchestratorService {
	s.summaryWriter = w
	return s
}

func (s *OrchestratorService) workerCount() int {
	if s.cfg.MaxWorkers > 0 && s.cfg.MaxWorkers < len(s.leagues) {
		return s.cfg.MaxWorkers
	}
	if len(s.leagues) == 0 {
		return 1
	}
	return len(s.leagues)
}

// Run executes one collection cycle for every configured league and
// returns the aggregated summary. It fails only when the run cannot be
// set up at all; per-league failures are carried in the reports.
func (s *OrchestratorService) Run(ctx context.Context) (RunSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "OrchestratorService.Run")
	defer span.End()

	if len(s.leagues) == 0 {
		return RunSummary{}, fmt.Errorf("%w: no leagues configured", ErrInvalidInput)
	}

	runID := s.ids.NewID()
	startedAt := s.now()
	s.logger.InfoContext(ctx, "collection run starting",
		"run_id", runID,
		"leagues", len(s.leagues),
		"workers", s.workerCount(),
	)

	pool, err := ants.NewPool(s.workerCount())
	if err != nil {
		return RunSummary{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	reports := make([]workflow.RunReport, len(s.leagues))

	var succeeded atomic.Int32
	var partial atomic.Int32
	var failed atomic.Int32

	var workers sync.WaitGroup
	for i, lg := range s.leagues {
		i, lg := i, lg
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			if s.observer != nil {
				s.observer.WorkerStarted(runID, lg)
			}

			recovered := panics.Try(func() {
				reports[i] = s.workers[lg.Code].Run(ctx, runID, lg)
			})
			if recovered != nil {
				finishedAt := s.now()
				reports[i] = workflow.RunReport{
					RunID:      runID,
					LeagueCode: lg.Code,
					LeagueName: lg.Name,
					Outcome:    workflow.OutcomeFailed,
					Reason:     fmt.Sprintf("worker panic: %v", recovered.Value),
					StartedAt:  startedAt,
					FinishedAt: finishedAt,
				}
				s.logger.ErrorContext(ctx, "league worker panicked",
					"run_id", runID,
					"league", lg.Code,
					"panic", recovered.String(),
				)
			}

			switch reports[i].Outcome {
			case workflow.OutcomeSuccess:
				succeeded.Add(1)
			case workflow.OutcomePartial:
				partial.Add(1)
			default:
				failed.Add(1)
			}

			if s.observer != nil {
				s.observer.WorkerFinished(reports[i])
			}
		}); err != nil {
			workers.Done()
			return RunSummary{}, fmt.Errorf("submit league worker: %w", err)
		}
	}
	workers.Wait()

	summary := RunSummary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: s.now(),
		Reports:    reports,
		Succeeded:  int(succeeded.Load()),
		Partial:    int(partial.Load()),
		Failed:     int(failed.Load()),
	}

	if s.summaryWriter != nil {
		path, err := s.summaryWriter.WriteRunSummary(runID, summary.StartedAt, summary.FinishedAt, reports)
		if err != nil {
			s.logger.WarnContext(ctx, "run summary write failed", "run_id", runID, "error", err)
		} else {
			s.logger.InfoContext(ctx, "run summary written", "run_id", runID, "path", path)
		}
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveRun(ctx, runID, reports); err != nil {
			s.logger.WarnContext(ctx, "run archive failed", "run_id", runID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "collection run finished",
		"run_id", runID,
		"succeeded", summary.Succeeded,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	return summary, nil
}
