package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/virtuals-lab/leaguescout/external/simfeed"
	"github.com/virtuals-lab/leaguescout/internal/config"
	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
	"github.com/virtuals-lab/leaguescout/internal/infrastructure/repository/postgres"
	"github.com/virtuals-lab/leaguescout/internal/infrastructure/store"
	"github.com/virtuals-lab/leaguescout/internal/interfaces/status"
	"github.com/virtuals-lab/leaguescout/internal/platform/id"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
	"github.com/virtuals-lab/leaguescout/internal/platform/resilience"
	"github.com/virtuals-lab/leaguescout/internal/usecase"
)

// Application wires the collector together: the simulated feed behind a
// circuit breaker, the in-memory store with its JSON persister, one
// worker per league and the orchestrator fanning them out.
type Application struct {
	Leagues      []league.League
	Orchestrator *usecase.OrchestratorService
	Board        *status.Board
	StatusServer *status.Server

	archiveDB *sqlx.DB
	logger    *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.Default()
	}

	leagues, err := config.LoadLeagues(cfg.LeaguesFile)
	if err != nil {
		return nil, fmt.Errorf("load leagues: %w", err)
	}

	feed := usecase.NewGuardedFeed(
		simfeed.New(simfeed.Config{
			Seed:                cfg.FeedSeed,
			Countdown:           cfg.FeedCountdown,
			LiveDuration:        cfg.FeedLiveDuration,
			FixturesPerMatchday: cfg.FeedFixturesPerMatchday,
			TransientErrorRate:  cfg.FeedTransientErrorRate,
			MissGoalProbability: cfg.FeedMissGoalProbability,
		}, logger),
		resilience.CircuitBreakerConfig{
			Enabled:          cfg.FeedCircuitEnabled,
			FailureThreshold: cfg.FeedCircuitFailureCount,
			OpenTimeout:      cfg.FeedCircuitOpenTimeout,
		},
		logger,
	)

	matchStore := store.New()
	persister := store.NewPersister(cfg.OutputDir)
	flusher := store.NewFlusher(matchStore, persister)
	reconciler := usecase.NewReconcilerService(usecase.ReconcilerConfig{
		GoalMinuteTolerance: cfg.GoalMinuteTolerance,
	}, logger)

	workerCfg := usecase.WorkerConfig{
		TimerPollInterval:      cfg.TimerPollInterval,
		MatchdayScrapeInterval: cfg.MatchdayScrapeInterval,
		LiveScrapeInterval:     cfg.LiveScrapeInterval,
		TickTimeout:            cfg.TickTimeout,
		MinMonitorLead:         cfg.MinMonitorLead,
		MaxMonitorWait:         cfg.MaxMonitorWait,
		MaxPreLiveWait:         cfg.MaxPreLiveWait,
		MaxResultsWait:         cfg.MaxResultsWait,
		ViewSwitchRetries:      cfg.ViewSwitchRetries,
		FlushRetries:           cfg.FlushRetries,
		Machine: usecase.MachineConfig{
			PreLiveThreshold: cfg.PreLiveThreshold,
			MaxLiveDuration:  cfg.MaxLiveDuration,
			StandingsCadence: cfg.StandingsCadence,
		},
	}
	newWorker := func(lg league.League) *usecase.LeagueWorker {
		return usecase.NewLeagueWorker(
			feed,
			matchStore,
			flusher,
			reconciler,
			workerCfg,
			logger.With("league", lg.Code),
		)
	}

	board := status.NewBoard()
	orchestrator := usecase.NewOrchestratorService(
		leagues,
		newWorker,
		id.NewUUIDGenerator(),
		usecase.OrchestratorConfig{MaxWorkers: cfg.MaxWorkers},
		logger,
	).WithObserver(board).WithSummaryWriter(persister)

	app := &Application{
		Leagues:      leagues,
		Orchestrator: orchestrator,
		Board:        board,
		logger:       logger,
	}

	if cfg.StatusEnabled {
		app.StatusServer = status.NewServer(cfg.StatusAddr, board, logger)
	}

	if cfg.ArchiveEnabled {
		db, err := openArchiveDB(cfg.ArchiveDBURL)
		if err != nil {
			return nil, fmt.Errorf("open archive db: %w", err)
		}
		app.archiveDB = db
		orchestrator.WithArchiver(&runArchiver{
			reports:    postgres.NewRunReportRepository(db),
			reconciled: postgres.NewReconciledRecordRepository(db),
			store:      matchStore,
		})
		logger.Info("run archive enabled", "database", dbNameFromURL(cfg.ArchiveDBURL))
	}

	return app, nil
}

// runArchiver stores run reports and the reconciled matches accumulated
// in the store during the run.
type runArchiver struct {
	reports    *postgres.RunReportRepository
	reconciled *postgres.ReconciledRecordRepository
	store      *store.Store
}

func (a *runArchiver) ArchiveRun(ctx context.Context, runID string, reports []workflow.RunReport) error {
	if err := a.reports.ArchiveRun(ctx, runID, reports); err != nil {
		return err
	}
	return a.reconciled.ArchiveReconciled(ctx, runID, a.store.ReconciledRecords())
}

// Close releases resources that need no shutdown deadline.
func (a *Application) Close() error {
	if a.archiveDB != nil {
		if err := a.archiveDB.Close(); err != nil {
			return fmt.Errorf("close archive db: %w", err)
		}
	}
	return nil
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a.StatusServer != nil {
		if err := a.StatusServer.Stop(ctx); err != nil {
			return err
		}
	}
	return a.Close()
}
