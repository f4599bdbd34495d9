package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/virtuals-lab/leaguescout/internal/app"
	"github.com/virtuals-lab/leaguescout/internal/config"
	"github.com/virtuals-lab/leaguescout/internal/observability"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
	"github.com/virtuals-lab/leaguescout/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	if cfg.UptraceEnabled {
		shutdown, err := observability.InitUptrace(cfg, logger)
		if err != nil {
			logger.Error("init uptrace", "error", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("uptrace shutdown", "error", err)
			}
		}()
	}

	if cfg.PyroscopeEnabled {
		stop, err := observability.InitPyroscope(cfg, logger)
		if err != nil {
			logger.Error("init pyroscope", "error", err)
			return 1
		}
		defer func() {
			if err := stop(); err != nil {
				logger.Warn("pyroscope shutdown", "error", err)
			}
		}()
	}

	if cfg.PprofEnabled {
		srv, err := observability.StartPprofServer(cfg, logger)
		if err != nil {
			logger.Error("start pprof server", "error", err)
			return 1
		}
		defer func() {
			if err := observability.StopPprofServer(srv, logger, 5*time.Second); err != nil {
				logger.Warn("pprof shutdown", "error", err)
			}
		}()
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build application", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if application.StatusServer != nil {
		application.StatusServer.Start()
	}

	exitCode := 0
	for cycle := 1; cycle <= cfg.Cycles; cycle++ {
		logger.Info("collection cycle starting",
			"cycle", cycle,
			"of", cfg.Cycles,
			"leagues", len(application.Leagues),
		)

		summary, err := application.Orchestrator.Run(ctx)
		if err != nil {
			logger.Error("collection cycle aborted", "cycle", cycle, "error", err)
			exitCode = 1
			break
		}

		logger.Info("collection cycle finished",
			"cycle", cycle,
			"run_id", summary.RunID,
			"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
			"succeeded", summary.Succeeded,
			"partial", summary.Partial,
			"failed", summary.Failed,
		)
		printSummary(summary)
		if summary.Failed > 0 {
			exitCode = 1
		}
		if ctx.Err() != nil {
			logger.Warn("shutdown requested, stopping after current run", "cycle", cycle)
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}

	return exitCode
}

func printSummary(summary usecase.RunSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "\nrun %s\t%s\n", summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Fprintln(w, "LEAGUE\tOUTCOME\tMATCHDAY\tLIVE\tSKIPPED\tRESULTS\tSTANDINGS\tVALIDATED\tREASON")
	for _, r := range summary.Reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.LeagueCode,
			r.Outcome,
			r.MatchdayScrapes,
			r.LiveScrapes,
			r.SkippedTicks,
			yesNo(r.ResultsScraped),
			yesNo(r.StandingsScraped),
			yesNo(r.ValidationComplete),
			r.Reason,
		)
	}
	fmt.Fprintf(w, "total\t%d ok / %d partial / %d failed\n", summary.Succeeded, summary.Partial, summary.Failed)
	_ = w.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
