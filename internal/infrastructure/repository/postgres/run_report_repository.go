package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
)

// RunReportRepository archives finished run reports. The table is
// append-only; replays of the same (run, league) pair are ignored.
type RunReportRepository struct {
	db *sqlx.DB
}

func NewRunReportRepository(db *sqlx.DB) *RunReportRepository {
	return &RunReportRepository{db: db}
}

const insertRunReportQuery = `
INSERT INTO run_reports (
    run_id, league_code, league_name, outcome, reason,
    matchday_scrapes, live_scrapes, skipped_ticks,
    results_scraped, standings_scraped, validation_complete,
    completed_matches, started_at, finished_at
) VALUES (
    :run_id, :league_code, :league_name, :outcome, :reason,
    :matchday_scrapes, :live_scrapes, :skipped_ticks,
    :results_scraped, :standings_scraped, :validation_complete,
    :completed_matches, :started_at, :finished_at
)
ON CONFLICT (run_id, league_code) DO NOTHING`

// ArchiveRun stores every report of one run in a single transaction.
func (r *RunReportRepository) ArchiveRun(ctx context.Context, runID string, reports []workflow.RunReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, report := range reports {
		row := runReportTableModel{
			RunID:              runID,
			LeagueCode:         report.LeagueCode,
			LeagueName:         report.LeagueName,
			Outcome:            string(report.Outcome),
			Reason:             report.Reason,
			MatchdayScrapes:    report.MatchdayScrapes,
			LiveScrapes:        report.LiveScrapes,
			SkippedTicks:       report.SkippedTicks,
			ResultsScraped:     report.ResultsScraped,
			StandingsScraped:   report.StandingsScraped,
			ValidationComplete: report.ValidationComplete,
			CompletedMatches:   report.CompletedMatches,
			StartedAt:          report.StartedAt,
			FinishedAt:         report.FinishedAt,
		}
		if _, err := tx.NamedExecContext(ctx, insertRunReportQuery, row); err != nil {
			return fmt.Errorf("insert run report %s/%s: %w", runID, report.LeagueCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// ListByRun returns the archived reports of one run in league order.
func (r *RunReportRepository) ListByRun(ctx context.Context, runID string) ([]workflow.RunReport, error) {
	var rows []runReportTableModel
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM run_reports WHERE run_id = $1 ORDER BY league_code`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select run reports: %w", err)
	}

	out := make([]workflow.RunReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, workflow.RunReport{
			RunID:              row.RunID,
			LeagueCode:         row.LeagueCode,
			LeagueName:         row.LeagueName,
			Outcome:            workflow.Outcome(row.Outcome),
			Reason:             row.Reason,
			MatchdayScrapes:    row.MatchdayScrapes,
			LiveScrapes:        row.LiveScrapes,
			SkippedTicks:       row.SkippedTicks,
			ResultsScraped:     row.ResultsScraped,
			StandingsScraped:   row.StandingsScraped,
			ValidationComplete: row.ValidationComplete,
			CompletedMatches:   row.CompletedMatches,
			StartedAt:          row.StartedAt,
			FinishedAt:         row.FinishedAt,
		})
	}
	return out, nil
}
