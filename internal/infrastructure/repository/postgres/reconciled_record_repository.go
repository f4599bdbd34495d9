package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/virtuals-lab/leaguescout/internal/domain/reconciliation"
)

// ReconciledRecordRepository archives reconciled matches for later
// analysis. Replays of the same (run, match) pair are ignored.
type ReconciledRecordRepository struct {
	db *sqlx.DB
}

func NewReconciledRecordRepository(db *sqlx.DB) *ReconciledRecordRepository {
	return &ReconciledRecordRepository{db: db}
}

const insertReconciledQuery = `
INSERT INTO reconciled_records (
    run_id, match_key, home_score, away_score, goal_count,
    goals, discrepancies, reconciled_at
) VALUES (
    :run_id, :match_key, :home_score, :away_score, :goal_count,
    :goals, :discrepancies, :reconciled_at
)
ON CONFLICT (run_id, match_key) DO NOTHING`

// ArchiveReconciled stores every reconciled record of one run in a single
// transaction.
func (r *ReconciledRecordRepository) ArchiveReconciled(ctx context.Context, runID string, records []reconciliation.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconciled archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		goals, err := sonic.Marshal(rec.Goals)
		if err != nil {
			return fmt.Errorf("marshal goals for %s: %w", rec.Key, err)
		}
		discrepancies, err := sonic.Marshal(rec.Discrepancies)
		if err != nil {
			return fmt.Errorf("marshal discrepancies for %s: %w", rec.Key, err)
		}

		row := reconciledRecordTableModel{
			RunID:         runID,
			MatchKey:      string(rec.Key),
			HomeScore:     rec.FinalScore.Home,
			AwayScore:     rec.FinalScore.Away,
			GoalCount:     len(rec.Goals),
			Goals:         goals,
			Discrepancies: discrepancies,
			ReconciledAt:  rec.ReconciledAt,
		}
		if _, err := tx.NamedExecContext(ctx, insertReconciledQuery, row); err != nil {
			return fmt.Errorf("insert reconciled record %s/%s: %w", runID, rec.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciled archive tx: %w", err)
	}
	return nil
}
