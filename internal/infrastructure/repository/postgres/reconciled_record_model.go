package postgres

import "time"

type reconciledRecordTableModel struct {
	RunID         string    `db:"run_id"`
	MatchKey      string    `db:"match_key"`
	HomeScore     int       `db:"home_score"`
	AwayScore     int       `db:"away_score"`
	GoalCount     int       `db:"goal_count"`
	Goals         []byte    `db:"goals"`
	Discrepancies []byte    `db:"discrepancies"`
	ReconciledAt  time.Time `db:"reconciled_at"`
}
