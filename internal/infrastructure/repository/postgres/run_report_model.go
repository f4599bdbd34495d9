package postgres

import "time"

type runReportTableModel struct {
	ID                 int64     `db:"id"`
	RunID              string    `db:"run_id"`
	LeagueCode         string    `db:"league_code"`
	LeagueName         string    `db:"league_name"`
	Outcome            string    `db:"outcome"`
	Reason             string    `db:"reason"`
	MatchdayScrapes    int       `db:"matchday_scrapes"`
	LiveScrapes        int       `db:"live_scrapes"`
	SkippedTicks       int       `db:"skipped_ticks"`
	ResultsScraped     bool      `db:"results_scraped"`
	StandingsScraped   bool      `db:"standings_scraped"`
	ValidationComplete bool      `db:"validation_complete"`
	CompletedMatches   int       `db:"completed_matches"`
	StartedAt          time.Time `db:"started_at"`
	FinishedAt         time.Time `db:"finished_at"`
	CreatedAt          time.Time `db:"created_at"`
}
