package status

import (
	"sync"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
)

// LeagueStatus is the externally visible state of one league worker.
type LeagueStatus struct {
	LeagueCode       string    `json:"league_code"`
	LeagueName       string    `json:"league_name"`
	RunID            string    `json:"run_id"`
	Running          bool      `json:"running"`
	Outcome          string    `json:"outcome,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	MatchdayScrapes  int       `json:"matchday_scrapes"`
	LiveScrapes      int       `json:"live_scrapes"`
	SkippedTicks     int       `json:"skipped_ticks"`
	CompletedMatches int       `json:"completed_matches"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	FinishedAt       time.Time `json:"finished_at,omitempty"`
}

// Board tracks live worker state for the status endpoint. It implements
// the orchestrator's observer contract.
type Board struct {
	mu       sync.RWMutex
	statuses map[string]LeagueStatus
	order    []string
}

func NewBoard() *Board {
	return &Board{statuses: make(map[string]LeagueStatus)}
}

func (b *Board) WorkerStarted(runID string, lg league.League) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, known := b.statuses[lg.Code]; !known {
		b.order = append(b.order, lg.Code)
	}
	b.statuses[lg.Code] = LeagueStatus{
		LeagueCode: lg.Code,
		LeagueName: lg.Name,
		RunID:      runID,
		Running:    true,
		StartedAt:  time.Now(),
	}
}

func (b *Board) WorkerFinished(report workflow.RunReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, known := b.statuses[report.LeagueCode]
	if !known {
		b.order = append(b.order, report.LeagueCode)
	}
	current.LeagueCode = report.LeagueCode
	current.LeagueName = report.LeagueName
	current.RunID = report.RunID
	current.Running = false
	current.Outcome = string(report.Outcome)
	current.Reason = report.Reason
	current.MatchdayScrapes = report.MatchdayScrapes
	current.LiveScrapes = report.LiveScrapes
	current.SkippedTicks = report.SkippedTicks
	current.CompletedMatches = report.CompletedMatches
	current.StartedAt = report.StartedAt
	current.FinishedAt = report.FinishedAt
	b.statuses[report.LeagueCode] = current
}

// Statuses returns every league's state in first-seen order.
func (b *Board) Statuses() []LeagueStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]LeagueStatus, 0, len(b.order))
	for _, code := range b.order {
		out = append(out, b.statuses[code])
	}
	return out
}
