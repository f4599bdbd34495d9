package reconciliation

import (
	"fmt"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
)

const (
	FieldScore      = "score"
	FieldGoalCount  = "goal_count"
	FieldHomeTeam   = "home_team"
	FieldAwayTeam   = "away_team"
	FieldGoalMinute = "goal_minute"
)

// Discrepancy records one disagreement between the live view and the
// results view of a match. Discrepancies are informational; they never
// block reconciliation.
type Discrepancy struct {
	Field       string `json:"field"`
	LiveValue   string `json:"live_value"`
	ResultValue string `json:"result_value"`
}

func (d Discrepancy) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s", d.Field, d.LiveValue, d.ResultValue)
}

// Record is the single authoritative view of a finished match. The final
// score always comes from the results feed; goal events come from the
// live feed.
type Record struct {
	Key           match.Key
	FinalScore    match.Score
	Goals         []livematch.GoalEvent
	Discrepancies []Discrepancy
	ReconciledAt  time.Time
}

func (r Record) Clone() Record {
	out := r
	if r.Goals != nil {
		out.Goals = make([]livematch.GoalEvent, len(r.Goals))
		copy(out.Goals, r.Goals)
	}
	if r.Discrepancies != nil {
		out.Discrepancies = make([]Discrepancy, len(r.Discrepancies))
		copy(out.Discrepancies, r.Discrepancies)
	}
	return out
}
