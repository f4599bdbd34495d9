package livematch

import (
	"fmt"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/match"
)

type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// GoalEvent is one observed goal with its on-screen minute marker.
type GoalEvent struct {
	Side   Side `json:"side"`
	Minute int  `json:"minute"`
}

// DedupKey identifies a goal event; two observations of the same goal
// across ticks collapse into one entry.
func (g GoalEvent) DedupKey() string {
	return fmt.Sprintf("%s@%d", g.Side, g.Minute)
}

// Record accumulates the in-play view of one fixture. It is mutated by
// successive live ticks and frozen once the results phase begins.
type Record struct {
	Key            match.Key
	HomeTeam       string
	AwayTeam       string
	RunningScore   match.Score
	Goals          []GoalEvent
	HalfTimeScore  *match.Score
	LastObservedAt time.Time
}

func (r Record) Clone() Record {
	out := r
	if r.Goals != nil {
		out.Goals = make([]GoalEvent, len(r.Goals))
		copy(out.Goals, r.Goals)
	}
	if r.HalfTimeScore != nil {
		ht := *r.HalfTimeScore
		out.HalfTimeScore = &ht
	}
	return out
}

// MergeGoals appends incoming events to existing ones, keeping order and
// dropping events already present under the same dedup key.
func MergeGoals(existing, incoming []GoalEvent) []GoalEvent {
	if len(incoming) == 0 {
		return existing
	}

	seen := make(map[string]struct{}, len(existing))
	for _, event := range existing {
		seen[event.DedupKey()] = struct{}{}
	}

	out := existing
	for _, event := range incoming {
		key := event.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, event)
	}
	return out
}

// Patch is a partial in-play update merged into a Record. Goal events
// append with deduplication; the half-time score is set exactly once.
type Patch struct {
	HomeTeam      string
	AwayTeam      string
	Score         *match.Score
	Goals         []GoalEvent
	HalfTimeScore *match.Score
	ObservedAt    time.Time
}
