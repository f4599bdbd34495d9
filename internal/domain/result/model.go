package result

import (
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/match"
)

// Record is the authoritative post-game view of one fixture. It is
// written exactly once during the results phase and never overwritten
// by live data.
type Record struct {
	Key        match.Key
	HomeTeam   string
	AwayTeam   string
	FinalScore match.Score
	MatchWeek  int
	RecordedAt time.Time
}
