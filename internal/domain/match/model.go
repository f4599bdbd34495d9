package match

import (
	"fmt"
	"time"
)

// Key uniquely identifies one fixture across every collection phase.
// It is built from the league code, the fixture's position on the
// matchday board and the match day number.
type Key string

func NewKey(leagueCode string, fixtureIndex, matchDay int) Key {
	return Key(fmt.Sprintf("%s-d%03d-f%02d", leagueCode, matchDay, fixtureIndex))
}

// Score is a home/away goal pair.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func (s Score) Total() int {
	return s.Home + s.Away
}

func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

// Record is the pre-kickoff view of a fixture: teams and market odds
// observed while the countdown is still running. Records are created on
// the first matchday observation and merged in place on later ones.
type Record struct {
	Key           Key
	LeagueCode    string
	FixtureIndex  int
	MatchDay      int
	HomeTeam      string
	AwayTeam      string
	MarketOdds    map[string]float64
	TimerSnapshot string
	PhaseObserved string
	FirstSeenAt   time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy safe to hand to readers.
func (r Record) Clone() Record {
	out := r
	if r.MarketOdds != nil {
		out.MarketOdds = make(map[string]float64, len(r.MarketOdds))
		for name, value := range r.MarketOdds {
			out.MarketOdds[name] = value
		}
	}
	return out
}

// Patch is a partial matchday update merged into a Record. Zero-valued
// fields leave the stored value untouched; market odds merge per market
// name.
type Patch struct {
	LeagueCode    string
	FixtureIndex  int
	MatchDay      int
	HomeTeam      string
	AwayTeam      string
	MarketOdds    map[string]float64
	TimerSnapshot string
	PhaseObserved string
	ObservedAt    time.Time
}
