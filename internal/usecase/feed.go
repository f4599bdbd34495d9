package usecase

import (
	"context"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
)

// FeedView names a tab the collaborator can switch the page to.
type FeedView string

const (
	ViewMatchday  FeedView = "matchday"
	ViewLive      FeedView = "live"
	ViewResults   FeedView = "results"
	ViewStandings FeedView = "standings"
)

// FeedMatchdayRow is one fixture as shown on the matchday board before
// kickoff.
type FeedMatchdayRow struct {
	FixtureIndex  int
	MatchDay      int
	HomeTeam      string
	AwayTeam      string
	MarketOdds    map[string]float64
	TimerSnapshot string
}

// FeedLiveRow is one fixture as shown on the in-play board.
type FeedLiveRow struct {
	FixtureIndex int
	MatchDay     int
	HomeTeam     string
	AwayTeam     string
	Score        match.Score
	Goals        []livematch.GoalEvent
	HalfTime     *match.Score
	FullTime     bool
}

// FeedResultRow is one finished fixture as shown on the results board.
type FeedResultRow struct {
	FixtureIndex int
	MatchDay     int
	HomeTeam     string
	AwayTeam     string
	FinalScore   match.Score
	MatchWeek    int
}

// MatchFeed is the collaborator contract the core consumes. The real
// implementation drives a browser; this repo ships a simulated one.
// Every method may fail with an error matching ErrFeedTransient (retried
// next tick) or ErrFeedFatal (fails the league's cycle).
type MatchFeed interface {
	ReadTimer(ctx context.Context, lg league.League) (workflow.TimerReading, error)
	ReadMatchday(ctx context.Context, lg league.League) ([]FeedMatchdayRow, error)
	ReadLive(ctx context.Context, lg league.League) ([]FeedLiveRow, error)
	ReadResults(ctx context.Context, lg league.League) ([]FeedResultRow, error)
	ReadStandings(ctx context.Context, lg league.League) (standings.Snapshot, error)
	SwitchView(ctx context.Context, lg league.League, view FeedView) error
}
