package workflow

import "time"

// Phase is the collection phase a league worker is in. Phases advance
// strictly forward within one fixture cycle.
type Phase int

const (
	PhaseMonitoring Phase = iota
	PhasePreLive
	PhaseLive
	PhaseResults
	PhaseStandings
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseMonitoring:
		return "MONITORING"
	case PhasePreLive:
		return "PRE_LIVE"
	case PhaseLive:
		return "LIVE"
	case PhaseResults:
		return "RESULTS"
	case PhaseStandings:
		return "STANDINGS"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// TimerState classifies what the page timer currently shows.
type TimerState int

const (
	TimerUnknown TimerState = iota
	TimerCountdown
	TimerLive
	TimerFinished
)

// TimerReading is one polled observation of the league timer.
type TimerReading struct {
	State     TimerState
	Remaining time.Duration
}

func (r TimerReading) String() string {
	switch r.State {
	case TimerCountdown:
		return r.Remaining.String()
	case TimerLive:
		return "LIVE"
	case TimerFinished:
		return "FINISHED"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// RunReport summarises one league's workflow inside one orchestrator run.
type RunReport struct {
	RunID              string
	LeagueCode         string
	LeagueName         string
	Outcome            Outcome
	Reason             string
	MatchdayScrapes    int
	LiveScrapes        int
	SkippedTicks       int
	ResultsScraped     bool
	StandingsScraped   bool
	ValidationComplete bool
	CompletedMatches   int
	StartedAt          time.Time
	FinishedAt         time.Time
}
