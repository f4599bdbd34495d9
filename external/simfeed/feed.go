package simfeed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
	"github.com/virtuals-lab/leaguescout/internal/usecase"
)

const regulationMinutes = 90

type Config struct {
	// Seed fixes the fixture script; zero derives one from the clock.
	Seed int64
	// Countdown is the simulated time between matchdays.
	Countdown time.Duration
	// LiveDuration is the simulated length of a match; it maps onto the
	// 90 regulation minutes.
	LiveDuration time.Duration
	// FixturesPerMatchday is how many matches run concurrently per league.
	FixturesPerMatchday int
	// TransientErrorRate injects recoverable read failures.
	TransientErrorRate float64
	// MissGoalProbability drops individual goal rows from the live board
	// while the scoreboard still updates, the way the real page does.
	MissGoalProbability float64
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Countdown <= 0 {
		c.Countdown = 45 * time.Second
	}
	if c.LiveDuration <= 0 {
		c.LiveDuration = 90 * time.Second
	}
	if c.FixturesPerMatchday <= 0 {
		c.FixturesPerMatchday = 4
	}
	return c
}

// Feed is a deterministic scripted implementation of the collaborator
// contract. Each league runs its own repeating matchday: a countdown, a
// live window mapped onto 90 match minutes, then a results window that
// lasts until the next countdown starts. Fixture scripts are generated
// up front from the seed, so two runs with the same seed and clock see
// identical matches.
type Feed struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	leagues map[string]*leagueState
	now     func() time.Time
	started time.Time
}

type leagueState struct {
	lg       league.League
	rng      *rand.Rand
	view     usecase.FeedView
	epoch    time.Time
	matchDay int
	fixtures []fixtureScript

	table   map[string]*teamTally
	applied bool
}

type fixtureScript struct {
	index int
	home  string
	away  string
	odds  map[string]float64
	goals []scriptedGoal
}

type scriptedGoal struct {
	side   livematch.Side
	minute int
	// hidden goals never render a row on the live board even though the
	// scoreboard counts them.
	hidden bool
}

type teamTally struct {
	played int
	won    int
	drawn  int
	lost   int
	points int
	form   []byte
}

func New(cfg Config, logger *logging.Logger) *Feed {
	if logger == nil {
		logger = logging.Default()
	}
	cfg = cfg.withDefaults()

	f := &Feed{
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		leagues: make(map[string]*leagueState),
		now:     time.Now,
	}
	f.started = f.now()
	return f
}

func (f *Feed) ReadTimer(ctx context.Context, lg league.League) (workflow.TimerReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.maybeTransient("read timer"); err != nil {
		return workflow.TimerReading{}, err
	}
	state := f.leagueState(lg)
	f.sync(state)

	phase, remaining := f.phaseAt(state, f.now())
	switch phase {
	case workflow.PhaseMonitoring:
		return workflow.TimerReading{State: workflow.TimerCountdown, Remaining: remaining}, nil
	case workflow.PhaseLive:
		return workflow.TimerReading{State: workflow.TimerLive}, nil
	default:
		return workflow.TimerReading{State: workflow.TimerFinished}, nil
	}
}

func (f *Feed) ReadMatchday(ctx context.Context, lg league.League) ([]usecase.FeedMatchdayRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.maybeTransient("read matchday board"); err != nil {
		return nil, err
	}
	state := f.leagueState(lg)
	f.sync(state)
	if state.view != usecase.ViewMatchday {
		return nil, fmt.Errorf("%w: matchday board not active", usecase.ErrFeedTransient)
	}

	_, remaining := f.phaseAt(state, f.now())
	snapshot := formatCountdown(remaining)

	rows := make([]usecase.FeedMatchdayRow, 0, len(state.fixtures))
	for _, fx := range state.fixtures {
		odds := make(map[string]float64, len(fx.odds))
		for market, value := range fx.odds {
			odds[market] = value
		}
		rows = append(rows, usecase.FeedMatchdayRow{
			FixtureIndex:  fx.index,
			MatchDay:      state.matchDay,
			HomeTeam:      fx.home,
			AwayTeam:      fx.away,
			MarketOdds:    odds,
			TimerSnapshot: snapshot,
		})
	}
	return rows, nil
}

func (f *Feed) ReadLive(ctx context.Context, lg league.League) ([]usecase.FeedLiveRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.maybeTransient("read live board"); err != nil {
		return nil, err
	}
	state := f.leagueState(lg)
	f.sync(state)
	if state.view != usecase.ViewLive {
		return nil, fmt.Errorf("%w: live board not active", usecase.ErrFeedTransient)
	}

	minute, fullTime := f.matchMinute(state, f.now())
	rows := make([]usecase.FeedLiveRow, 0, len(state.fixtures))
	for _, fx := range state.fixtures {
		row := usecase.FeedLiveRow{
			FixtureIndex: fx.index,
			MatchDay:     state.matchDay,
			HomeTeam:     fx.home,
			AwayTeam:     fx.away,
			FullTime:     fullTime,
		}
		for _, goal := range fx.goals {
			if goal.minute > minute {
				continue
			}
			switch goal.side {
			case livematch.SideHome:
				row.Score.Home++
			default:
				row.Score.Away++
			}
			if !goal.hidden {
				row.Goals = append(row.Goals, livematch.GoalEvent{Side: goal.side, Minute: goal.minute})
			}
		}
		if minute >= regulationMinutes/2 {
			ht := scoreUpTo(fx.goals, regulationMinutes/2)
			row.HalfTime = &ht
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *Feed) ReadResults(ctx context.Context, lg league.League) ([]usecase.FeedResultRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.maybeTransient("read results board"); err != nil {
		return nil, err
	}
	state := f.leagueState(lg)
	f.sync(state)
	if state.view != usecase.ViewResults {
		return nil, fmt.Errorf("%w: results board not active", usecase.ErrFeedTransient)
	}

	phase, _ := f.phaseAt(state, f.now())
	if phase != workflow.PhaseResults {
		// The board renders empty until full time.
		return nil, nil
	}

	rows := make([]usecase.FeedResultRow, 0, len(state.fixtures))
	for _, fx := range state.fixtures {
		rows = append(rows, usecase.FeedResultRow{
			FixtureIndex: fx.index,
			MatchDay:     state.matchDay,
			HomeTeam:     fx.home,
			AwayTeam:     fx.away,
			FinalScore:   scoreUpTo(fx.goals, regulationMinutes),
			MatchWeek:    state.matchDay,
		})
	}
	return rows, nil
}

func (f *Feed) ReadStandings(ctx context.Context, lg league.League) (standings.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.maybeTransient("read standings board"); err != nil {
		return standings.Snapshot{}, err
	}
	state := f.leagueState(lg)
	f.sync(state)
	if state.view != usecase.ViewStandings {
		return standings.Snapshot{}, fmt.Errorf("%w: standings board not active", usecase.ErrFeedTransient)
	}

	return standings.Snapshot{
		LeagueCode: lg.Code,
		CapturedAt: f.now(),
		Table:      buildTable(state.table),
	}, nil
}

func (f *Feed) SwitchView(ctx context.Context, lg league.League, view usecase.FeedView) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.maybeTransient("switch view"); err != nil {
		return err
	}
	state := f.leagueState(lg)
	state.view = view
	return nil
}

func (f *Feed) maybeTransient(op string) error {
	if f.cfg.TransientErrorRate <= 0 {
		return nil
	}
	if f.rng.Float64() < f.cfg.TransientErrorRate {
		return fmt.Errorf("%w: %s did not render", usecase.ErrFeedTransient, op)
	}
	return nil
}

func (f *Feed) leagueState(lg league.League) *leagueState {
	state, ok := f.leagues[lg.Code]
	if !ok {
		h := fnv.New64a()
		_, _ = h.Write([]byte(lg.Code))
		state = &leagueState{
			lg:       lg,
			rng:      rand.New(rand.NewSource(f.cfg.Seed ^ int64(h.Sum64()))),
			view:     usecase.ViewMatchday,
			epoch:    f.started,
			matchDay: 1,
			table:    make(map[string]*teamTally),
		}
		state.fixtures = f.scriptMatchday(state)
		f.leagues[lg.Code] = state
	}
	return state
}

// sync rolls the league forward: results are applied to the table the
// moment a matchday finishes, and a fresh matchday is scripted once its
// results window closes.
func (f *Feed) sync(state *leagueState) {
	nowT := f.now()
	cycle := f.cycleLength()

	for {
		phase, _ := f.phaseAt(state, nowT)
		if phase == workflow.PhaseResults && !state.applied {
			f.applyResults(state)
			state.applied = true
		}
		if nowT.Sub(state.epoch) < cycle {
			return
		}
		if !state.applied {
			f.applyResults(state)
		}
		state.epoch = state.epoch.Add(cycle)
		state.matchDay++
		state.fixtures = f.scriptMatchday(state)
		state.applied = false
	}
}

// cycleLength is one full matchday: countdown, live window, then a
// results window as long as the countdown.
func (f *Feed) cycleLength() time.Duration {
	return 2*f.cfg.Countdown + f.cfg.LiveDuration
}

func (f *Feed) phaseAt(state *leagueState, nowT time.Time) (workflow.Phase, time.Duration) {
	offset := nowT.Sub(state.epoch)
	switch {
	case offset < f.cfg.Countdown:
		return workflow.PhaseMonitoring, f.cfg.Countdown - offset
	case offset < f.cfg.Countdown+f.cfg.LiveDuration:
		return workflow.PhaseLive, 0
	default:
		return workflow.PhaseResults, 0
	}
}

// matchMinute maps elapsed live time onto the 90 regulation minutes.
func (f *Feed) matchMinute(state *leagueState, nowT time.Time) (int, bool) {
	offset := nowT.Sub(state.epoch) - f.cfg.Countdown
	if offset < 0 {
		return 0, false
	}
	if offset >= f.cfg.LiveDuration {
		return regulationMinutes, true
	}
	return int(float64(regulationMinutes) * float64(offset) / float64(f.cfg.LiveDuration)), false
}

func (f *Feed) scriptMatchday(state *leagueState) []fixtureScript {
	teams := teamPool(state.lg)
	state.rng.Shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })

	count := f.cfg.FixturesPerMatchday
	if count > len(teams)/2 {
		count = len(teams) / 2
	}

	fixtures := make([]fixtureScript, 0, count)
	for i := 0; i < count; i++ {
		fx := fixtureScript{
			index: i,
			home:  teams[2*i],
			away:  teams[2*i+1],
			odds: map[string]float64{
				"1": roundOdds(1.5 + state.rng.Float64()*3.5),
				"X": roundOdds(2.5 + state.rng.Float64()*2.5),
				"2": roundOdds(1.5 + state.rng.Float64()*4.5),
			},
		}

		goals := state.rng.Intn(6)
		for g := 0; g < goals; g++ {
			side := livematch.SideHome
			if state.rng.Intn(2) == 1 {
				side = livematch.SideAway
			}
			fx.goals = append(fx.goals, scriptedGoal{
				side:   side,
				minute: 1 + state.rng.Intn(regulationMinutes),
				hidden: state.rng.Float64() < f.cfg.MissGoalProbability,
			})
		}
		sort.Slice(fx.goals, func(a, b int) bool { return fx.goals[a].minute < fx.goals[b].minute })
		fixtures = append(fixtures, fx)
	}
	return fixtures
}

func (f *Feed) applyResults(state *leagueState) {
	for _, fx := range state.fixtures {
		final := scoreUpTo(fx.goals, regulationMinutes)
		home := state.tally(fx.home)
		away := state.tally(fx.away)
		home.played++
		away.played++
		switch {
		case final.Home > final.Away:
			home.won++
			home.points += 3
			away.lost++
			home.form = append(home.form, 'W')
			away.form = append(away.form, 'L')
		case final.Home < final.Away:
			away.won++
			away.points += 3
			home.lost++
			home.form = append(home.form, 'L')
			away.form = append(away.form, 'W')
		default:
			home.drawn++
			away.drawn++
			home.points++
			away.points++
			home.form = append(home.form, 'D')
			away.form = append(away.form, 'D')
		}
	}
}

func (state *leagueState) tally(team string) *teamTally {
	t, ok := state.table[team]
	if !ok {
		t = &teamTally{}
		state.table[team] = t
	}
	return t
}

func scoreUpTo(goals []scriptedGoal, minute int) match.Score {
	var score match.Score
	for _, goal := range goals {
		if goal.minute > minute {
			continue
		}
		if goal.side == livematch.SideHome {
			score.Home++
		} else {
			score.Away++
		}
	}
	return score
}

func buildTable(table map[string]*teamTally) []standings.Row {
	rows := make([]standings.Row, 0, len(table))
	for team, tally := range table {
		form := tally.form
		if len(form) > 5 {
			form = form[len(form)-5:]
		}
		rows = append(rows, standings.Row{
			Team:   team,
			Played: tally.played,
			Won:    tally.won,
			Drawn:  tally.drawn,
			Lost:   tally.lost,
			Points: tally.points,
			Form:   string(form),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Team < rows[j].Team
	})
	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}

func formatCountdown(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func roundOdds(v float64) float64 {
	return float64(int(v*100)) / 100
}

func teamPool(lg league.League) []string {
	pools := map[string][]string{
		"EL": {"Arsenal", "Chelsea", "Liverpool", "Everton", "Tottenham", "Fulham", "Newcastle", "Brentford"},
		"SL": {"Barcelona", "Real Madrid", "Sevilla", "Valencia", "Villarreal", "Betis", "Athletic", "Getafe"},
		"KL": {"Gor Mahia", "AFC Leopards", "Tusker", "Sofapaka", "Ulinzi Stars", "Bandari", "Kariobangi Sharks", "Posta Rangers"},
		"IL": {"Inter", "Milan", "Juventus", "Napoli", "Roma", "Lazio", "Atalanta", "Fiorentina"},
	}
	if pool, ok := pools[lg.Code]; ok {
		return append([]string(nil), pool...)
	}

	pool := make([]string, 8)
	for i := range pool {
		pool[i] = fmt.Sprintf("%s Team %d", lg.Code, i+1)
	}
	return pool
}
