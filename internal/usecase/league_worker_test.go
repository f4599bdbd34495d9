package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/reconciliation"
	"github.com/virtuals-lab/leaguescout/internal/domain/result"
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

// scriptedFeed walks through a fixed sequence of timer readings, holding
// the last one once the script runs out.
type scriptedFeed struct {
	mu sync.Mutex

	timerScript []workflow.TimerReading
	timerPos    int
	timerErr    error

	matchday  []FeedMatchdayRow
	live      []FeedLiveRow
	liveErr   error
	results   []FeedResultRow
	standings standings.Snapshot

	matchdayReads int
	liveReads     int
	resultsReads  int
	switches      []FeedView
	switchErr     error
	panicOnTimer  bool
}

func (f *scriptedFeed) ReadTimer(ctx context.Context, lg league.League) (workflow.TimerReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnTimer {
		panic("feed page vanished")
	}
	if f.timerErr != nil {
		return workflow.TimerReading{}, f.timerErr
	}
	if len(f.timerScript) == 0 {
		return workflow.TimerReading{}, nil
	}
	reading := f.timerScript[f.timerPos]
	if f.timerPos < len(f.timerScript)-1 {
		f.timerPos++
	}
	return reading, nil
}

func (f *scriptedFeed) ReadMatchday(ctx context.Context, lg league.League) ([]FeedMatchdayRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchdayReads++
	return f.matchday, nil
}

func (f *scriptedFeed) ReadLive(ctx context.Context, lg league.League) ([]FeedLiveRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveReads++
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	return f.live, nil
}

func (f *scriptedFeed) ReadResults(ctx context.Context, lg league.League) ([]FeedResultRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsReads++
	return f.results, nil
}

func (f *scriptedFeed) ReadStandings(ctx context.Context, lg league.League) (standings.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.standings, nil
}

func (f *scriptedFeed) SwitchView(ctx context.Context, lg league.League, view FeedView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switchErr != nil {
		return f.switchErr
	}
	f.switches = append(f.switches, view)
	return nil
}

type stubDataStore struct {
	mu         sync.Mutex
	matches    map[match.Key]match.Record
	lives      map[match.Key]livematch.Record
	frozen     map[string]bool
	results    map[match.Key]result.Record
	reconciled map[match.Key]reconciliation.Record
}

func newStubDataStore() *stubDataStore {
	return &stubDataStore{
		matches:    make(map[match.Key]match.Record),
		lives:      make(map[match.Key]livematch.Record),
		frozen:     make(map[string]bool),
		results:    make(map[match.Key]result.Record),
		reconciled: make(map[match.Key]reconciliation.Record),
	}
}

func (s *stubDataStore) UpsertMatch(key match.Key, patch match.Patch) match.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.matches[key]
	rec.Key = key
	rec.HomeTeam = patch.HomeTeam
	rec.AwayTeam = patch.AwayTeam
	s.matches[key] = rec
	return rec
}

func (s *stubDataStore) UpsertLive(key match.Key, patch livematch.Patch) (livematch.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lives[key]
	rec.Key = key
	if patch.Score != nil {
		rec.RunningScore = *patch.Score
	}
	rec.HomeTeam = patch.HomeTeam
	rec.AwayTeam = patch.AwayTeam
	rec.Goals = livematch.MergeGoals(rec.Goals, patch.Goals)
	s.lives[key] = rec
	return rec, nil
}

func (s *stubDataStore) LiveRecord(key match.Key) (livematch.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lives[key]
	return rec, ok
}

func (s *stubDataStore) FreezeLive(leagueCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen[leagueCode] = true
}

func (s *stubDataStore) PutResult(key match.Key, rec result.Record) (result.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.results[key]; ok {
		return existing, false
	}
	rec.Key = key
	s.results[key] = rec
	return rec, true
}

func (s *stubDataStore) PutReconciled(key match.Key, rec reconciliation.Record) (reconciliation.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.reconciled[key]; ok {
		return existing, false
	}
	rec.Key = key
	s.reconciled[key] = rec
	return rec, true
}

type stubSnapshotWriter struct {
	mu         sync.Mutex
	flushes    []string
	standings  []standings.Snapshot
	err        error
	failCount  int
	flushCalls int
}

func (w *stubSnapshotWriter) FlushLeague(leagueCode, kind string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushCalls++
	if w.failCount > 0 {
		w.failCount--
		return "", errors.New("disk full")
	}
	if w.err != nil {
		return "", w.err
	}
	w.flushes = append(w.flushes, leagueCode+"/"+kind)
	return "/tmp/" + leagueCode + "_" + kind + ".json", nil
}

func (w *stubSnapshotWriter) WriteStandings(snap standings.Snapshot) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.standings = append(w.standings, snap)
	return "/tmp/standings.json", nil
}

func (w *stubSnapshotWriter) flushed(entry string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range w.flushes {
		if f == entry {
			return true
		}
	}
	return false
}

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		TimerPollInterval:      time.Millisecond,
		MatchdayScrapeInterval: time.Millisecond,
		LiveScrapeInterval:     time.Millisecond,
		TickTimeout:            100 * time.Millisecond,
		MinMonitorLead:         time.Minute,
		MaxPreLiveWait:         time.Second,
		MaxResultsWait:         time.Second,
		ViewSwitchRetries:      1,
		Machine: MachineConfig{
			PreLiveThreshold: 10 * time.Second,
			MaxLiveDuration:  90 * time.Minute,
			StandingsCadence: 5,
		},
	}
}

var testLeague = league.League{Code: "EL", Name: "English League", SelectionIndex: 0}

func fullCycleFeed() *scriptedFeed {
	return &scriptedFeed{
		timerScript: []workflow.TimerReading{
			{State: workflow.TimerCountdown, Remaining: 2 * time.Minute},
			{State: workflow.TimerCountdown, Remaining: 2 * time.Minute},
			{State: workflow.TimerCountdown, Remaining: 5 * time.Second},
			{State: workflow.TimerLive},
			{State: workflow.TimerLive},
			{State: workflow.TimerFinished},
		},
		matchday: []FeedMatchdayRow{
			{FixtureIndex: 0, MatchDay: 1, HomeTeam: "Arsenal", AwayTeam: "Chelsea", MarketOdds: map[string]float64{"1": 2.1}},
		},
		live: []FeedLiveRow{
			{
				FixtureIndex: 0, MatchDay: 1, HomeTeam: "Arsenal", AwayTeam: "Chelsea",
				Score: match.Score{Home: 1, Away: 0},
				Goals: []livematch.GoalEvent{{Side: livematch.SideHome, Minute: 23}},
			},
		},
		results: []FeedResultRow{
			{FixtureIndex: 0, MatchDay: 1, HomeTeam: "Arsenal", AwayTeam: "Chelsea", FinalScore: match.Score{Home: 1, Away: 0}, MatchWeek: 1},
		},
	}
}

func TestLeagueWorker_Run_FullCycle(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", report.Outcome, report.Reason)
	}
	if report.MatchdayScrapes == 0 {
		t.Fatal("no matchday scrapes recorded")
	}
	if report.LiveScrapes == 0 {
		t.Fatal("no live scrapes recorded")
	}
	if !report.ResultsScraped || !report.ValidationComplete {
		t.Fatalf("results phase incomplete: %+v", report)
	}
	if report.CompletedMatches != 1 {
		t.Fatalf("completed matches = %d, want 1", report.CompletedMatches)
	}

	key := match.NewKey("EL", 0, 1)
	if _, ok := ds.results[key]; !ok {
		t.Fatal("result record missing")
	}
	if _, ok := ds.reconciled[key]; !ok {
		t.Fatal("reconciled record missing")
	}
	if !ds.frozen["EL"] {
		t.Fatal("live records were never frozen")
	}
	for _, kind := range []string{"EL/matchday", "EL/live", "EL/results"} {
		if !writer.flushed(kind) {
			t.Fatalf("missing %s flush; got %v", kind, writer.flushes)
		}
	}
}

func TestLeagueWorker_Run_SkipsMatchdayWhenKickoffClose(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.timerScript = []workflow.TimerReading{
		{State: workflow.TimerCountdown, Remaining: 30 * time.Second},
		{State: workflow.TimerCountdown, Remaining: 5 * time.Second},
		{State: workflow.TimerLive},
		{State: workflow.TimerFinished},
	}

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", report.Outcome, report.Reason)
	}
	if report.MatchdayScrapes != 0 || feed.matchdayReads != 0 {
		t.Fatalf("matchday was scraped despite the short countdown: %d scrapes", report.MatchdayScrapes)
	}
	for _, view := range feed.switches {
		if view == ViewMatchday {
			t.Fatal("worker switched to the matchday view despite skipping it")
		}
	}
}

func TestLeagueWorker_Run_StandingsOnCadence(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.standings = standings.Snapshot{
		Table: []standings.Row{{Position: 1, Team: "Arsenal", Points: 3}},
	}

	cfg := testWorkerConfig()
	cfg.Machine.StandingsCadence = 1

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), cfg, logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", report.Outcome, report.Reason)
	}
	if !report.StandingsScraped {
		t.Fatal("standings were not captured on cadence")
	}
	if len(writer.standings) != 1 || writer.standings[0].LeagueCode != "EL" {
		t.Fatalf("standings writes = %+v", writer.standings)
	}
}

func TestLeagueWorker_Run_NoStandingsOffCadence(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", report.Outcome, report.Reason)
	}
	if report.StandingsScraped {
		t.Fatal("standings captured after a single completed match with cadence five")
	}
}

func TestLeagueWorker_Run_CancelYieldsPartial(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.timerScript = []workflow.TimerReading{
		{State: workflow.TimerCountdown, Remaining: 2 * time.Minute},
	}

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	report := worker.Run(ctx, "run-1", testLeague)

	if report.Outcome != workflow.OutcomePartial {
		t.Fatalf("outcome = %s (%s), want partial", report.Outcome, report.Reason)
	}
	if !writer.flushed("EL/matchday") {
		t.Fatalf("cancelled cycle did not flush collected data; got %v", writer.flushes)
	}
}

func TestLeagueWorker_Run_FatalFeedFails(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.timerErr = fmt.Errorf("%w: session crashed", ErrFeedFatal)

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", report.Outcome)
	}
	if report.Reason == "" {
		t.Fatal("failed report carries no reason")
	}
}

func TestLeagueWorker_Run_NoLiveDataSkipsReconciliation(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.liveErr = fmt.Errorf("%w: board not rendered", ErrFeedTransient)

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", report.Outcome, report.Reason)
	}
	key := match.NewKey("EL", 0, 1)
	if _, ok := ds.results[key]; !ok {
		t.Fatal("result record missing")
	}
	if len(ds.reconciled) != 0 {
		t.Fatalf("reconciled records written without any live data: %+v", ds.reconciled)
	}
	if report.ValidationComplete {
		t.Fatal("validation reported complete although nothing was reconciled")
	}
}

func TestLeagueWorker_Run_MonitoringBoundedByMaxWait(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.timerScript = []workflow.TimerReading{
		{State: workflow.TimerCountdown, Remaining: 2 * time.Minute},
	}

	cfg := testWorkerConfig()
	cfg.MaxMonitorWait = 25 * time.Millisecond

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), cfg, logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed when the countdown never advances", report.Outcome)
	}
	if !strings.Contains(report.Reason, ErrPhaseTimeout.Error()) {
		t.Fatalf("reason = %q, want a phase timeout", report.Reason)
	}
}

func TestLeagueWorker_Run_FlushRetryRecovers(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	cfg := testWorkerConfig()
	cfg.FlushRetries = 1

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{failCount: 1}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), cfg, logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success after a retried flush", report.Outcome, report.Reason)
	}
	if !writer.flushed("EL/matchday") {
		t.Fatalf("matchday flush never landed; got %v", writer.flushes)
	}
}

func TestLeagueWorker_Run_FlushExhaustedFails(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	cfg := testWorkerConfig()
	cfg.FlushRetries = 1

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{err: errors.New("volume unmounted")}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), cfg, logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed after exhausted flush retries", report.Outcome)
	}
	if !strings.Contains(report.Reason, "flush") {
		t.Fatalf("reason = %q, want it to name the flush", report.Reason)
	}
	if writer.flushCalls != cfg.FlushRetries+1 {
		t.Fatalf("flush attempts = %d, want %d", writer.flushCalls, cfg.FlushRetries+1)
	}
}

func TestLeagueWorker_Run_FullTimeBoardEndsLivePhase(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	// The timer never reports finished; only the board's full-time
	// markers can end the live phase.
	feed.timerScript = []workflow.TimerReading{
		{State: workflow.TimerCountdown, Remaining: 2 * time.Minute},
		{State: workflow.TimerCountdown, Remaining: 5 * time.Second},
		{State: workflow.TimerLive},
	}
	for i := range feed.live {
		feed.live[i].FullTime = true
	}

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", report.Outcome, report.Reason)
	}
	if report.CompletedMatches != 1 {
		t.Fatalf("completed matches = %d, want 1", report.CompletedMatches)
	}
	if _, ok := ds.reconciled[match.NewKey("EL", 0, 1)]; !ok {
		t.Fatal("reconciled record missing")
	}
}

func TestLeagueWorker_Run_SwitchViewRetriesThenFails(t *testing.T) {
	t.Parallel()

	feed := fullCycleFeed()
	feed.switchErr = fmt.Errorf("%w: tab not clickable", ErrFeedTransient)

	ds := newStubDataStore()
	writer := &stubSnapshotWriter{}
	worker := NewLeagueWorker(feed, ds, writer, NewReconcilerService(ReconcilerConfig{}, logging.NewNop()), testWorkerConfig(), logging.NewNop())

	report := worker.Run(context.Background(), "run-1", testLeague)

	if report.Outcome != workflow.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed after exhausted retries", report.Outcome)
	}
	if !errors.Is(feed.switchErr, ErrFeedTransient) {
		t.Fatal("test invariant: switch error must be transient")
	}
}
