package usecase

import (
	"context"
	"testing"

	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/reconciliation"
	"github.com/virtuals-lab/leaguescout/internal/domain/result"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

func discrepancyFields(rec reconciliation.Record) map[string]int {
	fields := make(map[string]int)
	for _, d := range rec.Discrepancies {
		fields[d.Field]++
	}
	return fields
}

func TestReconcilerService_Reconcile_CleanMatch(t *testing.T) {
	t.Parallel()

	s := NewReconcilerService(ReconcilerConfig{}, logging.NewNop())
	key := match.NewKey("EL", 3, 0)

	live := livematch.Record{
		Key:          key,
		HomeTeam:     "Arsenal",
		AwayTeam:     "Chelsea",
		RunningScore: match.Score{Home: 2, Away: 1},
		Goals: []livematch.GoalEvent{
			{Side: livematch.SideHome, Minute: 12},
			{Side: livematch.SideAway, Minute: 44},
			{Side: livematch.SideHome, Minute: 78},
		},
	}
	res := result.Record{
		Key:        key,
		HomeTeam:   "Arsenal",
		AwayTeam:   "Chelsea",
		FinalScore: match.Score{Home: 2, Away: 1},
	}

	rec := s.Reconcile(context.Background(), live, res)

	if len(rec.Discrepancies) != 0 {
		t.Fatalf("clean match produced discrepancies: %+v", rec.Discrepancies)
	}
	if rec.FinalScore != res.FinalScore {
		t.Fatalf("final score = %v, want result score", rec.FinalScore)
	}
	if len(rec.Goals) != 3 {
		t.Fatalf("goals = %d, want the live timeline carried over", len(rec.Goals))
	}
}

func TestReconcilerService_Reconcile_ResultScoreAlwaysWins(t *testing.T) {
	t.Parallel()

	s := NewReconcilerService(ReconcilerConfig{}, logging.NewNop())
	key := match.NewKey("SL", 1, 2)

	live := livematch.Record{
		Key:          key,
		RunningScore: match.Score{Home: 1, Away: 0},
		Goals:        []livematch.GoalEvent{{Side: livematch.SideHome, Minute: 30}},
	}
	res := result.Record{
		Key:        key,
		FinalScore: match.Score{Home: 2, Away: 0},
	}

	rec := s.Reconcile(context.Background(), live, res)

	if rec.FinalScore != res.FinalScore {
		t.Fatalf("final score = %v, the results view must win", rec.FinalScore)
	}
	fields := discrepancyFields(rec)
	if fields[reconciliation.FieldScore] != 1 {
		t.Fatalf("want one score discrepancy, got %+v", rec.Discrepancies)
	}
	if fields[reconciliation.FieldGoalCount] != 1 {
		t.Fatalf("want one goal_count discrepancy, got %+v", rec.Discrepancies)
	}
}

func TestReconcilerService_Reconcile_MissedGoalOnly(t *testing.T) {
	t.Parallel()

	s := NewReconcilerService(ReconcilerConfig{}, logging.NewNop())
	key := match.NewKey("KL", 2, 1)

	// The live ticker caught the score update but missed the goal row.
	live := livematch.Record{
		Key:          key,
		RunningScore: match.Score{Home: 1, Away: 1},
		Goals:        []livematch.GoalEvent{{Side: livematch.SideHome, Minute: 15}},
	}
	res := result.Record{Key: key, FinalScore: match.Score{Home: 1, Away: 1}}

	rec := s.Reconcile(context.Background(), live, res)

	fields := discrepancyFields(rec)
	if fields[reconciliation.FieldScore] != 0 {
		t.Fatalf("scores agree, yet got %+v", rec.Discrepancies)
	}
	if fields[reconciliation.FieldGoalCount] != 1 {
		t.Fatalf("want a goal_count discrepancy, got %+v", rec.Discrepancies)
	}
}

func TestReconcilerService_Reconcile_TeamNames(t *testing.T) {
	t.Parallel()

	s := NewReconcilerService(ReconcilerConfig{}, logging.NewNop())
	key := match.NewKey("IL", 1, 0)

	tests := []struct {
		name       string
		liveHome   string
		resultHome string
		wantFlag   bool
	}{
		{"identical", "Inter", "Inter", false},
		{"case and spacing differ", " inter ", "Inter", false},
		{"truncated rendering", "Inter Mil", "Inter Milan", false},
		{"different team", "Inter", "Juventus", true},
		{"short prefix is not a match", "In", "Inter", true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			live := livematch.Record{Key: key, HomeTeam: tc.liveHome, AwayTeam: "Roma"}
			res := result.Record{Key: key, HomeTeam: tc.resultHome, AwayTeam: "Roma"}

			rec := s.Reconcile(context.Background(), live, res)
			got := discrepancyFields(rec)[reconciliation.FieldHomeTeam] > 0
			if got != tc.wantFlag {
				t.Fatalf("home team flag = %v, want %v (%+v)", got, tc.wantFlag, rec.Discrepancies)
			}
		})
	}
}

func TestReconcilerService_Reconcile_GoalMinuteTolerance(t *testing.T) {
	t.Parallel()

	s := NewReconcilerService(ReconcilerConfig{GoalMinuteTolerance: 2}, logging.NewNop())
	key := match.NewKey("EL", 4, 1)

	live := livematch.Record{
		Key:          key,
		RunningScore: match.Score{Home: 3, Away: 0},
		Goals: []livematch.GoalEvent{
			{Side: livematch.SideHome, Minute: 92}, // inside 90+2
			{Side: livematch.SideHome, Minute: 95}, // outside
			{Side: livematch.SideHome, Minute: 0},  // never rendered
		},
	}
	res := result.Record{Key: key, FinalScore: match.Score{Home: 3, Away: 0}}

	rec := s.Reconcile(context.Background(), live, res)

	if got := discrepancyFields(rec)[reconciliation.FieldGoalMinute]; got != 2 {
		t.Fatalf("goal_minute discrepancies = %d, want 2 (%+v)", got, rec.Discrepancies)
	}
}

func TestReconcilerService_Reconcile_GoalCountComparesTotals(t *testing.T) {
	t.Parallel()

	s := NewReconcilerService(ReconcilerConfig{}, logging.NewNop())
	key := match.NewKey("KL", 5, 3)

	// The timeline puts the goal on the wrong side but the total matches
	// the final score, so only the score pair disagrees.
	live := livematch.Record{
		Key:          key,
		RunningScore: match.Score{Home: 1, Away: 0},
		Goals:        []livematch.GoalEvent{{Side: livematch.SideHome, Minute: 20}},
	}
	res := result.Record{Key: key, FinalScore: match.Score{Home: 0, Away: 1}}

	rec := s.Reconcile(context.Background(), live, res)

	fields := discrepancyFields(rec)
	if fields[reconciliation.FieldScore] != 1 {
		t.Fatalf("want one score discrepancy, got %+v", rec.Discrepancies)
	}
	if fields[reconciliation.FieldGoalCount] != 0 {
		t.Fatalf("matching totals must not flag goal_count, got %+v", rec.Discrepancies)
	}
}
