package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/reconciliation"
	"github.com/virtuals-lab/leaguescout/internal/domain/result"
	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

const regulationMinutes = 90

// ReconcilerConfig tunes live-vs-results reconciliation.
type ReconcilerConfig struct {
	// GoalMinuteTolerance is the slack, in match minutes, allowed on goal
	// time markers before a goal_minute discrepancy is recorded. Purely
	// informational, never blocking.
	GoalMinuteTolerance int
}

// ReconcilerService merges the accumulated live view of a match with its
// authoritative results view. The results feed always wins on the final
// score; the live feed contributes the goal timeline. Disagreements are
// recorded, never resolved in favour of live data.
type ReconcilerService struct {
	cfg    ReconcilerConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewReconcilerService(cfg ReconcilerConfig, logger *logging.Logger) *ReconcilerService {
	if cfg.GoalMinuteTolerance <= 0 {
		cfg.GoalMinuteTolerance = 2
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReconcilerService{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile produces the single authoritative record for one match from
// its frozen live record and its result record.
func (s *ReconcilerService) Reconcile(ctx context.Context, live livematch.Record, res result.Record) reconciliation.Record {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReconcilerService.Reconcile")
	defer span.End()

	rec := reconciliation.Record{
		Key:          res.Key,
		FinalScore:   res.FinalScore,
		Goals:        append([]livematch.GoalEvent(nil), live.Goals...),
		ReconciledAt: s.now().UTC(),
	}

	if live.RunningScore != res.FinalScore {
		rec.Discrepancies = append(rec.Discrepancies, reconciliation.Discrepancy{
			Field:       reconciliation.FieldScore,
			LiveValue:   live.RunningScore.String(),
			ResultValue: res.FinalScore.String(),
		})
	}

	if counted := countGoals(live.Goals); counted.Total() != res.FinalScore.Total() {
		rec.Discrepancies = append(rec.Discrepancies, reconciliation.Discrepancy{
			Field:       reconciliation.FieldGoalCount,
			LiveValue:   strconv.Itoa(counted.Total()),
			ResultValue: strconv.Itoa(res.FinalScore.Total()),
		})
	}

	rec.Discrepancies = append(rec.Discrepancies, s.teamDiscrepancies(live, res)...)
	rec.Discrepancies = append(rec.Discrepancies, s.minuteDiscrepancies(live.Goals)...)

	if len(rec.Discrepancies) > 0 {
		s.logger.InfoContext(ctx, "reconciliation recorded discrepancies",
			"match_key", string(res.Key),
			"count", len(rec.Discrepancies),
		)
	}

	return rec
}

func countGoals(events []livematch.GoalEvent) match.Score {
	var score match.Score
	for _, event := range events {
		switch event.Side {
		case livematch.SideHome:
			score.Home++
		case livematch.SideAway:
			score.Away++
		}
	}
	return score
}

// teamDiscrepancies flags name differences between phases. Truncated
// display names shorter on one side are common and still reported, but a
// clean prefix match of at least three characters is considered the same
// team rendered differently and skipped.
func (s *ReconcilerService) teamDiscrepancies(live livematch.Record, res result.Record) []reconciliation.Discrepancy {
	var out []reconciliation.Discrepancy
	pairs := []struct {
		field      string
		liveName   string
		resultName string
	}{
		{reconciliation.FieldHomeTeam, live.HomeTeam, res.HomeTeam},
		{reconciliation.FieldAwayTeam, live.AwayTeam, res.AwayTeam},
	}

	for _, pair := range pairs {
		if pair.liveName == "" || pair.resultName == "" {
			continue
		}
		if sameTeamName(pair.liveName, pair.resultName) {
			continue
		}
		out = append(out, reconciliation.Discrepancy{
			Field:       pair.field,
			LiveValue:   pair.liveName,
			ResultValue: pair.resultName,
		})
	}
	return out
}

func sameTeamName(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return len(shorter) >= 3 && strings.HasPrefix(longer, shorter)
}

// minuteDiscrepancies flags goal markers outside the regulation window
// plus tolerance. The live board occasionally renders stale minutes.
func (s *ReconcilerService) minuteDiscrepancies(events []livematch.GoalEvent) []reconciliation.Discrepancy {
	limit := regulationMinutes + s.cfg.GoalMinuteTolerance
	var out []reconciliation.Discrepancy
	for _, event := range events {
		if event.Minute >= 1 && event.Minute <= limit {
			continue
		}
		out = append(out, reconciliation.Discrepancy{
			Field:       reconciliation.FieldGoalMinute,
			LiveValue:   fmt.Sprintf("%s@%d'", event.Side, event.Minute),
			ResultValue: fmt.Sprintf("within 1-%d'", limit),
		})
	}
	return out
}
