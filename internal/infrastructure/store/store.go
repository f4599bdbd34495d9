package store

import (
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/virtuals-lab/leaguescout/internal/domain/livematch"
	"github.com/virtuals-lab/leaguescout/internal/domain/match"
	"github.com/virtuals-lab/leaguescout/internal/domain/reconciliation"
	"github.com/virtuals-lab/leaguescout/internal/domain/result"
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
)

const shardCount = 16

var (
	// ErrLiveFrozen rejects live writes after the results phase started
	// for that match.
	ErrLiveFrozen = errors.New("live record is frozen")
)

// Store is the single shared object between league workers: a keyed
// UPSERT store holding every view of every match. Writes merge field by
// field; append-only sequences deduplicate; nothing is ever deleted.
// Keys are sharded across independent locks, so concurrent writers to
// different matches never contend.
type Store struct {
	shards [shardCount]shard

	standingsMu sync.RWMutex
	standings   map[string][]standings.Snapshot
}

type shard struct {
	mu      sync.RWMutex
	entries map[match.Key]*entry
}

type entry struct {
	match      *match.Record
	live       *livematch.Record
	liveFrozen bool
	result     *result.Record
	reconciled *reconciliation.Record
}

// Entry is an immutable snapshot of everything known about one match.
type Entry struct {
	Key        match.Key
	Match      *match.Record
	Live       *livematch.Record
	Result     *result.Record
	Reconciled *reconciliation.Record
}

func New() *Store {
	s := &Store{
		standings: make(map[string][]standings.Snapshot),
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[match.Key]*entry)
	}
	return s
}

func (s *Store) shardFor(key match.Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// UpsertMatch merges the patch into the matchday record for key, creating
// it on first observation. Replaying an identical patch is a no-op apart
// from the update timestamp.
func (s *Store) UpsertMatch(key match.Key, patch match.Patch) match.Record {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.entry(key)
	if e.match == nil {
		e.match = &match.Record{
			Key:           key,
			LeagueCode:    patch.LeagueCode,
			FixtureIndex:  patch.FixtureIndex,
			MatchDay:      patch.MatchDay,
			MarketOdds:    make(map[string]float64),
			PhaseObserved: patch.PhaseObserved,
			FirstSeenAt:   patch.ObservedAt,
		}
	}

	rec := e.match
	if patch.HomeTeam != "" {
		rec.HomeTeam = patch.HomeTeam
	}
	if patch.AwayTeam != "" {
		rec.AwayTeam = patch.AwayTeam
	}
	for name, value := range patch.MarketOdds {
		rec.MarketOdds[name] = value
	}
	if patch.TimerSnapshot != "" {
		rec.TimerSnapshot = patch.TimerSnapshot
	}
	if patch.PhaseObserved != "" {
		rec.PhaseObserved = patch.PhaseObserved
	}
	if !patch.ObservedAt.IsZero() {
		rec.UpdatedAt = patch.ObservedAt
	}

	return rec.Clone()
}

// UpsertLive merges the patch into the live record for key. It fails
// with ErrLiveFrozen once FreezeLive has been called for the key.
func (s *Store) UpsertLive(key match.Key, patch livematch.Patch) (livematch.Record, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.entry(key)
	if e.liveFrozen {
		return livematch.Record{}, ErrLiveFrozen
	}
	if e.live == nil {
		e.live = &livematch.Record{Key: key}
	}

	rec := e.live
	if patch.HomeTeam != "" {
		rec.HomeTeam = patch.HomeTeam
	}
	if patch.AwayTeam != "" {
		rec.AwayTeam = patch.AwayTeam
	}
	if patch.Score != nil {
		rec.RunningScore = *patch.Score
	}
	rec.Goals = livematch.MergeGoals(rec.Goals, patch.Goals)
	if patch.HalfTimeScore != nil && rec.HalfTimeScore == nil {
		ht := *patch.HalfTimeScore
		rec.HalfTimeScore = &ht
	}
	if !patch.ObservedAt.IsZero() {
		rec.LastObservedAt = patch.ObservedAt
	}

	return rec.Clone(), nil
}

// FreezeLive marks every live record of the league immutable; called at
// the results-phase boundary.
func (s *Store) FreezeLive(leagueCode string) {
	prefix := leagueCode + "-"
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if strings.HasPrefix(string(key), prefix) {
				e.liveFrozen = true
			}
		}
		sh.mu.Unlock()
	}
}

// PutResult stores the authoritative result for key exactly once. The
// first write wins; later writes report created=false and leave the
// stored record untouched.
func (s *Store) PutResult(key match.Key, rec result.Record) (result.Record, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.entry(key)
	if e.result != nil {
		return *e.result, false
	}
	rec.Key = key
	e.result = &rec
	return rec, true
}

// PutReconciled stores the reconciled record for key exactly once.
func (s *Store) PutReconciled(key match.Key, rec reconciliation.Record) (reconciliation.Record, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.entry(key)
	if e.reconciled != nil {
		return e.reconciled.Clone(), false
	}
	rec.Key = key
	stored := rec.Clone()
	e.reconciled = &stored
	return rec, true
}

// LiveRecord returns a copy of the live record for key, if one exists.
func (s *Store) LiveRecord(key match.Key) (livematch.Record, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key]
	if !ok || e.live == nil {
		return livematch.Record{}, false
	}
	return e.live.Clone(), true
}

// Snapshot returns deep copies of everything known about key, safe for
// read-only use while writers keep running.
func (s *Store) Snapshot(key match.Key) (Entry, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(key), true
}

// LeagueEntries returns snapshots of every match of one league, ordered
// by key.
func (s *Store) LeagueEntries(leagueCode string) []Entry {
	prefix := leagueCode + "-"
	var out []Entry
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key, e := range sh.entries {
			if strings.HasPrefix(string(key), prefix) {
				out = append(out, e.snapshot(key))
			}
		}
		sh.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ReconciledRecords returns every reconciled record in the store.
func (s *Store) ReconciledRecords() []reconciliation.Record {
	var out []reconciliation.Record
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.entries {
			if e.reconciled != nil {
				out = append(out, e.reconciled.Clone())
			}
		}
		sh.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AppendStandings adds one snapshot to the league's append-only series.
func (s *Store) AppendStandings(snap standings.Snapshot) {
	s.standingsMu.Lock()
	defer s.standingsMu.Unlock()
	s.standings[snap.LeagueCode] = append(s.standings[snap.LeagueCode], snap.Clone())
}

// StandingsSeries returns copies of the league's captured snapshots in
// capture order.
func (s *Store) StandingsSeries(leagueCode string) []standings.Snapshot {
	s.standingsMu.RLock()
	defer s.standingsMu.RUnlock()

	series := s.standings[leagueCode]
	out := make([]standings.Snapshot, 0, len(series))
	for _, snap := range series {
		out = append(out, snap.Clone())
	}
	return out
}

func (sh *shard) entry(key match.Key) *entry {
	e, ok := sh.entries[key]
	if !ok {
		e = &entry{}
		sh.entries[key] = e
	}
	return e
}

func (e *entry) snapshot(key match.Key) Entry {
	out := Entry{Key: key}
	if e.match != nil {
		rec := e.match.Clone()
		out.Match = &rec
	}
	if e.live != nil {
		rec := e.live.Clone()
		out.Live = &rec
	}
	if e.result != nil {
		rec := *e.result
		out.Result = &rec
	}
	if e.reconciled != nil {
		rec := e.reconciled.Clone()
		out.Reconciled = &rec
	}
	return out
}
