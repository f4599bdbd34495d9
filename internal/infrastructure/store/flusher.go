package store

import (
	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
)

// Flusher pairs the in-memory store with the persister so workers can
// dump a league's current view to disk without holding either side.
type Flusher struct {
	store     *Store
	persister *Persister
}

func NewFlusher(store *Store, persister *Persister) *Flusher {
	return &Flusher{store: store, persister: persister}
}

// FlushLeague writes every entry of the league under the named kind.
func (f *Flusher) FlushLeague(leagueCode, kind string) (string, error) {
	return f.persister.WriteLeague(leagueCode, kind, f.store.LeagueEntries(leagueCode))
}

// WriteStandings records the snapshot in the league's in-memory series
// and persists it.
func (f *Flusher) WriteStandings(snap standings.Snapshot) (string, error) {
	f.store.AppendStandings(snap)
	return f.persister.WriteStandings(snap)
}
