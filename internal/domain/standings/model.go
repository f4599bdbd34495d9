package standings

import "time"

// Row is one league table entry at capture time.
type Row struct {
	Position int    `json:"position"`
	Team     string `json:"team"`
	Played   int    `json:"played"`
	Won      int    `json:"won"`
	Drawn    int    `json:"drawn"`
	Lost     int    `json:"lost"`
	Points   int    `json:"points"`
	Form     string `json:"form"`
}

// Snapshot is a full league table captured after every Nth completed
// match. Snapshots form an append-only series per league.
type Snapshot struct {
	LeagueCode string    `json:"league_code"`
	CapturedAt time.Time `json:"captured_at"`
	Table      []Row     `json:"table"`
}

func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Table != nil {
		out.Table = make([]Row, len(s.Table))
		copy(out.Table, s.Table)
	}
	return out
}
