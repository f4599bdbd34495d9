package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/virtuals-lab/leaguescout/internal/domain/standings"
	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
)

// Artifact kinds written to disk. Each kind gets its own monotonic
// sequence per league so files sort in capture order.
const (
	KindMatchday  = "matchday"
	KindLive      = "live"
	KindResults   = "results"
	KindStandings = "standings"
)

// Persister writes league snapshots as JSON files under one directory
// per league. Every write goes to a temporary file first and is renamed
// into place, so readers never observe a partial document.
type Persister struct {
	baseDir string

	mu   sync.Mutex
	seqs map[string]int

	now func() time.Time
}

func NewPersister(baseDir string) *Persister {
	return &Persister{
		baseDir: baseDir,
		seqs:    make(map[string]int),
		now:     time.Now,
	}
}

// matchdayDocument and friends fix the on-disk shape independently of
// the in-memory domain structs.
type matchdayDocument struct {
	LeagueCode string  `json:"league_code"`
	CapturedAt string  `json:"captured_at"`
	Matches    []Entry `json:"matches"`
}

type standingsDocument struct {
	LeagueCode string          `json:"league_code"`
	CapturedAt string          `json:"captured_at"`
	Table      []standings.Row `json:"table"`
}

type runSummaryDocument struct {
	RunID      string               `json:"run_id"`
	StartedAt  string               `json:"started_at"`
	FinishedAt string               `json:"finished_at"`
	Reports    []workflow.RunReport `json:"reports"`
}

// WriteLeague persists the given entries of one league under the named
// kind and returns the path written.
func (p *Persister) WriteLeague(leagueCode, kind string, entries []Entry) (string, error) {
	doc := matchdayDocument{
		LeagueCode: leagueCode,
		CapturedAt: p.now().UTC().Format(time.RFC3339),
		Matches:    entries,
	}
	return p.write(leagueCode, kind, doc)
}

// WriteStandings persists one standings snapshot.
func (p *Persister) WriteStandings(snap standings.Snapshot) (string, error) {
	doc := standingsDocument{
		LeagueCode: snap.LeagueCode,
		CapturedAt: snap.CapturedAt.UTC().Format(time.RFC3339),
		Table:      snap.Table,
	}
	return p.write(snap.LeagueCode, KindStandings, doc)
}

// WriteRunSummary persists the aggregate report of one orchestrator run
// at the base directory root.
func (p *Persister) WriteRunSummary(runID string, startedAt, finishedAt time.Time, reports []workflow.RunReport) (string, error) {
	doc := runSummaryDocument{
		RunID:      runID,
		StartedAt:  startedAt.UTC().Format(time.RFC3339),
		FinishedAt: finishedAt.UTC().Format(time.RFC3339),
		Reports:    reports,
	}

	if err := os.MkdirAll(p.baseDir, 0o755); err != nil {
		return "", crerr.Wrap(err, "create output directory")
	}
	name := fmt.Sprintf("run_summary_%s.json", p.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(p.baseDir, name)
	if err := p.writeAtomic(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Persister) write(leagueCode, kind string, doc any) (string, error) {
	dir := filepath.Join(p.baseDir, leagueCode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", crerr.Wrapf(err, "create league directory %s", leagueCode)
	}

	p.mu.Lock()
	seqKey := leagueCode + "/" + kind
	p.seqs[seqKey]++
	seq := p.seqs[seqKey]
	p.mu.Unlock()

	name := fmt.Sprintf("%s_%s_%03d_%s.json",
		leagueCode, kind, seq, p.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := p.writeAtomic(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Persister) writeAtomic(path string, doc any) error {
	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return crerr.Wrap(err, "marshal snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return crerr.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return crerr.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return crerr.Wrapf(err, "close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return crerr.Wrapf(err, "rename into %s", path)
	}
	return nil
}
