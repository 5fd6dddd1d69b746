// Package store persists match, scrape and dedup runs with their result rows.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/namelink/internal/config"
	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/match"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunKind identifies what a run did.
type RunKind string

const (
	RunKindMatch  RunKind = "match"
	RunKindScrape RunKind = "scrape"
	RunKindDedup  RunKind = "dedup"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Summary holds the headline counts of a finished run.
type Summary struct {
	Queries    int          `json:"queries,omitempty" yaml:"queries,omitempty"`
	Candidates int          `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Matched    int          `json:"matched,omitempty" yaml:"matched,omitempty"`
	Dedup      *dedup.Stats `json:"dedup,omitempty" yaml:"dedup,omitempty"`
}

// Run is one recorded invocation.
type Run struct {
	ID        string            `json:"id" yaml:"id"`
	Kind      RunKind           `json:"kind" yaml:"kind"`
	Status    RunStatus         `json:"status" yaml:"status"`
	Params    map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Summary   *Summary          `json:"summary,omitempty" yaml:"summary,omitempty"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   RunKind   `json:"kind,omitempty"`
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind RunKind, params map[string]string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, summary Summary) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Result rows. Saving again for the same run replaces earlier rows.
	SaveMatches(ctx context.Context, runID string, results []match.Result) (int64, error)
	ListMatches(ctx context.Context, runID string) ([]match.Result, error)
	SaveListings(ctx context.Context, runID string, listings []dedup.Listing) (int64, error)
	ListListings(ctx context.Context, runID string) ([]dedup.Listing, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListRuns when the filter sets no limit.
const defaultListLimit = 100

// Open creates and migrates the store selected by cfg.Driver. The "none"
// driver returns a Noop store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverNone:
		return Noop{}, nil
	case config.DriverSQLite:
		st, err = NewSQLite(cfg.DatabaseURL)
	case config.DriverPostgres:
		st, err = NewPostgres(ctx, cfg.DatabaseURL, PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Noop discards writes and reports nothing stored.
type Noop struct{}

var _ Store = Noop{}

func (Noop) CreateRun(_ context.Context, kind RunKind, params map[string]string) (*Run, error) {
	now := time.Now().UTC()
	return &Run{Kind: kind, Status: RunStatusRunning, Params: params, CreatedAt: now, UpdatedAt: now}, nil
}
func (Noop) CompleteRun(context.Context, string, Summary) error { return nil }
func (Noop) FailRun(context.Context, string, error) error       { return nil }
func (Noop) GetRun(context.Context, string) (*Run, error)       { return nil, ErrNotFound }
func (Noop) ListRuns(context.Context, RunFilter) ([]Run, error) { return nil, nil }
func (Noop) SaveMatches(context.Context, string, []match.Result) (int64, error) {
	return 0, nil
}
func (Noop) ListMatches(context.Context, string) ([]match.Result, error) { return nil, nil }
func (Noop) SaveListings(context.Context, string, []dedup.Listing) (int64, error) {
	return 0, nil
}
func (Noop) ListListings(context.Context, string) ([]dedup.Listing, error) { return nil, nil }
func (Noop) Ping(context.Context) error                                    { return nil }
func (Noop) Migrate(context.Context) error                                 { return nil }
func (Noop) Close() error                                                  { return nil }

// matchRow flattens a result for storage. Unmatched rows carry NULL match
// columns.
func matchRow(runID string, pos int, r match.Result) []any {
	var norm, name, score any
	if r.Match != nil {
		norm, name, score = r.Match.Norm, r.Match.Name, r.Match.Score
	}
	return []any{runID, pos, r.Query, r.QueryNorm, norm, score, name}
}

var matchColumns = []string{"run_id", "position", "query", "query_norm", "match_norm", "match_score", "match_name"}

func listingRow(runID string, pos int, l dedup.Listing) []any {
	return []any{runID, pos, l.Name, l.Tagline, l.DetailURL, l.Category, l.Page, l.NameClean, l.NameCleanV2}
}

var listingColumns = []string{
	"run_id", "position", "startup_name", "tagline", "detail_url", "category",
	"list_page", "name_clean", "name_clean_v2",
}

// resultFromColumns rebuilds a match.Result from nullable columns.
func resultFromColumns(query, queryNorm string, norm, name *string, score *float64) match.Result {
	r := match.Result{Query: query, QueryNorm: queryNorm}
	if norm != nil && name != nil && score != nil {
		r.Match = &match.Candidate{Norm: *norm, Score: *score, Name: *name}
	}
	return r
}
