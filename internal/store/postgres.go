package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/namelink/internal/db"
	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/match"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	applyPoolConfig(pgxCfg, poolCfg)

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// applyPoolConfig sizes the pool. Unset values fall back to 10 max and 1 min.
func applyPoolConfig(pgxCfg *pgxpool.Config, poolCfg PoolConfig) {
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg.MaxConns > 0 {
		pgxCfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		pgxCfg.MinConns = min(poolCfg.MinConns, pgxCfg.MaxConns)
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB,
	summary    JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_matches (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	query       TEXT NOT NULL,
	query_norm  TEXT NOT NULL,
	match_norm  TEXT,
	match_score DOUBLE PRECISION,
	match_name  TEXT,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS run_listings (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	startup_name  TEXT NOT NULL,
	tagline       TEXT NOT NULL,
	detail_url    TEXT NOT NULL,
	category      TEXT NOT NULL,
	list_page     INTEGER NOT NULL,
	name_clean    TEXT NOT NULL,
	name_clean_v2 TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_listings_v2 ON run_listings(name_clean_v2);
`

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind RunKind, params map[string]string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(kind), string(RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Kind:      kind,
		Status:    RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		msg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveMatches(ctx context.Context, runID string, results []match.Result) (int64, error) {
	rows := make([][]any, len(results))
	for i, r := range results {
		rows[i] = matchRow(runID, i, r)
	}
	n, err := db.ReplaceRows(ctx, s.pool, "run_matches", "run_id", runID, matchColumns, rows)
	return n, eris.Wrap(err, "postgres: save matches")
}

func (s *PostgresStore) ListMatches(ctx context.Context, runID string) ([]match.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT query, query_norm, match_norm, match_name, match_score FROM run_matches WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var out []match.Result
	for rows.Next() {
		var (
			query, queryNorm string
			norm, name       *string
			score            *float64
		)
		if err := rows.Scan(&query, &queryNorm, &norm, &name, &score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		out = append(out, resultFromColumns(query, queryNorm, norm, name, score))
	}
	return out, eris.Wrap(rows.Err(), "postgres: list matches iterate")
}

func (s *PostgresStore) SaveListings(ctx context.Context, runID string, listings []dedup.Listing) (int64, error) {
	rows := make([][]any, len(listings))
	for i, l := range listings {
		rows[i] = listingRow(runID, i, l)
	}
	n, err := db.ReplaceRows(ctx, s.pool, "run_listings", "run_id", runID, listingColumns, rows)
	return n, eris.Wrap(err, "postgres: save listings")
}

func (s *PostgresStore) ListListings(ctx context.Context, runID string) ([]dedup.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT startup_name, tagline, detail_url, category, list_page, name_clean, name_clean_v2
		 FROM run_listings WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var out []dedup.Listing
	for rows.Next() {
		var l dedup.Listing
		if err := rows.Scan(&l.Name, &l.Tagline, &l.DetailURL, &l.Category, &l.Page, &l.NameClean, &l.NameCleanV2); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func scanPgRun(row pgx.Row) (*Run, error) {
	var (
		r                   Run
		kind, status        string
		paramsJSON, sumJSON []byte
	)
	if err := row.Scan(&r.ID, &kind, &status, &paramsJSON, &sumJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Kind = RunKind(kind)
	r.Status = RunStatus(status)
	if err := decodeRunJSON(&r, paramsJSON, sumJSON); err != nil {
		return nil, err
	}
	return &r, nil
}
