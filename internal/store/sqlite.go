package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/match"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     TEXT,
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_matches (
	run_id      TEXT NOT NULL,
	position    INTEGER NOT NULL,
	query       TEXT NOT NULL,
	query_norm  TEXT NOT NULL,
	match_norm  TEXT,
	match_score REAL,
	match_name  TEXT,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS run_listings (
	run_id        TEXT NOT NULL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks that the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind RunKind, params map[string]string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(kind), string(RunStatusRunning), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		msg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveMatches(ctx context.Context, runID string, results []match.Result) (int64, error) {
	rows := make([][]any, len(results))
	for i, r := range results {
		rows[i] = matchRow(runID, i, r)
	}
	n, err := s.replaceRows(ctx, "run_matches", matchColumns, runID, rows)
	return n, eris.Wrap(err, "sqlite: save matches")
}

func (s *SQLiteStore) ListMatches(ctx context.Context, runID string) ([]match.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, query_norm, match_norm, match_name, match_score FROM run_matches WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
	}
	defer rows.Close() //nolint:errcheck

	var out []match.Result
	for rows.Next() {
		var (
			query, queryNorm string
			norm, name       sql.NullString
			score            sql.NullFloat64
		)
		if err := rows.Scan(&query, &queryNorm, &norm, &name, &score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		out = append(out, resultFromColumns(query, queryNorm, nullString(norm), nullString(name), nullFloat(score)))
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list matches iterate")
}

func (s *SQLiteStore) SaveListings(ctx context.Context, runID string, listings []dedup.Listing) (int64, error) {
	rows := make([][]any, len(listings))
	for i, l := range listings {
		rows[i] = listingRow(runID, i, l)
	}
	n, err := s.replaceRows(ctx, "run_listings", listingColumns, runID, rows)
	return n, eris.Wrap(err, "sqlite: save listings")
}

func (s *SQLiteStore) ListListings(ctx context.Context, runID string) ([]dedup.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT startup_name, tagline, detail_url, category, list_page, name_clean, name_clean_v2
		 FROM run_listings WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close() //nolint:errcheck

	var out []dedup.Listing
	for rows.Next() {
		var l dedup.Listing
		if err := rows.Scan(&l.Name, &l.Tagline, &l.DetailURL, &l.Category, &l.Page, &l.NameClean, &l.NameCleanV2); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

// replaceRows swaps a run's rows in table within one transaction using a
// prepared insert.
func (s *SQLiteStore) replaceRows(ctx context.Context, table string, columns []string, runID string, rows [][]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
		return 0, eris.Wrapf(err, "delete %s", table)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns))
		if err != nil {
			return 0, eris.Wrapf(err, "prepare insert %s", table)
		}
		defer stmt.Close() //nolint:errcheck

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return 0, eris.Wrapf(err, "insert %s row %d", table, i)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "commit")
	}
	return int64(len(rows)), nil
}

func insertSQL(table string, columns []string) string {
	q := `INSERT INTO ` + table + ` (`
	for i, c := range columns {
		if i > 0 {
			q += `, `
		}
		q += c
	}
	q += `) VALUES (`
	for i := range columns {
		if i > 0 {
			q += `, `
		}
		q += `?`
	}
	return q + `)`
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var (
		r           Run
		paramsJSON  sql.NullString
		summaryJSON sql.NullString
	)

	err := row.Scan(&r.ID, &r.Kind, &r.Status, &paramsJSON, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}

	if err := decodeRunJSON(&r, []byte(paramsJSON.String), []byte(summaryJSON.String)); err != nil {
		return nil, err
	}
	return &r, nil
}

// decodeRunJSON fills Params and Summary from their stored JSON. Empty and
// "null" documents leave the field nil.
func decodeRunJSON(r *Run, params, summary []byte) error {
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return eris.Wrap(err, "unmarshal params")
		}
	}
	if len(summary) > 0 && string(summary) != "null" {
		r.Summary = &Summary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return eris.Wrap(err, "unmarshal summary")
		}
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}
