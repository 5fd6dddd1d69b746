package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/match"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(
		pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumns = []string{"id", "kind", "status", "params", "summary", "error", "created_at", "updated_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: ping")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPoolConfig(t *testing.T) {
	tests := []struct {
		name    string
		in      PoolConfig
		wantMax int32
		wantMin int32
	}{
		{"defaults", PoolConfig{}, 10, 1},
		{"configured", PoolConfig{MaxConns: 20, MinConns: 4}, 20, 4},
		{"min capped at max", PoolConfig{MaxConns: 2, MinConns: 5}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgxCfg, err := pgxpool.ParseConfig("postgres://namelink@localhost:5432/namelink")
			require.NoError(t, err)

			applyPoolConfig(pgxCfg, tt.in)
			assert.Equal(t, tt.wantMax, pgxCfg.MaxConns)
			assert.Equal(t, tt.wantMin, pgxCfg.MinConns)
			assert.Equal(t, 30*time.Minute, pgxCfg.MaxConnLifetime)
		})
	}
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs \(id, kind, status, params, created_at, updated_at\)`).
		WithArgs(pgxmock.AnyArg(), "match", "running", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), RunKindMatch, map[string]string{"left": "a.csv"})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET summary = \$1`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", Summary{Matched: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET error = \$1`).
		WithArgs("boom", "failed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", errors.New("boom")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "dedup", "complete", []byte(`{"in":"raw.csv"}`),
				[]byte(`{"dedup":{"raw":10,"unique":7,"dropped":3,"remaining_duplicates":0}}`), "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunKindDedup, run.Kind)
	assert.Equal(t, RunStatusComplete, run.Status)
	assert.Equal(t, "raw.csv", run.Params["in"])
	require.NotNil(t, run.Summary)
	assert.Equal(t, &dedup.Stats{Raw: 10, Unique: 7, Dropped: 3}, run.Summary.Dedup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, kind, status, params, summary, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE true AND kind = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("match", "complete", 5, 10).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "match", "complete", []byte(`null`), []byte(`{"queries":2,"matched":1}`), "", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Kind: RunKindMatch, Status: RunStatusComplete, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Params)
	assert.Equal(t, 1, runs[0].Summary.Matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE true ORDER BY created_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveMatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "run_matches" WHERE "run_id" = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"run_matches"}, matchColumns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := s.SaveMatches(context.Background(), "run-1", []match.Result{
		{Query: "Acme", QueryNorm: "ACME", Match: &match.Candidate{Norm: "ACME", Score: 100, Name: "ACME SA"}},
		{Query: "Zeta", QueryNorm: "ZETA"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveListings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "run_listings"`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"run_listings"}, listingColumns).WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.SaveListings(context.Background(), "run-1", []dedup.Listing{{Name: "Acme", Page: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	norm, name, score := "ACME", "ACME SA", 100.0
	mock.ExpectQuery(`SELECT query, query_norm, match_norm, match_name, match_score FROM run_matches`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"query", "query_norm", "match_norm", "match_name", "match_score"}).
			AddRow("Acme", "ACME", &norm, &name, &score))

	got, err := s.ListMatches(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Matched())
	assert.Equal(t, "ACME SA", got[0].Match.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListListings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM run_listings WHERE run_id = \$1 ORDER BY position`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"startup_name", "tagline", "detail_url", "category", "list_page", "name_clean", "name_clean_v2"}).
			AddRow("S Tile", "Roof tiles", "https://dir.example/s", "Energy", 3, "S TILE", "STILE"))

	got, err := s.ListListings(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []dedup.Listing{{
		Name: "S Tile", Tagline: "Roof tiles", DetailURL: "https://dir.example/s",
		Category: "Energy", Page: 3, NameClean: "S TILE", NameCleanV2: "STILE",
	}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
