package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/match"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))

	require.NoError(t, st.Close())
	assert.Error(t, st.Ping(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, RunKindMatch, map[string]string{"left": "startups.csv", "score_cutoff": "90"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunKindMatch, got.Kind)
	assert.Equal(t, "startups.csv", got.Params["left"])
	assert.Nil(t, got.Summary)

	require.NoError(t, st.CompleteRun(ctx, run.ID, Summary{Queries: 10, Candidates: 40, Matched: 3}))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.Matched)
	assert.Nil(t, got.Summary.Dedup)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, RunKindScrape, nil)
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, errors.New("blocked (captcha)")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "blocked (captcha)", got.Error)
	assert.Nil(t, got.Params)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.CompleteRun(ctx, "missing", Summary{})
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.FailRun(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m1, err := st.CreateRun(ctx, RunKindMatch, nil)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, RunKindMatch, nil)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, RunKindDedup, nil)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, m1.ID, Summary{}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matches, err := st.ListRuns(ctx, RunFilter{Kind: RunKindMatch})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	done, err := st.ListRuns(ctx, RunFilter{Kind: RunKindMatch, Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, m1.ID, done[0].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_Matches(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, RunKindMatch, nil)
	require.NoError(t, err)

	results := []match.Result{
		{Query: "Green Energy France", QueryNorm: "GREEN ENERGY FRANCE", Match: &match.Candidate{Norm: "GREEN ENERGY FRANCE", Score: 100, Name: "GREEN ENERGY FRANCE SAS"}},
		{Query: "", QueryNorm: ""},
		{Query: "Volta", QueryNorm: "VOLTA"},
	}

	n, err := st.SaveMatches(ctx, run.ID, results)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := st.ListMatches(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, results, got)

	// Saving again replaces rather than appends.
	_, err = st.SaveMatches(ctx, run.ID, results[:1])
	require.NoError(t, err)
	got, err = st.ListMatches(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLite_Listings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, RunKindScrape, map[string]string{"category": "energy-generation"})
	require.NoError(t, err)

	listings := []dedup.Listing{
		{Name: "S Tile", Tagline: "Roof tiles", DetailURL: "https://dir.example/companies/s-tile.html", Category: "Energy", Page: 1, NameClean: "S TILE", NameCleanV2: "STILE"},
		{Name: "Volta", Category: "Energy", Page: 2, NameClean: "VOLTA", NameCleanV2: "VOLTA"},
	}

	n, err := st.SaveListings(ctx, run.ID, listings)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := st.ListListings(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, listings, got)

	empty, err := st.ListListings(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
