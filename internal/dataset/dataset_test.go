package dataset

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/fetcher"
	"github.com/sells-group/namelink/internal/match"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func localOpener() *fetcher.Opener { return fetcher.NewOpener(nil, nil) }

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "startups.csv", "\xEF\xBB\xBFstartup_name;city\nSociété Générale SA;Paris\n")

	tbl, err := Load(context.Background(), localOpener(), path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"startup_name", "city"}, tbl.Columns)
	assert.Equal(t, 1, tbl.Len())

	names, err := tbl.Names("startup_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Société Générale SA"}, names)
}

func TestLoad_JSONNonStringNames(t *testing.T) {
	path := writeFile(t, "inpi.json", `[{"company_name": "Acme"}, {"company_name": null}, {"company_name": 12}]`)

	tbl, err := Load(context.Background(), localOpener(), path, t.TempDir())
	require.NoError(t, err)

	names, err := tbl.Names("company_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "", ""}, names)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inpi.xlsx")
	require.NoError(t, fetcher.WriteXLSX(path, "Sheet1", []string{"company_name"}, [][]string{{"Air Liquide"}}))

	tbl, err := Load(context.Background(), localOpener(), path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []any{"Air Liquide"}, tbl.Rows[0])
}

func TestLoad_RemoteCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("company_name\nTotal\n"))
	}))
	defer srv.Close()

	o := fetcher.NewOpener(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), nil)
	tbl, err := Load(context.Background(), o, srv.URL+"/inpi.csv", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestLoad_Unsupported(t *testing.T) {
	_, err := Load(context.Background(), localOpener(), "data.parquet", t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestTable_ColumnMissing(t *testing.T) {
	tbl := FromStrings([]string{"a", "b"}, nil)
	_, err := tbl.Column("startup_name")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"startup_name" not found`)
	assert.Contains(t, err.Error(), "a, b")
}

func TestTable_CellShortRow(t *testing.T) {
	tbl := &Table{Columns: []string{"a", "b"}, Rows: [][]any{{"x"}}}
	assert.Nil(t, tbl.Cell(0, 1))
	assert.Equal(t, [][]string{{"x", ""}}, tbl.StringRows())
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "abc", FormatCell("abc"))
	assert.Equal(t, "93.5", FormatCell(93.5))
	assert.Equal(t, "100", FormatCell(float64(100)))
	assert.Equal(t, "7", FormatCell(7))
	assert.Equal(t, "true", FormatCell(true))
}

func TestLink(t *testing.T) {
	tbl := FromStrings([]string{"startup_name"}, [][]string{{"Green Energy"}, {"Nothing"}})
	results := []match.Result{
		{Query: "Green Energy", QueryNorm: "GREEN ENERGY", Match: &match.Candidate{Norm: "GREEN ENERGY", Score: 100, Name: "Green Energy SAS"}},
		{Query: "Nothing", QueryNorm: "NOTHING"},
	}

	linked, err := Link(tbl, results)
	require.NoError(t, err)
	assert.Equal(t, []string{"startup_name", ColMatchNorm, ColMatchScore, ColMatchName}, linked.Columns)
	assert.Equal(t, []any{"Green Energy", "GREEN ENERGY", float64(100), "Green Energy SAS"}, linked.Rows[0])
	assert.Equal(t, []any{"Nothing", nil, nil, nil}, linked.Rows[1])

	// Input untouched.
	assert.Equal(t, []string{"startup_name"}, tbl.Columns)
	assert.Len(t, tbl.Rows[0], 1)
}

func TestLink_LengthMismatch(t *testing.T) {
	tbl := FromStrings([]string{"startup_name"}, [][]string{{"a"}})
	_, err := Link(tbl, nil)
	assert.Error(t, err)
}

func TestLink_OverwritesExistingColumn(t *testing.T) {
	tbl := FromStrings([]string{"startup_name", ColMatchName}, [][]string{{"a", "stale"}})
	linked, err := Link(tbl, []match.Result{{Query: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"startup_name", ColMatchName, ColMatchNorm, ColMatchScore}, linked.Columns)
	assert.Nil(t, linked.Rows[0][1])
}

func TestWriteCSV_BOMAndEmptyCells(t *testing.T) {
	tbl := &Table{
		Columns: []string{"startup_name", ColMatchScore},
		Rows:    [][]any{{"Société", 92.5}, {"Autre", nil}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "\xEF\xBB\xBFstartup_name,match_score\nSociété,92.5\nAutre,\n", buf.String())
}

func TestWriteJSON_ColumnOrder(t *testing.T) {
	tbl := &Table{
		Columns: []string{"z", "a"},
		Rows:    [][]any{{"1", nil}, {"2"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, tbl))
	assert.Equal(t, `[{"z":"1","a":null},{"z":"2","a":null}]`, buf.String())
}

func TestSave_RoundTripCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	tbl := FromStrings([]string{"a"}, [][]string{{"Straße"}})
	require.NoError(t, Save(tbl, path))

	back, err := Load(context.Background(), localOpener(), path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows, back.Rows)
}

func TestListings_FromTable(t *testing.T) {
	tbl := FromStrings(
		[]string{ColStartupName, ColListPage, ColDetailURL, ColNameCleanV2},
		[][]string{{"Acme SAS", "2", "/companies/acme.html", "stale"}},
	)

	listings, err := Listings(tbl)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, dedup.Listing{Name: "Acme SAS", Page: 2, DetailURL: "/companies/acme.html"}, listings[0])
}

func TestListings_JSONPage(t *testing.T) {
	tbl := &Table{Columns: []string{ColStartupName, ColListPage}, Rows: [][]any{{"A", float64(4)}}}
	listings, err := Listings(tbl)
	require.NoError(t, err)
	assert.Equal(t, 4, listings[0].Page)
}

func TestListings_BadPage(t *testing.T) {
	tbl := FromStrings([]string{ColStartupName, ColListPage}, [][]string{{"A", "first"}})
	_, err := Listings(tbl)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int
		wantErr bool
	}{
		{"int", 3, 3, false},
		{"integral float", float64(2), 2, false},
		{"fractional float", 1.9, 0, true},
		{"string", " 7 ", 7, false},
		{"spreadsheet float string", "2.0", 2, false},
		{"fractional string", "2.5", 0, true},
		{"word", "first", 0, true},
		{"nil", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePage(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListings_FractionalJSONPageRejected(t *testing.T) {
	tbl := &Table{Columns: []string{ColStartupName, ColListPage}, Rows: [][]any{{"A", 1.9}}}
	_, err := Listings(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")
}

func TestListings_MissingRequired(t *testing.T) {
	_, err := Listings(FromStrings([]string{ColStartupName}, nil))
	assert.Error(t, err)
}

func TestListingsTable(t *testing.T) {
	tbl := ListingsTable([]dedup.Listing{{Name: "Acme", Page: 1, NameClean: "ACME", NameCleanV2: "ACME"}})
	assert.Equal(t, ListingColumns, tbl.Columns)
	assert.Equal(t, []string{"Acme", "", "", "", "1", "ACME", "ACME"}, tbl.StringRows()[0])
}
