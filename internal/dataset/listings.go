package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/namelink/internal/dedup"
)

// Listing table columns, in output order.
const (
	ColStartupName = "startup_name"
	ColTagline     = "tagline"
	ColDetailURL   = "detail_url"
	ColCategory    = "category"
	ColListPage    = "list_page"
	ColNameClean   = "name_clean"
	ColNameCleanV2 = "name_clean_v2"
)

// ListingColumns is the column order of a listings table.
var ListingColumns = []string{
	ColStartupName, ColTagline, ColDetailURL, ColCategory,
	ColListPage, ColNameClean, ColNameCleanV2,
}

// ListingsTable renders listings as a table.
func ListingsTable(listings []dedup.Listing) *Table {
	t := &Table{Columns: append([]string(nil), ListingColumns...), Rows: make([][]any, len(listings))}
	for i, l := range listings {
		t.Rows[i] = []any{
			l.Name, l.Tagline, l.DetailURL, l.Category,
			l.Page, l.NameClean, l.NameCleanV2,
		}
	}
	return t
}

// Listings reads listings back from a table. startup_name and list_page are
// required; the other columns are optional. Normalized columns are not
// trusted and are left empty for the caller to recompute.
func Listings(t *Table) ([]dedup.Listing, error) {
	nameCol, err := t.Column(ColStartupName)
	if err != nil {
		return nil, err
	}
	pageCol, err := t.Column(ColListPage)
	if err != nil {
		return nil, err
	}
	optional := func(name string) int {
		col, err := t.Column(name)
		if err != nil {
			return -1
		}
		return col
	}
	taglineCol := optional(ColTagline)
	urlCol := optional(ColDetailURL)
	categoryCol := optional(ColCategory)

	text := func(i, col int) string {
		if col < 0 {
			return ""
		}
		if s, ok := t.Cell(i, col).(string); ok {
			return s
		}
		return ""
	}

	out := make([]dedup.Listing, len(t.Rows))
	for i := range t.Rows {
		page, err := parsePage(t.Cell(i, pageCol))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: row %d", i+1)
		}
		out[i] = dedup.Listing{
			Name:      text(i, nameCol),
			Tagline:   text(i, taglineCol),
			DetailURL: text(i, urlCol),
			Category:  text(i, categoryCol),
			Page:      page,
		}
	}
	return out, nil
}

// parsePage accepts integers and integral floats ("2", "2.0", 2.0). Fractional
// or non-finite values are rejected rather than truncated.
func parsePage(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		return integralPage(x, v)
	case string:
		trimmed := strings.TrimSpace(x)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, eris.Errorf("invalid %s %q", ColListPage, x)
		}
		return integralPage(f, v)
	default:
		return 0, eris.Errorf("invalid %s %v", ColListPage, v)
	}
}

func integralPage(f float64, raw any) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f > math.MaxInt32 || f < math.MinInt32 {
		return 0, eris.Errorf("invalid %s %v: not an integer", ColListPage, raw)
	}
	return int(f), nil
}
