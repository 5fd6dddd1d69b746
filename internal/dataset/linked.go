package dataset

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/namelink/internal/match"
)

// Output columns appended to the query table by Link.
const (
	ColMatchNorm  = "match_norm"
	ColMatchScore = "match_score"
	ColMatchName  = "match_name"
)

// Link returns a copy of t with the match columns appended. results must be
// in row order, one per row. Unmatched rows get empty cells.
func Link(t *Table, results []match.Result) (*Table, error) {
	if len(results) != len(t.Rows) {
		return nil, eris.Errorf("dataset: %d results for %d rows", len(results), len(t.Rows))
	}

	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}

	out.AddColumn(ColMatchNorm, func(i int) any {
		if m := results[i].Match; m != nil {
			return m.Norm
		}
		return nil
	})
	out.AddColumn(ColMatchScore, func(i int) any {
		if m := results[i].Match; m != nil {
			return m.Score
		}
		return nil
	})
	out.AddColumn(ColMatchName, func(i int) any {
		if m := results[i].Match; m != nil {
			return m.Name
		}
		return nil
	})
	return out, nil
}
