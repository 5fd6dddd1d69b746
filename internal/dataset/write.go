package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes t as comma-separated UTF-8 with a byte order mark so
// spreadsheet tools detect the encoding of accented names.
func WriteCSV(w io.Writer, t *Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return eris.Wrap(err, "dataset: write bom")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	if err := cw.WriteAll(t.StringRows()); err != nil {
		return eris.Wrap(err, "dataset: write rows")
	}
	return nil
}

// WriteJSON writes t as an array of objects whose keys follow column order.
func WriteJSON(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)

	keys := make([][]byte, len(t.Columns))
	for j, c := range t.Columns {
		k, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "dataset: encode column")
		}
		keys[j] = k
	}

	_ = bw.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			_ = bw.WriteByte(',')
		}
		_ = bw.WriteByte('{')
		for j := range t.Columns {
			if j > 0 {
				_ = bw.WriteByte(',')
			}
			var v any
			if j < len(row) {
				v = row[j]
			}
			val, err := json.Marshal(v)
			if err != nil {
				return eris.Wrapf(err, "dataset: encode row %d", i)
			}
			_, _ = bw.Write(keys[j])
			_ = bw.WriteByte(':')
			_, _ = bw.Write(val)
		}
		_ = bw.WriteByte('}')
	}
	_ = bw.WriteByte(']')

	return eris.Wrap(bw.Flush(), "dataset: flush json")
}
