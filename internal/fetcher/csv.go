package fetcher

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	// Delimiter is the field separator. Zero sniffs ',', ';' or tab from the
	// first line.
	Delimiter  rune
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV reads a headed CSV stream. A leading UTF-8 byte order mark is
// dropped. Rows shorter than the header are padded with empty cells.
func ReadCSV(r io.Reader, opts CSVOptions) (header []string, rows [][]string, err error) {
	br := bufio.NewReader(r)
	if peek, _ := br.Peek(len(utf8BOM)); bytes.Equal(peek, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, eris.Wrap(readErr, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if header == nil {
			header = record
			continue
		}
		if len(record) < len(header) {
			record = append(record, make([]string, len(header)-len(record))...)
		}
		rows = append(rows, record)
	}

	if header == nil {
		return nil, nil, eris.New("csv: empty input, no header row")
	}
	return header, rows, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first
// line, outside quotes. Defaults to ','.
func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(line) {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case c == ',' || c == ';' || c == '\t':
			counts[c]++
		}
	}

	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}
