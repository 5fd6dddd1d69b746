package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// ReadJSONRecords decodes a JSON array of objects. Columns are returned in
// first-seen key order across all records. Values keep their JSON types
// (string, float64, bool, nil, or nested any).
func ReadJSONRecords(r io.Reader) (columns []string, records []map[string]any, err error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, nil, eris.Errorf("json: expected array, got %v", tok)
	}

	seen := make(map[string]bool)
	for dec.More() {
		rec, keys, err := decodeObject(dec)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "json: record %d", len(records))
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		records = append(records, rec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, eris.Wrap(err, "json: read closing token")
	}
	return columns, records, nil
}

// decodeObject reads one object, returning its values and key order.
func decodeObject(dec *json.Decoder) (map[string]any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, eris.Errorf("expected object, got %v", tok)
	}

	rec := make(map[string]any)
	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, nil, eris.Errorf("expected key, got %v", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, eris.Wrapf(err, "value for %q", key)
		}
		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = v
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return rec, keys, nil
}
