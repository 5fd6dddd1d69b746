package match

import "github.com/sells-group/namelink/internal/normalize"

// Lookup maps a normalized candidate name back to the first original name that
// produced it.
type Lookup struct {
	original map[string]string
	order    []string
}

// NewLookup normalizes every candidate once. Empty normalized names are skipped.
func NewLookup(candidates []string, namer normalize.Namer) *Lookup {
	l := &Lookup{original: make(map[string]string, len(candidates))}
	for _, raw := range candidates {
		norm := namer.Basic(raw)
		if norm == "" {
			continue
		}
		if _, ok := l.original[norm]; ok {
			continue
		}
		l.original[norm] = raw
		l.order = append(l.order, norm)
	}
	return l
}

// Original returns the first original name for norm.
func (l *Lookup) Original(norm string) (string, bool) {
	s, ok := l.original[norm]
	return s, ok
}

// Choices returns the unique normalized names in first-seen order.
func (l *Lookup) Choices() []string {
	return l.order
}
