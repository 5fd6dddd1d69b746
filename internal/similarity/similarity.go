// Package similarity scores pairs of normalized names on a 0-100 scale.
package similarity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"
	lev "github.com/texttheater/golang-levenshtein/levenshtein"
	"github.com/xrash/smetrics"
)

// Scorer compares two space-separated token strings. Implementations return a
// score in [0, 100] and must not depend on token order.
type Scorer interface {
	Score(a, b string) float64
}

// Ratio scores two plain strings in [0, 100].
type Ratio func(a, b string) float64

// Scorer names accepted by ByName.
const (
	NameTokenSet            = "token_set"
	NameTokenSetLevenshtein = "token_set_levenshtein"
	NameTokenSetJaroWinkler = "token_set_jaro_winkler"
)

// TokenSet compares the token sets of two strings. Tokens are deduplicated and
// sorted, then split into the intersection and the two differences:
//
//	sect = intersection, t1 = sect + diff(a,b), t2 = sect + diff(b,a)
//
// The score is the best of Ratio(sect, t1), Ratio(sect, t2) and Ratio(t1, t2).
// A non-empty intersection with an empty difference on either side scores 100.
type TokenSet struct {
	Ratio Ratio
}

// NewTokenSet returns the default token-set scorer backed by IndelRatio.
func NewTokenSet() TokenSet {
	return TokenSet{Ratio: IndelRatio}
}

// Score implements Scorer.
func (s TokenSet) Score(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, diffAB, diffBA []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			sect = append(sect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			diffBA = append(diffBA, t)
		}
	}
	sort.Strings(sect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	if len(sect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	ratio := s.Ratio
	if ratio == nil {
		ratio = IndelRatio
	}

	sectJoined := strings.Join(sect, " ")
	t1 := joinNonEmpty(sectJoined, strings.Join(diffAB, " "))
	t2 := joinNonEmpty(sectJoined, strings.Join(diffBA, " "))

	best := ratio(t1, t2)
	if sectJoined == "" {
		return best
	}
	best = max(best, ratio(sectJoined, t1), ratio(sectJoined, t2))
	return best
}

// IndelRatio is the normalized insertion/deletion similarity:
// 100 * (len(a) + len(b) - indel(a, b)) / (len(a) + len(b)). The default
// options price a substitution as a delete plus an insert, which makes the
// distance an Indel distance. Two empty strings score 100.
func IndelRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 100
	}
	return 100 * lev.RatioForStrings(ra, rb, lev.DefaultOptions)
}

// LevenshteinRatio is 100 * (1 - distance / max(len(a), len(b))).
func LevenshteinRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// JaroWinklerRatio scales the Jaro-Winkler similarity to [0, 100].
func JaroWinklerRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return 100 * smetrics.JaroWinkler(a, b, 0.7, 4)
}

// ByName returns the scorer registered under name.
func ByName(name string) (Scorer, error) {
	switch name {
	case "", NameTokenSet:
		return NewTokenSet(), nil
	case NameTokenSetLevenshtein:
		return TokenSet{Ratio: LevenshteinRatio}, nil
	case NameTokenSetJaroWinkler:
		return TokenSet{Ratio: JaroWinklerRatio}, nil
	default:
		return nil, eris.Errorf("similarity: unknown scorer %q", name)
	}
}

// Names lists the registered scorer names.
func Names() []string {
	return []string{NameTokenSet, NameTokenSetLevenshtein, NameTokenSetJaroWinkler}
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
