// Package normalize canonicalizes raw company names into comparable token sequences.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LegalForms is an immutable set of legal-entity tokens excluded during
// normalization. The zero value is an empty set.
type LegalForms struct {
	set map[string]struct{}
}

// NewLegalForms builds a set from the given tokens. Tokens are uppercased.
func NewLegalForms(tokens ...string) LegalForms {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	return LegalForms{set: set}
}

var defaultLegalForms = NewLegalForms(
	"SAS", "SASU", "SARL", "SA", "SNC", "EURL", "GIE",
	"LTD", "LIMITED", "INC", "CORP", "CORPORATION",
	"BV", "GMBH", "SPA", "SRL",
)

// Contains reports whether token is a legal form. token must already be uppercase.
func (l LegalForms) Contains(token string) bool {
	_, ok := l.set[token]
	return ok
}

var nonAlnumRe = regexp.MustCompile(`[^A-Z0-9]+`)

// Normalizer produces basic and enhanced normalized names. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	forms LegalForms
}

// New creates a Normalizer that drops the given legal forms.
func New(forms LegalForms) *Normalizer {
	return &Normalizer{forms: forms}
}

// Default returns a Normalizer dropping the built-in legal forms.
func Default() *Normalizer {
	return defaultNormalizer
}

var defaultNormalizer = New(defaultLegalForms)

// Basic returns the basic normalized form of raw:
//  1. Uppercase
//  2. Unicode compatibility decomposition (NFKD), combining marks removed
//  3. Every character outside [A-Z0-9] replaced by a space
//  4. Legal form tokens dropped
//
// The result is space-joined with no leading, trailing or doubled spaces.
func (n *Normalizer) Basic(raw string) string {
	return joinTokens(n.tokens(raw))
}

// Enhanced returns the basic form with single-letter fragments merged into
// the following short token (see MergeFragments).
func (n *Normalizer) Enhanced(raw string) string {
	return joinTokens(MergeFragments(n.tokens(raw)))
}

// Value normalizes an arbitrary cell value. Anything other than a string
// (nil included) yields the empty name.
func (n *Normalizer) Value(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return n.Basic(s)
}

// ValueV2 is Value for the enhanced form.
func (n *Normalizer) ValueV2(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return n.Enhanced(s)
}

func (n *Normalizer) tokens(raw string) []string {
	if raw == "" {
		return nil
	}

	x := stripMarks(upper(raw))
	x = nonAlnumRe.ReplaceAllString(x, " ")

	fields := strings.Fields(x)
	out := fields[:0]
	for _, t := range fields {
		if n.forms.Contains(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

// upper applies full Unicode case mapping, so "ß" becomes "SS".
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// stripMarks decomposes s (NFKD) and removes combining marks.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// MergeFragments makes one left-to-right pass over tokens: a 1-character token
// followed by a token of at most 4 characters is fused with it and both are
// consumed. "S TILE" becomes "STILE".
//
// The pass is greedy and never revisits a fused token, so "A B C" yields
// "AB C" rather than "ABC". That is a known approximation.
func MergeFragments(tokens []string) []string {
	merged := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if i+1 < len(tokens) && len(tokens[i]) == 1 && len(tokens[i+1]) <= 4 {
			merged = append(merged, tokens[i]+tokens[i+1])
			i += 2
			continue
		}
		merged = append(merged, tokens[i])
		i++
	}
	return merged
}

// Name normalizes raw with the default legal forms.
func Name(raw string) string {
	return defaultNormalizer.Basic(raw)
}

// NameV2 returns the enhanced normalized form of raw with the default legal forms.
func NameV2(raw string) string {
	return defaultNormalizer.Enhanced(raw)
}
