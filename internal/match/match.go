// Package match links query names to the best approximate candidate name,
// gated by a plausibility check that favors precision over recall.
package match

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/namelink/internal/normalize"
	"github.com/sells-group/namelink/internal/similarity"
)

// DefaultCutoff is the minimum similarity accepted when none is configured.
const DefaultCutoff = 90

// ErrInvalidCutoff is returned when a cutoff lies outside [0, 100].
var ErrInvalidCutoff = eris.New("match: score cutoff must be within [0, 100]")

// Candidate is an accepted match for one query.
type Candidate struct {
	Norm  string  `json:"match_norm"`
	Score float64 `json:"match_score"`
	Name  string  `json:"match_name"`
}

// Result is the outcome for one query row. Match is nil when the query has no
// acceptable candidate.
type Result struct {
	Query     string     `json:"query"`
	QueryNorm string     `json:"query_norm"`
	Match     *Candidate `json:"match"`
}

// Matched reports whether the query resolved to a candidate.
func (r Result) Matched() bool { return r.Match != nil }

// Matcher finds the best candidate for each query.
type Matcher struct {
	cutoff      int
	scorer      similarity.Scorer
	namer       normalize.Namer
	concurrency int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCutoff sets the minimum accepted score.
func WithCutoff(cutoff int) Option {
	return func(m *Matcher) { m.cutoff = cutoff }
}

// WithScorer replaces the default token-set scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(m *Matcher) { m.scorer = s }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n normalize.Namer) Option {
	return func(m *Matcher) { m.namer = n }
}

// WithConcurrency bounds the number of queries scored in parallel.
func WithConcurrency(n int) Option {
	return func(m *Matcher) { m.concurrency = n }
}

// New creates a Matcher. It fails only for an out-of-range cutoff.
func New(opts ...Option) (*Matcher, error) {
	m := &Matcher{
		cutoff:      DefaultCutoff,
		scorer:      similarity.NewTokenSet(),
		namer:       normalize.Default(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := ValidateCutoff(m.cutoff); err != nil {
		return nil, err
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	if m.scorer == nil {
		m.scorer = similarity.NewTokenSet()
	}
	if m.namer == nil {
		m.namer = normalize.Default()
	}
	return m, nil
}

// ValidateCutoff checks that cutoff lies within [0, 100].
func ValidateCutoff(cutoff int) error {
	if cutoff < 0 || cutoff > 100 {
		return eris.Wrapf(ErrInvalidCutoff, "got %d", cutoff)
	}
	return nil
}

// Cutoff returns the configured minimum score.
func (m *Matcher) Cutoff() int { return m.cutoff }

// IsPlausible rejects high-scoring but structurally unlikely matches:
//   - either name shorter than 2 characters is rejected;
//   - when both names have at least 2 distinct tokens they must share one;
//   - otherwise the pair is accepted.
//
// A single-token name can therefore match a multi-token one on score alone.
func IsPlausible(query, candidate string) bool {
	if len(query) < 2 || len(candidate) < 2 {
		return false
	}

	qTokens := strings.Fields(query)
	cTokens := strings.Fields(candidate)
	qSet := make(map[string]struct{}, len(qTokens))
	for _, t := range qTokens {
		qSet[t] = struct{}{}
	}
	cSet := make(map[string]struct{}, len(cTokens))
	for _, t := range cTokens {
		cSet[t] = struct{}{}
	}

	if len(qSet) >= 2 && len(cSet) >= 2 {
		for t := range qSet {
			if _, ok := cSet[t]; ok {
				return true
			}
		}
		return false
	}
	return true
}

// Best scans choices and returns the highest-scoring one. Ties go to the
// earliest choice. ok is false when no choice reaches the cutoff.
func (m *Matcher) Best(queryNorm string, choices []string) (best string, score float64, ok bool) {
	cutoff := float64(m.cutoff)
	score = -1
	for _, c := range choices {
		s := m.scorer.Score(queryNorm, c)
		if s < cutoff || s <= score {
			continue
		}
		best, score, ok = c, s, true
		if s >= 100 {
			break
		}
	}
	if !ok {
		return "", 0, false
	}
	return best, score, true
}

// resolve runs the per-query decision: empty names, cutoff, gate.
func (m *Matcher) resolve(query string, choices []string, lookup *Lookup) Result {
	res := Result{Query: query, QueryNorm: m.namer.Basic(query)}
	if res.QueryNorm == "" {
		return res
	}

	cand, score, ok := m.Best(res.QueryNorm, choices)
	if !ok {
		return res
	}

	if !IsPlausible(res.QueryNorm, cand) {
		zap.L().Debug("match: rejected implausible candidate",
			zap.String("query", res.QueryNorm),
			zap.String("candidate", cand),
			zap.Float64("score", score),
		)
		return res
	}

	name, _ := lookup.Original(cand)
	res.Match = &Candidate{Norm: cand, Score: score, Name: name}
	return res
}

// Match resolves every query against the candidate pool. Results are returned
// in query order. The candidate choices and lookup are built once and shared
// read-only by all workers. Only context cancellation produces an error.
func (m *Matcher) Match(ctx context.Context, queries, candidates []string) ([]Result, error) {
	lookup := NewLookup(candidates, m.namer)
	choices := lookup.Choices()

	results := make([]Result, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, q := range queries {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = m.resolve(q, choices, lookup)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "match: cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "match: cancelled")
	}

	zap.L().Debug("match: complete",
		zap.Int("queries", len(queries)),
		zap.Int("choices", len(choices)),
		zap.Int("matched", Count(results)),
	)
	return results, nil
}

// Count returns the number of matched results.
func Count(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Matched() {
			n++
		}
	}
	return n
}
