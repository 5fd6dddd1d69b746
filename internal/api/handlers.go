package api

import (
	"net/http"

	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/match"
)

type normalizeRequest struct {
	Names []any `json:"names"`
}

type normalizedName struct {
	Raw      any    `json:"raw"`
	Basic    string `json:"basic"`
	Enhanced string `json:"enhanced"`
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out := make([]normalizedName, len(req.Names))
	for i, raw := range req.Names {
		out[i] = normalizedName{
			Raw:      raw,
			Basic:    s.opts.Normalizer.Value(raw),
			Enhanced: s.opts.Normalizer.ValueV2(raw),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

type matchRequest struct {
	Queries     []any `json:"queries"`
	Candidates  []any `json:"candidates"`
	ScoreCutoff *int  `json:"score_cutoff,omitempty"`
}

type matchResponse struct {
	Results []match.Result `json:"results"`
	Matched int            `json:"matched"`
	Total   int            `json:"total"`
}

// names keeps string values and maps anything else to the empty name.
func names(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cutoff := s.opts.Cutoff
	if req.ScoreCutoff != nil {
		cutoff = *req.ScoreCutoff
	}

	m, err := match.New(
		match.WithCutoff(cutoff),
		match.WithScorer(s.opts.Scorer),
		match.WithNormalizer(s.opts.Namer),
		match.WithConcurrency(s.opts.Concurrency),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := m.Match(r.Context(), names(req.Queries), names(req.Candidates))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	writeJSON(w, http.StatusOK, matchResponse{
		Results: results,
		Matched: match.Count(results),
		Total:   len(results),
	})
}

type dedupRequest struct {
	Listings []dedup.Listing `json:"listings"`
}

type dedupResponse struct {
	Listings []dedup.Listing `json:"listings"`
	Stats    dedup.Stats     `json:"stats"`
}

func (s *Server) handleDedup(w http.ResponseWriter, r *http.Request) {
	var req dedupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dedup.Annotate(req.Listings, s.opts.Namer)
	unique := dedup.Deduplicate(req.Listings)
	writeJSON(w, http.StatusOK, dedupResponse{
		Listings: unique,
		Stats:    dedup.Summarize(req.Listings, unique),
	})
}
