package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/dataset"
	"github.com/sells-group/namelink/internal/match"
	"github.com/sells-group/namelink/internal/store"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Link every row of the left dataset to its best name match in the right dataset",
	Long: `Normalizes the name column of both datasets, finds for each left row the
closest right name by token-set similarity, and writes the left dataset with
match_norm, match_score and match_name columns appended. Rows whose best
candidate is below the cutoff or fails the plausibility gate keep empty
match columns.

Inputs may be local paths or http(s)/ftp URLs to .csv, .xlsx, .json or .zip files.`,
	Annotations: map[string]string{modeAnnotation: "match"},
	RunE: func(cmd *cobra.Command, args []string) error {
		left, _ := cmd.Flags().GetString("left")
		right, _ := cmd.Flags().GetString("right")
		out, _ := cmd.Flags().GetString("out")
		return runMatch(cmd.Context(), cmd, left, right, out)
	},
}

func runMatch(ctx context.Context, cmd *cobra.Command, leftSrc, rightSrc, out string) error {
	log := zap.L().With(zap.String("command", "match"))

	namer, err := newNamer()
	if err != nil {
		return eris.Wrap(err, "match: create normalizer")
	}
	m, err := newMatcher(namer)
	if err != nil {
		return eris.Wrap(err, "match: create matcher")
	}

	st, err := initStore(ctx)
	if err != nil {
		return eris.Wrap(err, "match: open store")
	}
	defer st.Close() //nolint:errcheck

	dir, cleanup, err := workDir()
	if err != nil {
		return err
	}
	defer cleanup()

	params := map[string]string{
		"left":         leftSrc,
		"right":        rightSrc,
		"left_col":     cfg.Match.LeftNameColumn,
		"right_col":    cfg.Match.RightNameColumn,
		"score_cutoff": strconv.Itoa(cfg.Match.ScoreCutoff),
		"scorer":       cfg.Match.Scorer,
		"out":          out,
	}

	return withRun(ctx, st, store.RunKindMatch, params, func(run *store.Run) (store.Summary, error) {
		opener := newOpener()

		leftTable, err := dataset.Load(ctx, opener, leftSrc, dir)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "match: load left dataset")
		}
		rightTable, err := dataset.Load(ctx, opener, rightSrc, dir)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "match: load right dataset")
		}

		queries, err := leftTable.Names(cfg.Match.LeftNameColumn)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "match: left dataset")
		}
		candidates, err := rightTable.Names(cfg.Match.RightNameColumn)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "match: right dataset")
		}

		log.Info("matching datasets",
			zap.String("run_id", run.ID),
			zap.Int("queries", len(queries)),
			zap.Int("candidates", len(candidates)),
			zap.Int("score_cutoff", m.Cutoff()),
		)

		results, err := m.Match(ctx, queries, candidates)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "match: run")
		}

		linked, err := dataset.Link(leftTable, results)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "match: link results")
		}
		if err := ensureDir(out); err != nil {
			return store.Summary{}, err
		}
		if err := dataset.Save(linked, out); err != nil {
			return store.Summary{}, eris.Wrap(err, "match: write output")
		}

		if n, err := st.SaveMatches(ctx, run.ID, results); err != nil {
			log.Warn("failed to persist matches", zap.String("run_id", run.ID), zap.Error(err))
		} else {
			log.Debug("persisted matches", zap.Int64("rows", n))
		}

		matched := match.Count(results)
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Matched: %d/%d (%s)\n", matched, len(results), percent(matched, len(results)))
		fmt.Fprintf(w, "Output: %s\n", out)

		return store.Summary{
			Queries:    len(queries),
			Candidates: len(candidates),
			Matched:    matched,
		}, nil
	})
}

// percent formats n/total with one decimal. An empty total reports 0.0%.
func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return strconv.FormatFloat(100*float64(n)/float64(total), 'f', 1, 64) + "%"
}

func init() {
	f := matchCmd.Flags()
	f.String("left", "", "dataset whose rows are linked (path or URL)")
	f.String("right", "", "dataset searched for matches (path or URL)")
	f.String("left-col", "startup_name", "name column in the left dataset")
	f.String("right-col", "company_name", "name column in the right dataset")
	f.Int("score-cutoff", 90, "minimum similarity score (0-100) for a match")
	f.String("scorer", "token_set", "similarity scorer (token_set, token_set_levenshtein, token_set_jaro_winkler)")
	f.Int("concurrency", 4, "number of matching workers")
	f.String("out", "data/matches.csv", "output path (.csv, .xlsx or .json)")
	_ = matchCmd.MarkFlagRequired("left")
	_ = matchCmd.MarkFlagRequired("right")
	rootCmd.AddCommand(matchCmd)
}
