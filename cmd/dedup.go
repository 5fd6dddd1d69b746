package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/dataset"
	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/store"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Deduplicate a listings file by enhanced normalized name",
	Long: `Reads a listings dataset (startup_name and list_page columns required),
recomputes both normalized names, and keeps one listing per enhanced name,
preferring the earliest page.`,
	Annotations: map[string]string{modeAnnotation: "dedup"},
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")
		return runDedup(cmd.Context(), cmd, in, out)
	},
}

func runDedup(ctx context.Context, cmd *cobra.Command, in, out string) error {
	namer, err := newNamer()
	if err != nil {
		return eris.Wrap(err, "dedup: create normalizer")
	}

	st, err := initStore(ctx)
	if err != nil {
		return eris.Wrap(err, "dedup: open store")
	}
	defer st.Close() //nolint:errcheck

	dir, cleanup, err := workDir()
	if err != nil {
		return err
	}
	defer cleanup()

	params := map[string]string{"in": in, "out": out}

	return withRun(ctx, st, store.RunKindDedup, params, func(run *store.Run) (store.Summary, error) {
		t, err := dataset.Load(ctx, newOpener(), in, dir)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "dedup: load listings")
		}
		listings, err := dataset.Listings(t)
		if err != nil {
			return store.Summary{}, eris.Wrap(err, "dedup: read listings")
		}

		dedup.Annotate(listings, namer)
		unique := dedup.Deduplicate(listings)
		stats := dedup.Summarize(listings, unique)

		if err := writeListings(unique, out); err != nil {
			return store.Summary{}, eris.Wrap(err, "dedup: write output")
		}
		if _, err := st.SaveListings(ctx, run.ID, unique); err != nil {
			zap.L().Warn("failed to persist listings", zap.String("run_id", run.ID), zap.Error(err))
		}

		printDedupStats(cmd, stats)
		fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", out)
		return store.Summary{Dedup: &stats}, nil
	})
}

func init() {
	dedupCmd.Flags().String("in", "", "listings dataset (path or URL)")
	dedupCmd.Flags().String("out", "data/companies.csv", "output path (.csv, .xlsx or .json)")
	_ = dedupCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(dedupCmd)
}
