package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/namelink/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded match, scrape and dedup runs",
}

var runsListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List recent runs",
	Annotations: map[string]string{modeAnnotation: "runs"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "runs: open store")
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Kind:   store.RunKind(kind),
			Status: store.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSUMMARY\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncateID(r.ID),
				r.Kind,
				r.Status,
				summaryLine(r),
				r.CreatedAt.Format(time.DateTime),
			)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:         "show RUN_ID",
	Short:       "Show one run as YAML",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{modeAnnotation: "runs"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "runs: open store")
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "runs: get %s", args[0])
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(run); err != nil {
			return eris.Wrap(err, "runs: encode")
		}
		return enc.Close()
	},
}

// summaryLine renders the headline counts of a run for table output.
func summaryLine(r store.Run) string {
	if r.Status == store.RunStatusFailed {
		return "error: " + r.Error
	}
	s := r.Summary
	if s == nil {
		return "-"
	}
	if s.Dedup != nil {
		return fmt.Sprintf("%d -> %d unique", s.Dedup.Raw, s.Dedup.Unique)
	}
	return fmt.Sprintf("%d/%d matched", s.Matched, s.Queries)
}

// truncateID shortens a UUID for table display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by kind (match, scrape, dedup)")
	runsListCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
