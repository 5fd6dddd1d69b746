package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:         "normalize NAME...",
	Short:       "Print the basic and enhanced normalized forms of company names",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{modeAnnotation: "normalize"},
	RunE: func(cmd *cobra.Command, args []string) error {
		namer, err := newNamer()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RAW\tBASIC\tENHANCED")
		for _, raw := range args {
			fmt.Fprintf(w, "%s\t%s\t%s\n", raw, namer.Basic(raw), namer.Enhanced(raw))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
