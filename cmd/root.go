package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/config"
)

var cfg *config.Config

// modeAnnotation names the config validation mode a command runs under.
const modeAnnotation = "namelink/mode"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "namelink",
	Short: "Company name normalization, fuzzy record linkage and listing deduplication",
	Long: `Links two independently sourced lists of company names (for example a startup
directory and a business registry) by approximate name identity, and collapses
scraped directory listings that name the same company.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		applyFlagOverrides(cmd, cfg)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if mode := cmd.Annotations[modeAnnotation]; mode != "" {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyFlagOverrides copies explicitly set flags over file and env config.
// Flags a command does not define are ignored.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("log-level") {
		c.Log.Level = logLevel
	}
	if changed("score-cutoff") {
		c.Match.ScoreCutoff, _ = flags.GetInt("score-cutoff")
	}
	if changed("scorer") {
		c.Match.Scorer, _ = flags.GetString("scorer")
	}
	if changed("concurrency") {
		c.Match.Concurrency, _ = flags.GetInt("concurrency")
	}
	if changed("left-col") {
		c.Match.LeftNameColumn, _ = flags.GetString("left-col")
	}
	if changed("right-col") {
		c.Match.RightNameColumn, _ = flags.GetString("right-col")
	}
	if changed("base-url") {
		c.Scrape.BaseURL, _ = flags.GetString("base-url")
	}
	if changed("delay") {
		d, _ := flags.GetDuration("delay")
		c.Scrape.DelayMS = int(d.Milliseconds())
	}
	if changed("port") {
		c.Server.Port, _ = flags.GetInt("port")
	}
	if changed("store") {
		c.Store.Driver, _ = flags.GetString("store")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "run store driver override (sqlite, postgres, none)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
