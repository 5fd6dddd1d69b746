package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/namelink/internal/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"match", "scrape", "dedup", "normalize", "serve", "runs"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRunsCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
}

func TestCommands_ModeAnnotations(t *testing.T) {
	tests := map[string]string{
		"match":     matchCmd.Annotations[modeAnnotation],
		"scrape":    scrapeCmd.Annotations[modeAnnotation],
		"dedup":     dedupCmd.Annotations[modeAnnotation],
		"normalize": normalizeCmd.Annotations[modeAnnotation],
		"serve":     serveCmd.Annotations[modeAnnotation],
		"runs":      runsListCmd.Annotations[modeAnnotation],
	}
	for want, got := range tests {
		assert.Equal(t, want, got)
	}
}

func TestMatchCmd_FlagDefaults(t *testing.T) {
	f := matchCmd.Flags()

	cutoff, err := f.GetInt("score-cutoff")
	require.NoError(t, err)
	assert.Equal(t, 90, cutoff)

	leftCol, err := f.GetString("left-col")
	require.NoError(t, err)
	assert.Equal(t, "startup_name", leftCol)

	rightCol, err := f.GetString("right-col")
	require.NoError(t, err)
	assert.Equal(t, "company_name", rightCol)
}

func TestScrapeCmd_RequiredFlags(t *testing.T) {
	for _, name := range []string{"category-slug", "max-page"} {
		fl := scrapeCmd.Flags().Lookup(name)
		require.NotNil(t, fl, name)
		assert.Equal(t, []string{"true"}, fl.Annotations["cobra_annotation_bash_completion_one_required_flag"], name)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	c := &config.Config{
		Match: config.MatchConfig{ScoreCutoff: 90, Scorer: "token_set", LeftNameColumn: "startup_name"},
	}

	require.NoError(t, matchCmd.Flags().Set("score-cutoff", "85"))
	require.NoError(t, matchCmd.Flags().Set("left-col", "name"))
	t.Cleanup(func() {
		_ = matchCmd.Flags().Set("score-cutoff", "90")
		_ = matchCmd.Flags().Set("left-col", "startup_name")
		matchCmd.Flags().Lookup("score-cutoff").Changed = false
		matchCmd.Flags().Lookup("left-col").Changed = false
	})

	applyFlagOverrides(matchCmd, c)

	assert.Equal(t, 85, c.Match.ScoreCutoff)
	assert.Equal(t, "name", c.Match.LeftNameColumn)
	assert.Equal(t, "token_set", c.Match.Scorer)
}

func TestApplyFlagOverrides_UnsetFlagsKeepConfig(t *testing.T) {
	c := &config.Config{Server: config.ServerConfig{Port: 9090}}
	applyFlagOverrides(serveCmd, c)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "50.0%", percent(1, 2))
	assert.Equal(t, "33.3%", percent(1, 3))
	assert.Equal(t, "0.0%", percent(0, 0))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefgh-1234-5678"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}

// resetFlags restores flags set during a test so later Execute calls start clean.
func resetFlags(t *testing.T, c *cobra.Command, names ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, name := range names {
			f := c.Flags().Lookup(name)
			if f == nil {
				continue
			}
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
}

func TestExecute_MatchCutoffOutOfRangeFailsBeforeIO(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	prev := cfg
	t.Cleanup(func() { cfg = prev })
	resetFlags(t, matchCmd, "left", "right", "score-cutoff")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{
		"match",
		"--left", filepath.Join(dir, "missing-left.csv"),
		"--right", filepath.Join(dir, "missing-right.csv"),
		"--score-cutoff", "101",
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.score_cutoff must be between 0 and 100 (got 101)")
	assert.NotContains(t, err.Error(), "load left dataset")

	// The run store is opened after validation, so no database file exists.
	_, statErr := os.Stat(filepath.Join(dir, "namelink.db"))
	assert.True(t, os.IsNotExist(statErr))
}
