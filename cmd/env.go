package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/fetcher"
	"github.com/sells-group/namelink/internal/match"
	"github.com/sells-group/namelink/internal/normalize"
	"github.com/sells-group/namelink/internal/similarity"
	"github.com/sells-group/namelink/internal/store"
)

// newNamer returns the default normalizer behind an LRU memo.
func newNamer() (*normalize.Cached, error) {
	return normalize.NewCached(normalize.Default(), cfg.Match.CacheSize)
}

// newMatcher builds a Matcher from the match config.
func newMatcher(namer normalize.Namer) (*match.Matcher, error) {
	scorer, err := similarity.ByName(cfg.Match.Scorer)
	if err != nil {
		return nil, err
	}
	return match.New(
		match.WithCutoff(cfg.Match.ScoreCutoff),
		match.WithScorer(scorer),
		match.WithNormalizer(namer),
		match.WithConcurrency(cfg.Match.Concurrency),
	)
}

// newOpener returns an Opener able to read local, HTTP(S) and FTP sources.
func newOpener() *fetcher.Opener {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	return fetcher.NewOpener(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.Scrape.UserAgent,
			Timeout:   timeout,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
	)
}

// initStore opens the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// withRun records a run around fn. A failing fn marks the run failed and
// its error is returned unchanged. Store failures are logged, not fatal,
// except when creating the run.
func withRun(ctx context.Context, st store.Store, kind store.RunKind, params map[string]string,
	fn func(run *store.Run) (store.Summary, error),
) error {
	run, err := st.CreateRun(ctx, kind, params)
	if err != nil {
		return eris.Wrap(err, "create run")
	}

	summary, err := fn(run)
	if err != nil {
		if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
			zap.L().Warn("failed to record run failure", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return err
	}

	if err := st.CompleteRun(ctx, run.ID, summary); err != nil {
		zap.L().Warn("failed to complete run", zap.String("run_id", run.ID), zap.Error(err))
	}
	return nil
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "create directory %s", dir)
}

// workDir returns a temporary directory for downloads and its cleanup.
func workDir() (string, func(), error) {
	dir, err := os.MkdirTemp("", "namelink-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "create work dir")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
