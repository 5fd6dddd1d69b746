package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/dataset"
	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/fetcher"
	"github.com/sells-group/namelink/internal/scrape"
	"github.com/sells-group/namelink/internal/store"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a directory category and write raw and deduplicated listings",
	Long: `Fetches pages 1..max-page of a directory category, extracts one listing per
company card, drops exact repeats, then keeps one listing per enhanced
normalized name (earliest page first). Both the raw and the deduplicated
listings are written.`,
	Annotations: map[string]string{modeAnnotation: "scrape"},
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		slug, _ := f.GetString("category-slug")
		name, _ := f.GetString("category-name")
		maxPage, _ := f.GetInt("max-page")
		outRaw, _ := f.GetString("out-raw")
		outCompanies, _ := f.GetString("out-companies")
		if name == "" {
			name = slug
		}
		return runScrape(cmd.Context(), cmd, slug, name, maxPage, outRaw, outCompanies)
	},
}

func runScrape(ctx context.Context, cmd *cobra.Command, slug, category string, maxPage int, outRaw, outCompanies string) error {
	log := zap.L().With(zap.String("command", "scrape"))

	namer, err := newNamer()
	if err != nil {
		return eris.Wrap(err, "scrape: create normalizer")
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Scrape.UserAgent,
		Timeout:    time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Scrape.MaxRetries,
	})
	scraper, err := scrape.New(httpFetcher, scrape.Options{
		BaseURL: cfg.Scrape.BaseURL,
		Delay:   time.Duration(cfg.Scrape.DelayMS) * time.Millisecond,
		Namer:   namer,
	})
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return eris.Wrap(err, "scrape: open store")
	}
	defer st.Close() //nolint:errcheck

	params := map[string]string{
		"base_url":      cfg.Scrape.BaseURL,
		"category_slug": slug,
		"category_name": category,
		"max_page":      strconv.Itoa(maxPage),
		"out_raw":       outRaw,
		"out_companies": outCompanies,
	}

	return withRun(ctx, st, store.RunKindScrape, params, func(run *store.Run) (store.Summary, error) {
		raw, err := scraper.ScrapeCategory(ctx, slug, category, maxPage)
		if err != nil {
			return store.Summary{}, err
		}
		unique := dedup.Deduplicate(raw)
		stats := dedup.Summarize(raw, unique)

		if err := writeListings(raw, outRaw); err != nil {
			return store.Summary{}, eris.Wrap(err, "scrape: write raw listings")
		}
		if err := writeListings(unique, outCompanies); err != nil {
			return store.Summary{}, eris.Wrap(err, "scrape: write companies")
		}

		if _, err := st.SaveListings(ctx, run.ID, unique); err != nil {
			log.Warn("failed to persist listings", zap.String("run_id", run.ID), zap.Error(err))
		}

		log.Info("scrape complete",
			zap.String("run_id", run.ID),
			zap.Int("raw", stats.Raw),
			zap.Int("unique", stats.Unique),
		)
		printDedupStats(cmd, stats)
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Raw: %s\n", outRaw)
		fmt.Fprintf(w, "Companies: %s\n", outCompanies)

		return store.Summary{Dedup: &stats}, nil
	})
}

func writeListings(listings []dedup.Listing, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return dataset.Save(dataset.ListingsTable(listings), path)
}

func printDedupStats(cmd *cobra.Command, stats dedup.Stats) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Rows before dedup: %d\n", stats.Raw)
	fmt.Fprintf(w, "Rows after dedup: %d\n", stats.Unique)
	fmt.Fprintf(w, "Dropped: %d\n", stats.Dropped)
	fmt.Fprintf(w, "Remaining duplicates: %d\n", stats.RemainingDuplicates)
}

func init() {
	f := scrapeCmd.Flags()
	f.String("category-slug", "", "category slug in the directory URL (e.g. energy-generation)")
	f.String("category-name", "", "category label stored on each listing (defaults to the slug)")
	f.Int("max-page", 0, "last page to fetch (pages are 1-based)")
	f.String("base-url", "", "directory base URL override")
	f.Duration("delay", 0, "minimum delay between page requests override")
	f.String("out-raw", "data/listings_raw.csv", "raw listings output path")
	f.String("out-companies", "data/companies.csv", "deduplicated listings output path")
	_ = scrapeCmd.MarkFlagRequired("category-slug")
	_ = scrapeCmd.MarkFlagRequired("max-page")
	rootCmd.AddCommand(scrapeCmd)
}
