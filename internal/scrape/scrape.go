// Package scrape walks a startup directory's category pages and extracts one
// listing per company card.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/namelink/internal/dedup"
	"github.com/sells-group/namelink/internal/fetcher"
	"github.com/sells-group/namelink/internal/normalize"
)

// maxPageBytes caps how much of a listing page is read.
const maxPageBytes = 4 << 20

// Options configures a Scraper.
type Options struct {
	BaseURL string
	// Delay is the minimum spacing between page requests. Zero disables it.
	Delay time.Duration
	Namer normalize.Namer
}

// Scraper fetches category pages and parses company cards.
type Scraper struct {
	fetcher fetcher.Fetcher
	base    *url.URL
	limiter *rate.Limiter
	namer   normalize.Namer
}

// New creates a Scraper. BaseURL must be absolute; a trailing slash is added
// when missing so relative links resolve under it.
func New(f fetcher.Fetcher, opts Options) (*Scraper, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse base url")
	}
	if !base.IsAbs() {
		return nil, eris.Errorf("scrape: base url %q is not absolute", opts.BaseURL)
	}
	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	s := &Scraper{fetcher: f, base: base, namer: opts.Namer}
	if s.namer == nil {
		s.namer = normalize.Default()
	}
	if opts.Delay > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	return s, nil
}

// PageURL returns the listing URL for page (1-based) of a category. Page 1
// has no query string.
func (s *Scraper) PageURL(slug string, page int) string {
	ref := &url.URL{Path: fmt.Sprintf("companies/categories/%s.html", slug)}
	if page > 1 {
		ref.RawQuery = fmt.Sprintf("page=%d", page)
	}
	return s.base.ResolveReference(ref).String()
}

// ScrapeCategory fetches pages 1..maxPage of a category and returns every
// card found, with exact (name, detail URL) repeats dropped and both
// normalized names filled in. Listings are in page order.
func (s *Scraper) ScrapeCategory(ctx context.Context, slug, category string, maxPage int) ([]dedup.Listing, error) {
	if slug == "" {
		return nil, eris.New("scrape: category slug is required")
	}
	if maxPage < 1 {
		return nil, eris.Errorf("scrape: max page must be at least 1 (got %d)", maxPage)
	}

	log := zap.L().With(zap.String("category", slug))

	var listings []dedup.Listing
	for page := 1; page <= maxPage; page++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "scrape: rate limiter wait")
			}
		}

		pageURL := s.PageURL(slug, page)
		cards, err := s.scrapePage(ctx, pageURL)
		if err != nil {
			return nil, eris.Wrapf(err, "scrape: page %d", page)
		}

		log.Info("scrape: page parsed",
			zap.Int("page", page),
			zap.Int("max_page", maxPage),
			zap.String("url", pageURL),
			zap.Int("cards", len(cards)),
		)

		for _, c := range cards {
			listings = append(listings, dedup.Listing{
				Name:      c.Name,
				Tagline:   c.Tagline,
				DetailURL: c.DetailURL,
				Category:  category,
				Page:      page,
			})
		}
	}

	listings = dedup.DropExact(listings)
	dedup.Annotate(listings, s.namer)
	return listings, nil
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL string) ([]Card, error) {
	rc, err := s.fetcher.Download(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(rc, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	cards := ExtractCards(doc, s.base)
	if len(cards) == 0 {
		if bt := DetectBlock(body); bt != BlockNone {
			return nil, eris.Errorf("blocked (%s)", bt)
		}
	}
	return cards, nil
}
