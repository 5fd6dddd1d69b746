package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// maxClimb bounds how far above a "Read more" link the card block may be.
	maxClimb = 10
	// maxTaglineSiblings bounds how many siblings after the title are tried.
	maxTaglineSiblings = 4
	titleSelector      = "h1, h2, h3"
)

var (
	readMoreRe   = regexp.MustCompile(`(?i)read more`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Card is one company block on a listing page.
type Card struct {
	Name      string
	Tagline   string
	DetailURL string
}

// ExtractCards finds company cards by their "Read more" links. For each link
// the nearest ancestor (at most maxClimb levels up) holding a non-empty
// h1/h2/h3 is the card; its first heading is the company name. Links resolve
// against base.
func ExtractCards(doc *goquery.Document, base *url.URL) []Card {
	var cards []Card
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if !readMoreRe.MatchString(a.Text()) {
			return
		}

		block := a
		for range maxClimb {
			block = block.Parent()
			if block.Length() == 0 {
				return
			}
			title := block.Find(titleSelector).First()
			if title.Length() == 0 {
				continue
			}
			name := cleanText(title.Text())
			if name == "" {
				continue
			}
			href, _ := a.Attr("href")
			cards = append(cards, Card{
				Name:      name,
				Tagline:   tagline(title),
				DetailURL: resolve(base, href),
			})
			return
		}
	})
	return cards
}

// tagline returns the text of the first of the next few element siblings of
// title that is non-empty and is not the "Read more" link itself.
func tagline(title *goquery.Selection) string {
	sib := title.Next()
	for range maxTaglineSiblings {
		if sib.Length() == 0 {
			return ""
		}
		t := cleanText(spacedText(sib))
		if t != "" && !readMoreRe.MatchString(t) {
			return t
		}
		sib = sib.Next()
	}
	return ""
}

// cleanText collapses runs of whitespace and trims.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// spacedText joins the trimmed text nodes under s with single spaces, so
// adjacent inline elements do not run together.
func spacedText(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return base.String()
	}
	return base.ResolveReference(ref).String()
}
