// Package dedup collapses scraped listings that name the same company.
package dedup

import (
	"sort"

	"github.com/sells-group/namelink/internal/normalize"
)

// Listing is one company card scraped from a directory page.
type Listing struct {
	Name        string `json:"startup_name"`
	Tagline     string `json:"tagline"`
	DetailURL   string `json:"detail_url"`
	Category    string `json:"category"`
	Page        int    `json:"list_page"`
	NameClean   string `json:"name_clean"`
	NameCleanV2 string `json:"name_clean_v2"`
}

// Stats summarizes a deduplication pass.
type Stats struct {
	Raw                 int `json:"raw" yaml:"raw"`
	Unique              int `json:"unique" yaml:"unique"`
	Dropped             int `json:"dropped" yaml:"dropped"`
	RemainingDuplicates int `json:"remaining_duplicates" yaml:"remaining_duplicates"`
}

// Annotate fills NameClean and NameCleanV2 from Name.
func Annotate(listings []Listing, namer normalize.Namer) {
	for i := range listings {
		listings[i].NameClean = namer.Basic(listings[i].Name)
		listings[i].NameCleanV2 = namer.Enhanced(listings[i].Name)
	}
}

// DropExact removes listings repeating an earlier (Name, DetailURL) pair.
func DropExact(listings []Listing) []Listing {
	type key struct{ name, url string }
	seen := make(map[key]struct{}, len(listings))
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		k := key{l.Name, l.DetailURL}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Deduplicate keeps one listing per NameCleanV2: the one from the smallest page,
// ties resolved by input order. Fields of dropped listings are discarded, not
// merged. Listings without a usable name are all kept. The input is not modified.
func Deduplicate(listings []Listing) []Listing {
	sorted := make([]Listing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Page < sorted[j].Page
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]Listing, 0, len(sorted))
	for _, l := range sorted {
		if l.NameCleanV2 != "" {
			if _, ok := seen[l.NameCleanV2]; ok {
				continue
			}
			seen[l.NameCleanV2] = struct{}{}
		}
		out = append(out, l)
	}
	return out
}

// Summarize compares raw and deduplicated listings.
func Summarize(raw, unique []Listing) Stats {
	counts := make(map[string]int, len(unique))
	remaining := 0
	for _, l := range unique {
		if l.NameCleanV2 == "" {
			continue
		}
		counts[l.NameCleanV2]++
		if counts[l.NameCleanV2] > 1 {
			remaining++
		}
	}
	return Stats{
		Raw:                 len(raw),
		Unique:              len(unique),
		Dropped:             len(raw) - len(unique),
		RemainingDuplicates: remaining,
	}
}
