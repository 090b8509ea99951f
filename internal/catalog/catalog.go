// Package catalog provides read-only access to the pre-scraped calculator
// index. The index is produced offline by the catalog scraper; this package
// only loads and queries it.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Entry describes one calculator in the static catalog.
type Entry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Slug     string `json:"slug"`
	URL      string `json:"url,omitempty"`
}

type catalogFile struct {
	TotalCount  int     `json:"total_count"`
	ScrapedAt   string  `json:"scraped_at,omitempty"`
	Calculators []Entry `json:"calculators"`
}

// Catalog holds the loaded index. Immutable after Load.
type Catalog struct {
	entries []Entry
	baseURL string
}

// Load reads the catalog JSON from disk. A missing or unparsable file is a
// fatal error for the caller; there is no retry and no partial load.
// baseURL is used to synthesize URLs for entries the scraper left without one.
func Load(path, baseURL string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calculator catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse calculator catalog %s: %w", path, err)
	}
	if len(file.Calculators) == 0 {
		return nil, fmt.Errorf("calculator catalog %s contains no entries", path)
	}

	entries := make([]Entry, len(file.Calculators))
	copy(entries, file.Calculators)
	for i := range entries {
		if entries[i].URL == "" {
			entries[i].URL = synthesizeURL(baseURL, entries[i])
		}
	}

	return &Catalog{entries: entries, baseURL: baseURL}, nil
}

func synthesizeURL(baseURL string, e Entry) string {
	base := strings.TrimSuffix(baseURL, "/")
	if e.Slug != "" {
		return fmt.Sprintf("%s/calc/%s/%s", base, e.ID, e.Slug)
	}
	return fmt.Sprintf("%s/calc/%s", base, e.ID)
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// All returns the full entry list in catalog order.
func (c *Catalog) All() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByCategory groups entries by their category, sorted category names included
// so callers can emit a stable listing.
func (c *Catalog) ByCategory() (map[string][]Entry, []string) {
	grouped := make(map[string][]Entry)
	for _, e := range c.entries {
		category := e.Category
		if category == "" {
			category = "Other"
		}
		grouped[category] = append(grouped[category], e)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	return grouped, names
}

// Search performs a case-insensitive substring match over name, category, and
// slug, preserving catalog order. limit <= 0 means no limit.
func (c *Catalog) Search(query string, limit int) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []Entry
	for _, e := range c.entries {
		if strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.Category), q) ||
			strings.Contains(strings.ToLower(e.Slug), q) {
			matches = append(matches, e)
			if limit > 0 && len(matches) >= limit {
				break
			}
		}
	}
	return matches
}

// Lookup finds an entry by numeric id or slug. Returns the entry and whether
// it was found.
func (c *Catalog) Lookup(idOrSlug string) (Entry, bool) {
	for _, e := range c.entries {
		if e.ID == idOrSlug || e.Slug == idOrSlug {
			return e, true
		}
	}
	return Entry{}, false
}
