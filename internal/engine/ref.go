package engine

import (
	"fmt"
	"strings"
	"unicode"

	"mdcalc-mcp-server/internal/catalog"
)

// ResolveRef turns a caller-supplied numeric id or slug into a CalculatorRef.
// The catalog is consulted first so known calculators get their canonical
// URL; unknown ids still resolve to a synthesized URL, because the catalog is
// a pre-scraped index and lags the live site.
func ResolveRef(cat *catalog.Catalog, idOrSlug, baseURL string) (CalculatorRef, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return CalculatorRef{}, fmt.Errorf("calculator id is required")
	}

	if entry, ok := cat.Lookup(idOrSlug); ok {
		return CalculatorRef{ID: entry.ID, URL: entry.URL}, nil
	}

	if !isNumeric(idOrSlug) && !isSlug(idOrSlug) {
		return CalculatorRef{}, fmt.Errorf("invalid calculator id %q", idOrSlug)
	}

	return CalculatorRef{
		ID:  idOrSlug,
		URL: fmt.Sprintf("%s/calc/%s", strings.TrimSuffix(baseURL, "/"), idOrSlug),
	}, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isSlug(s string) bool {
	for _, r := range s {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return len(s) > 0
}
