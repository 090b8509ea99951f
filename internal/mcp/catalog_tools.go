package mcp

import (
	"context"
	"fmt"
	"log"

	"mdcalc-mcp-server/internal/catalog"
	"mdcalc-mcp-server/internal/config"
	"mdcalc-mcp-server/internal/engine"
)

// ListCalculatorsTool returns the full pre-scraped catalog.
type ListCalculatorsTool struct {
	catalog *catalog.Catalog
	cfg     *config.Config
}

func (t *ListCalculatorsTool) Name() string          { return "list-calculators" }
func (t *ListCalculatorsTool) RequiredScope() string { return t.cfg.HTTP.Auth.GetReadScope() }
func (t *ListCalculatorsTool) Description() string {
	return `List every calculator in the catalog with id, name, and category.

The catalog is a static pre-scraped index (~800 entries). Use
search-calculators to narrow by condition or name instead of paging
through this list.

Returns: {success, total_count, calculators: [{id, name, category, slug, url}]}`
}

func (t *ListCalculatorsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional: only return calculators in this category",
			},
		},
	}
}

func (t *ListCalculatorsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	category := getStringArg(args, "category")

	var entries []catalog.Entry
	if category != "" {
		grouped, _ := t.catalog.ByCategory()
		entries = grouped[category]
		if entries == nil {
			return map[string]interface{}{
				"success": false,
				"error":   fmt.Sprintf("unknown category: %s", category),
			}, nil
		}
	} else {
		entries = t.catalog.All()
	}

	return map[string]interface{}{
		"success":     true,
		"total_count": len(entries),
		"calculators": entries,
	}, nil
}

// SearchCalculatorsTool searches the catalog, falling back to the target
// site's own search when the catalog yields nothing.
type SearchCalculatorsTool struct {
	catalog *catalog.Catalog
	engine  *engine.Engine
	cfg     *config.Config
}

func (t *SearchCalculatorsTool) Name() string          { return "search-calculators" }
func (t *SearchCalculatorsTool) RequiredScope() string { return t.cfg.HTTP.Auth.GetReadScope() }
func (t *SearchCalculatorsTool) Description() string {
	return `Search calculators by condition, symptom, or name.

Searches the local catalog first (fast, no browser). If nothing matches,
falls back to the site's own search page, which also covers calculators
newer than the catalog.

Examples: "chest pain", "HEART", "pneumonia"

Returns: {success, count, results: [{id, title, url}]}`
}

func (t *SearchCalculatorsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search term",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results (default: 10)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchCalculatorsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := getStringArg(args, "query")
	if query == "" {
		return map[string]interface{}{"success": false, "error": "query is required"}, nil
	}
	limit := getIntArg(args, "limit", 10)
	if limit < 1 {
		limit = 1
	}

	if matches := t.catalog.Search(query, limit); len(matches) > 0 {
		results := make([]engine.SearchHit, 0, len(matches))
		for _, m := range matches {
			results = append(results, engine.SearchHit{ID: m.ID, Title: m.Name, URL: m.URL})
		}
		return map[string]interface{}{
			"success": true,
			"source":  "catalog",
			"count":   len(results),
			"results": results,
		}, nil
	}

	log.Printf("catalog search for %q empty, falling back to site search", query)
	hits, err := t.engine.SearchSite(ctx, query, limit)
	if err != nil {
		return map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("site search failed: %v", err),
		}, nil
	}

	return map[string]interface{}{
		"success": true,
		"source":  "site",
		"count":   len(hits),
		"results": hits,
	}, nil
}
