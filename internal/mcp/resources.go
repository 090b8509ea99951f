package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const resourceMIMEJSON = "application/json"

func (s *Server) registerAllResources() {
	if s == nil || s.mcpServer == nil {
		return
	}

	s.mcpServer.AddResource(
		mcp.NewResource(
			"mdcalc://about",
			"MDCalc Server About",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("High-level server info and usage notes."),
		),
		s.handleAboutResource,
	)

	s.mcpServer.AddResource(
		mcp.NewResource(
			"mdcalc://categories",
			"Calculator Categories",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("Catalog categories with entry counts."),
		),
		s.handleCategoriesResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"mdcalc://category/{name}",
			"Calculators by Category",
			mcp.WithTemplateMIMEType(resourceMIMEJSON),
			mcp.WithTemplateDescription("Catalog entries for one category."),
		),
		s.handleCategoryResource,
	)
}

func (s *Server) handleAboutResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	payload := map[string]interface{}{
		"name":     s.cfg.Server.Name,
		"version":  s.cfg.Server.Version,
		"site":     s.cfg.Site.BaseURL,
		"catalog":  s.catalog.Len(),
		"notes": []string{
			"Screenshots are the source of truth: read get-calculator output before executing.",
			"execute-calculator applies inputs in the order supplied; order matters for conditionally revealed fields.",
			"Field names and option values must match the visible page text exactly.",
		},
		"timestamp_ms": time.Now().UnixMilli(),
	}

	return jsonResource(request.Params.URI, payload)
}

func (s *Server) handleCategoriesResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	grouped, names := s.catalog.ByCategory()

	categories := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		categories = append(categories, map[string]interface{}{
			"name":  name,
			"count": len(grouped[name]),
		})
	}

	return jsonResource(request.Params.URI, map[string]interface{}{
		"categories": categories,
	})
}

func (s *Server) handleCategoryResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	name := argString(request.Params.Arguments["name"])
	if name == "" {
		return nil, fmt.Errorf("missing category name")
	}

	grouped, _ := s.catalog.ByCategory()
	entries, ok := grouped[name]
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", name)
	}

	return jsonResource(request.Params.URI, map[string]interface{}{
		"category":    name,
		"count":       len(entries),
		"calculators": entries,
	})
}

func jsonResource(uri string, payload interface{}) ([]mcp.ResourceContents, error) {
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}

func argString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []string:
		if len(value) == 0 {
			return ""
		}
		return value[0]
	default:
		return fmt.Sprintf("%v", value)
	}
}
