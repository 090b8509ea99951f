package mcp

import (
	"context"
	"encoding/base64"
	"fmt"

	"mdcalc-mcp-server/internal/catalog"
	"mdcalc-mcp-server/internal/config"
	"mdcalc-mcp-server/internal/engine"
)

// GetCalculatorTool opens a calculator and returns its empty-form snapshot.
// The screenshot is the primary output; structural field discovery is best
// effort and returns zero fields for heavily dynamic pages.
type GetCalculatorTool struct {
	catalog *catalog.Catalog
	engine  *engine.Engine
	cfg     *config.Config
}

func (t *GetCalculatorTool) Name() string          { return "get-calculator" }
func (t *GetCalculatorTool) RequiredScope() string { return t.cfg.HTTP.Auth.GetReadScope() }
func (t *GetCalculatorTool) Description() string {
	return `Open a calculator and return its title, URL, and a screenshot of the
empty form, plus best-effort structural fields.

Call this BEFORE execute-calculator: the screenshot shows the exact
field labels and option texts the execution inputs must match. Field
detection may return 0 fields for script-rendered pages; read the
screenshot in that case.

Returns: {success, title, url, screenshot_base64, zoom_percent,
fields: [{label, kind, options}], fields_detected}`
}

func (t *GetCalculatorTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"calculator_id": map[string]interface{}{
				"type":        "string",
				"description": "Numeric calculator id or URL slug",
			},
		},
		"required": []string{"calculator_id"},
	}
}

func (t *GetCalculatorTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := engine.ResolveRef(t.catalog, getStringArg(args, "calculator_id"), t.cfg.Site.BaseURL)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	snap, err := t.engine.Snapshot(ctx, ref)
	if err != nil {
		return map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("snapshot of calculator %s failed: %v", ref.ID, err),
		}, nil
	}

	return map[string]interface{}{
		"success":           true,
		"calculator_id":     ref.ID,
		"title":             snap.Title,
		"url":               snap.URL,
		"screenshot_base64": base64.StdEncoding.EncodeToString(snap.Capture),
		"zoom_percent":      snap.Zoom,
		"fields":            snap.Fields,
		"fields_detected":   len(snap.Fields),
	}, nil
}

// ExecuteCalculatorTool fills a calculator and reads the result back.
type ExecuteCalculatorTool struct {
	catalog *catalog.Catalog
	engine  *engine.Engine
	cfg     *config.Config
}

func (t *ExecuteCalculatorTool) Name() string          { return "execute-calculator" }
func (t *ExecuteCalculatorTool) RequiredScope() string { return t.cfg.HTTP.Auth.GetCalculateScope() }
func (t *ExecuteCalculatorTool) Description() string {
	return `Fill a calculator with the given values and extract the computed result.

This is MECHANICAL: it clicks and types exactly what you supply. Field
names must match the visible labels and values must match the exact
visible option text (or be numeric literals). Call get-calculator first
to see them. Supply inputs as an ordered array when later fields only
appear after earlier answers:

  [{"field": "History", "value": "Moderately suspicious"},
   {"field": "Age", "value": "45-64"}]

Unresolvable fields are skipped, not fatal; inspect result_capture_base64
to verify what was actually applied.

Returns: {success, score, risk, interpretation, result_capture_base64,
zoom_percent}`
}

func (t *ExecuteCalculatorTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"calculator_id": map[string]interface{}{
				"type":        "string",
				"description": "Numeric calculator id or URL slug",
			},
			"inputs": map[string]interface{}{
				"description": "Ordered array of {field, value} pairs, or a field->value object (order then unspecified)",
				"oneOf": []interface{}{
					map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []string{"field", "value"},
							"properties": map[string]interface{}{
								"field": map[string]interface{}{"type": "string"},
								"value": map[string]interface{}{"type": "string"},
							},
						},
					},
					map[string]interface{}{"type": "object"},
				},
			},
		},
		"required": []string{"calculator_id", "inputs"},
	}
}

func (t *ExecuteCalculatorTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := engine.ResolveRef(t.catalog, getStringArg(args, "calculator_id"), t.cfg.Site.BaseURL)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	assignments, err := parseAssignments(args["inputs"])
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	outcome, err := t.engine.Execute(ctx, ref, assignments)
	if err != nil {
		return map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("execution of calculator %s failed: %v", ref.ID, err),
		}, nil
	}

	result := map[string]interface{}{
		"success":        outcome.Succeeded,
		"calculator_id":  ref.ID,
		"score":          outcome.ScoreText,
		"risk":           outcome.RiskText,
		"interpretation": outcome.Interpretation,
		"zoom_percent":   outcome.Zoom,
	}
	if len(outcome.Capture) > 0 {
		result["result_capture_base64"] = base64.StdEncoding.EncodeToString(outcome.Capture)
	}
	if !outcome.Succeeded {
		result["note"] = "no structured result recognized; the calculator may compute silently, verify via result_capture_base64"
	}
	return result, nil
}
