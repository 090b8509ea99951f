package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"mdcalc-mcp-server/internal/browser"
	"mdcalc-mcp-server/internal/config"
	"mdcalc-mcp-server/internal/recorder"

	"github.com/go-rod/rod/lib/input"
	"github.com/google/uuid"
)

// Engine orchestrates calculator-level operations. Every operation opens
// exactly one page and closes it on all paths; no state carries over between
// operations except the shared browsing context.
type Engine struct {
	cfg      *config.Config
	sessions *browser.Manager
	resolver *Resolver
	trace    *recorder.Recorder
}

func New(cfg *config.Config, sessions *browser.Manager, trace *recorder.Recorder) *Engine {
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		resolver: NewResolver(cfg.Browser.AssignmentSettle(), cfg.Browser.RevealSettle()),
		trace:    trace,
	}
}

// Snapshot opens an empty calculator form and returns its title, a
// best-effort field list, and a viewport-fitted capture.
func (e *Engine) Snapshot(ctx context.Context, ref CalculatorRef) (*Snapshot, error) {
	opID := uuid.NewString()
	e.trace.Begin(opID)
	e.trace.Log("snapshot", opID, map[string]string{"calculator": ref.ID, "url": ref.URL})

	page, err := e.sessions.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := e.navigate(page, ref.URL); err != nil {
		e.trace.Log("navigate_failed", opID, err.Error())
		return nil, err
	}

	fields := e.discoverFields(page)
	e.trace.Log("fields_discovered", opID, len(fields))

	capture, zoom, err := fitCapture(page, false, float64(e.cfg.Browser.GetViewportHeight()), e.cfg.Browser.Quality())
	if err != nil {
		e.trace.Log("capture_failed", opID, err.Error())
		return nil, err
	}
	e.trace.Log("capture", opID, map[string]int{"bytes": len(capture), "zoom": zoom})

	return &Snapshot{
		Title:   pageTitle(page),
		URL:     ref.URL,
		Fields:  fields,
		Capture: capture,
		Zoom:    zoom,
	}, nil
}

// Execute opens a calculator, applies the ordered assignments, and extracts
// the computed result. Navigation failure is the only error; unresolvable
// fields and missing results are reported through the outcome, with the
// final capture as the caller's verification backstop.
func (e *Engine) Execute(ctx context.Context, ref CalculatorRef, assignments []Assignment) (*ExecutionOutcome, error) {
	opID := uuid.NewString()
	e.trace.Begin(opID)
	e.trace.Log("execute", opID, map[string]interface{}{
		"calculator":  ref.ID,
		"url":         ref.URL,
		"assignments": len(assignments),
	})

	page, err := e.sessions.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := e.navigate(page, ref.URL); err != nil {
		e.trace.Log("navigate_failed", opID, err.Error())
		return nil, err
	}

	e.resolver.Apply(page, assignments)

	// Final settle so derived values finish recomputing.
	time.Sleep(e.cfg.Browser.Settle())

	outcome := &ExecutionOutcome{}
	texts, err := collectTexts(page)
	if err != nil {
		log.Printf("result extraction failed: %v", err)
		e.trace.Log("extract_failed", opID, err.Error())
	} else {
		outcome.ScoreText, outcome.RiskText, outcome.Interpretation = extractResult(texts)
		outcome.Succeeded = outcome.ScoreText != "" || outcome.RiskText != ""
		e.trace.Log("extract", opID, map[string]interface{}{
			"succeeded": outcome.Succeeded,
			"score":     outcome.ScoreText,
			"risk":      outcome.RiskText,
		})
	}

	// The capture is taken regardless of extraction success. Many forms
	// compute silently and only the screenshot proves state.
	capture, zoom, capErr := fitCapture(page, true, float64(e.cfg.Browser.GetViewportHeight()), e.cfg.Browser.Quality())
	if capErr != nil {
		log.Printf("result capture failed: %v", capErr)
		e.trace.Log("capture_failed", opID, capErr.Error())
	} else {
		outcome.Capture = capture
		outcome.Zoom = zoom
		e.trace.Log("capture", opID, map[string]int{"bytes": len(capture), "zoom": zoom})
	}

	return outcome, nil
}

// SearchSite drives the target site's own search box and harvests calculator
// links from the result page. Used when the local catalog yields nothing.
func (e *Engine) SearchSite(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	opID := uuid.NewString()
	e.trace.Begin(opID)
	e.trace.Log("site_search", opID, query)

	page, err := e.sessions.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := e.navigate(page, e.cfg.Site.BaseURL); err != nil {
		return nil, err
	}

	box, err := page.Timeout(5 * time.Second).Element(`input[type="search"], input[placeholder*="Search"]`)
	if err != nil {
		return nil, fmt.Errorf("search box not found: %w", err)
	}
	if err := box.Input(query); err != nil {
		return nil, fmt.Errorf("type search query: %w", err)
	}
	if err := box.Type(input.Enter); err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}

	if err := page.Timeout(e.cfg.Browser.NavigationTimeout()).WaitLoad(); err != nil {
		log.Printf("search results load wait elapsed: %v", err)
	}
	time.Sleep(e.cfg.Browser.Settle())

	res, err := page.Eval(harvestSearchResultsJS, limit)
	if err != nil {
		return nil, fmt.Errorf("harvest search results: %w", err)
	}

	var hits []SearchHit
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &hits); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	e.trace.Log("site_search_hits", opID, len(hits))
	return hits, nil
}

// harvestSearchResultsJS pulls calculator links out of a search result page.
// Navigation chrome links are filtered by requiring substantial link text.
const harvestSearchResultsJS = `
(limit) => {
	const hits = [];
	const seen = new Set();
	document.querySelectorAll('a[href*="/calc/"]').forEach((link) => {
		if (hits.length >= limit) return;
		const title = (link.textContent || '').replace(/\s+/g, ' ').trim();
		if (title.length < 20) return;
		const m = link.href.match(/calc\/(\d+)/);
		if (!m || seen.has(m[1])) return;
		seen.add(m[1]);
		hits.push({ id: m[1], title: title, url: link.href });
	});
	return hits;
}`

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
