package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-rod/rod"
)

// pageTexts is the raw material for result extraction, gathered in one pass
// over the rendered page. Extraction itself is pure text matching so the
// heuristics stay testable without a browser.
type pageTexts struct {
	ResultHeadings []string `json:"resultHeadings"`
	ResultBody     string   `json:"resultBody"`
	ProminentTexts []string `json:"prominentTexts"`
	ShortTexts     []string `json:"shortTexts"`
	FullText       string   `json:"fullText"`
}

const collectTextsJS = `
() => {
	const out = {
		resultHeadings: [],
		resultBody: '',
		prominentTexts: [],
		shortTexts: [],
		fullText: ''
	};

	const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();

	document.querySelectorAll(
		'[class*="result" i], [id*="result" i]').forEach((container) => {
		container.querySelectorAll('h1, h2, h3, h4, h5, h6').forEach((h) => {
			const t = clean(h.textContent);
			if (t) out.resultHeadings.push(t);
		});
		const body = clean(container.textContent);
		if (body && body.length > out.resultBody.length) out.resultBody = body.slice(0, 2000);
	});

	document.querySelectorAll('*').forEach((el) => {
		if (el.children.length > 0) return;
		const t = clean(el.textContent);
		if (!t || t.length > 120) return;
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return;
		out.shortTexts.push(t);
		if (parseFloat(getComputedStyle(el).fontSize) >= 20) {
			out.prominentTexts.push(t);
		}
	});
	out.shortTexts = out.shortTexts.slice(0, 400);
	out.prominentTexts = out.prominentTexts.slice(0, 100);

	out.fullText = clean(document.body.innerText).slice(0, 20000);
	return out;
}`

func collectTexts(page *rod.Page) (*pageTexts, error) {
	res, err := page.Eval(collectTextsJS)
	if err != nil {
		return nil, fmt.Errorf("collect page text: %w", err)
	}

	var texts pageTexts
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &texts); err != nil {
		return nil, fmt.Errorf("decode page text: %w", err)
	}
	return &texts, nil
}

var (
	headingScoreRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*(points?|%|mg/dL|mmol/L|mL/min|U/L|g/dL)?`)
	riskRe         = regexp.MustCompile(`[Rr]isk[^%]{0,120}?\d+(?:\.\d+)?\s*%`)
	percentRe      = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)
	pointsRe       = regexp.MustCompile(`-?\d+(?:\.\d+)?\s+points?\b`)
	scoreLabelRe   = regexp.MustCompile(`[Ss]core:?\s*(-?\d+(?:\.\d+)?)`)
	labValueRe     = regexp.MustCompile(`-?\d+(?:\.\d+)?\s*(mg/dL|mmol/L|mL/min(?:/1\.73\s*m.?)?|U/L|g/dL|mEq/L)`)
	interpRe       = regexp.MustCompile(`(Low|Moderate|Intermediate|High|Very High)\b[^.]{0,60}?(Score|[Rr]isk|\d+\s*[-–]\s*\d+)`)
)

// extractResult applies the layered heuristics to collected page text.
// Layers run in priority order; the first layer that produces a score wins.
// Risk and interpretation are searched independently of the score layer.
func extractResult(t *pageTexts) (score, risk, interp string) {
	// Layer 1: headings inside a result container.
	for _, h := range t.ResultHeadings {
		if m := headingScoreRe.FindString(h); m != "" && strings.ContainsAny(m, "0123456789") {
			score = strings.TrimSpace(m)
			break
		}
	}
	if score != "" || t.ResultBody != "" {
		if m := riskRe.FindString(t.ResultBody); m != "" {
			risk = m
		} else if score != "" {
			if m := percentRe.FindString(t.ResultBody); m != "" {
				risk = m
			}
		}
	}

	// Layer 2: visually prominent leaf text with a number plus unit.
	if score == "" {
		for _, p := range t.ProminentTexts {
			if m := pointsRe.FindString(p); m != "" {
				score = m
				break
			}
			if m := labValueRe.FindString(p); m != "" {
				score = m
				break
			}
		}
	}

	// Layer 3: generic patterns over the page's full visible text.
	if score == "" {
		if m := pointsRe.FindString(t.FullText); m != "" {
			score = m
		} else if m := scoreLabelRe.FindStringSubmatch(t.FullText); m != nil {
			score = m[1]
		} else if m := labValueRe.FindString(t.FullText); m != "" {
			score = m
		}
	}

	if risk == "" {
		if m := riskRe.FindString(t.FullText); m != "" {
			risk = m
		}
	}

	for _, s := range t.ShortTexts {
		if m := interpRe.FindString(s); m != "" {
			interp = strings.TrimSpace(s)
			break
		}
	}

	return score, risk, interp
}
