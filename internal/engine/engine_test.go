package engine

import (
	"os"
	"path/filepath"
	"testing"

	"mdcalc-mcp-server/internal/catalog"
)

func TestFitZoom(t *testing.T) {
	tests := []struct {
		name     string
		target   float64
		viewport float64
		want     int
	}{
		{"fits exactly", 1080, 1080, 100},
		{"fits with room", 600, 1080, 100},
		{"slightly too tall", 1500, 1080, 64},
		{"double height clamps to floor", 2160, 1080, 50},
		{"extreme height clamps to floor", 9000, 1080, 50},
		{"zero target", 0, 1080, 100},
		{"zero viewport", 1500, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitZoom(tt.target, tt.viewport); got != tt.want {
				t.Errorf("FitZoom(%v, %v) = %d, want %d", tt.target, tt.viewport, got, tt.want)
			}
		})
	}
}

func TestFitZoomRange(t *testing.T) {
	for h := 1100.0; h < 6000; h += 137 {
		z := FitZoom(h, 1080)
		if z < 50 || z > 100 {
			t.Errorf("FitZoom(%v, 1080) = %d, outside [50,100]", h, z)
		}
	}
}

func TestExtractResultFromHeadings(t *testing.T) {
	texts := &pageTexts{
		ResultHeadings: []string{"3 points", "Low risk"},
		ResultBody:     "HEART Score 3 points Risk of major adverse cardiac event 1.6%",
	}

	score, risk, _ := extractResult(texts)
	if score != "3 points" {
		t.Errorf("expected score '3 points', got %q", score)
	}
	if risk == "" {
		t.Error("expected risk to be extracted from result body")
	}
}

func TestExtractResultFromProminentText(t *testing.T) {
	texts := &pageTexts{
		ProminentTexts: []string{"LDL Cholesterol", "120 mg/dL"},
		FullText:       "Total Cholesterol 200 HDL 50 Triglycerides 150 LDL Cholesterol 120 mg/dL",
	}

	score, _, _ := extractResult(texts)
	if score != "120 mg/dL" {
		t.Errorf("expected score '120 mg/dL', got %q", score)
	}
}

func TestExtractResultGenericFallback(t *testing.T) {
	texts := &pageTexts{
		FullText: "Your result is 7 points based on the selected criteria.",
	}
	score, _, _ := extractResult(texts)
	if score != "7 points" {
		t.Errorf("expected '7 points', got %q", score)
	}

	texts = &pageTexts{FullText: "Final Score: 12 for this patient"}
	score, _, _ = extractResult(texts)
	if score != "12" {
		t.Errorf("expected '12', got %q", score)
	}
}

func TestExtractResultRiskOnly(t *testing.T) {
	texts := &pageTexts{
		FullText: "30-day risk of stroke is 4.1% for these findings",
	}
	score, risk, _ := extractResult(texts)
	if score != "" {
		t.Errorf("expected no score, got %q", score)
	}
	if risk == "" {
		t.Error("expected risk to be found in full text")
	}
}

func TestExtractResultInterpretation(t *testing.T) {
	texts := &pageTexts{
		ResultHeadings: []string{"5 points"},
		ShortTexts:     []string{"Calculator", "Moderate Score 4-6", "About"},
	}
	_, _, interp := extractResult(texts)
	if interp != "Moderate Score 4-6" {
		t.Errorf("expected interpretation 'Moderate Score 4-6', got %q", interp)
	}
}

func TestExtractResultNothingFound(t *testing.T) {
	texts := &pageTexts{
		FullText:   "This form computes silently without visible output.",
		ShortTexts: []string{"Submit", "Reset"},
	}
	score, risk, interp := extractResult(texts)
	if score != "" || risk != "" || interp != "" {
		t.Errorf("expected nothing, got score=%q risk=%q interp=%q", score, risk, interp)
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `{"total_count": 2, "calculators": [
		{"id": "1752", "name": "HEART Score for Major Cardiac Events", "category": "Cardiology", "slug": "heart-score-major-cardiac-events"},
		{"id": "70", "name": "LDL Calculated", "category": "Cardiology", "slug": "ldl-calculated"}
	]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(path, "https://www.mdcalc.com")
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestResolveRefCatalogHit(t *testing.T) {
	cat := testCatalog(t)

	ref, err := ResolveRef(cat, "1752", "https://www.mdcalc.com")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if ref.ID != "1752" {
		t.Errorf("expected id 1752, got %q", ref.ID)
	}
	if ref.URL != "https://www.mdcalc.com/calc/1752/heart-score-major-cardiac-events" {
		t.Errorf("unexpected url %q", ref.URL)
	}

	bySlug, err := ResolveRef(cat, "ldl-calculated", "https://www.mdcalc.com")
	if err != nil {
		t.Fatalf("ResolveRef by slug: %v", err)
	}
	if bySlug.ID != "70" {
		t.Errorf("expected id 70, got %q", bySlug.ID)
	}
}

func TestResolveRefUnknownID(t *testing.T) {
	cat := testCatalog(t)

	ref, err := ResolveRef(cat, "9999", "https://www.mdcalc.com")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if ref.URL != "https://www.mdcalc.com/calc/9999" {
		t.Errorf("unexpected synthesized url %q", ref.URL)
	}
}

func TestResolveRefInvalid(t *testing.T) {
	cat := testCatalog(t)

	if _, err := ResolveRef(cat, "", "https://www.mdcalc.com"); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := ResolveRef(cat, "not a slug!", "https://www.mdcalc.com"); err == nil {
		t.Error("expected error for invalid characters")
	}
}

func TestChainOrdering(t *testing.T) {
	r := NewResolver(0, 0)

	numeric := r.chainFor(Assignment{Field: "Age", Value: "42"})
	if numeric[0].Name() != "numeric-input" {
		t.Errorf("numeric value should try input strategy first, got %s", numeric[0].Name())
	}

	discrete := r.chainFor(Assignment{Field: "History", Value: "Moderately suspicious"})
	if discrete[0].Name() != "exact-text" {
		t.Errorf("text value should try exact-text first, got %s", discrete[0].Name())
	}
	if discrete[len(discrete)-1].Name() != "numeric-input" {
		t.Errorf("text value should still carry the input path last, got %s", discrete[len(discrete)-1].Name())
	}
	if len(discrete) != 4 {
		t.Errorf("expected 4 strategies, got %d", len(discrete))
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.mdcalc.com/calc/1752/heart-score", "https://www.mdcalc.com"},
		{"http://localhost:8080/page", "http://localhost:8080"},
		{"not-a-url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := originOf(tt.in); got != tt.want {
			t.Errorf("originOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
