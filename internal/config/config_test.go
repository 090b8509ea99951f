package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "mdcalc-mcp" {
		t.Errorf("expected server name 'mdcalc-mcp', got %q", cfg.Server.Name)
	}
	if cfg.Site.BaseURL != "https://www.mdcalc.com" {
		t.Errorf("expected mdcalc base URL, got %q", cfg.Site.BaseURL)
	}
	if cfg.Site.CatalogPath != "data/mdcalc_catalog.json" {
		t.Errorf("expected default catalog path, got %q", cfg.Site.CatalogPath)
	}
	if cfg.Browser.ViewportWidth != 1920 || cfg.Browser.ViewportHeight != 1080 {
		t.Errorf("expected 1920x1080 viewport, got %dx%d", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
	if cfg.Browser.CaptureQuality != 30 {
		t.Errorf("expected capture quality 30, got %d", cfg.Browser.CaptureQuality)
	}
	if cfg.HTTP.Port != 0 {
		t.Errorf("expected HTTP disabled by default, got port %d", cfg.HTTP.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDurationGetters(t *testing.T) {
	b := BrowserConfig{}
	if b.NavigationTimeout() != 15*time.Second {
		t.Errorf("expected 15s navigation timeout, got %v", b.NavigationTimeout())
	}
	if b.Settle() != 2*time.Second {
		t.Errorf("expected 2s settle, got %v", b.Settle())
	}
	if b.AssignmentSettle() != 500*time.Millisecond {
		t.Errorf("expected 500ms assignment settle, got %v", b.AssignmentSettle())
	}
	if b.RevealSettle() != time.Second {
		t.Errorf("expected 1s reveal settle, got %v", b.RevealSettle())
	}

	b = BrowserConfig{DefaultNavigationTimeout: "30s", SettleDelay: "bogus"}
	if b.NavigationTimeout() != 30*time.Second {
		t.Errorf("expected parsed 30s, got %v", b.NavigationTimeout())
	}
	if b.Settle() != 2*time.Second {
		t.Errorf("expected fallback on bogus duration, got %v", b.Settle())
	}
}

func TestIsHeadlessDefault(t *testing.T) {
	b := BrowserConfig{}
	if !b.IsHeadless() {
		t.Error("expected headless by default")
	}
	headful := false
	b.Headless = &headful
	if b.IsHeadless() {
		t.Error("expected headful when explicitly disabled")
	}
}

func TestQualityClamp(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 30},
		{-5, 30},
		{30, 30},
		{150, 100},
		{80, 80},
	}
	for _, tt := range tests {
		b := BrowserConfig{CaptureQuality: tt.in}
		if got := b.Quality(); got != tt.want {
			t.Errorf("Quality(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidateHTTPAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.Port = 8080
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure when HTTP enabled without auth settings")
	}

	cfg.HTTP.Auth.JWKSURL = "https://tenant.example.com/.well-known/jwks.json"
	cfg.HTTP.Auth.Issuer = "https://tenant.example.com/"
	cfg.HTTP.Auth.Audience = "https://mcp.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config with full auth settings: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  name: test-mcp
browser:
  viewport_width: 1280
  settle_delay: "3s"
site:
  base_url: "https://example.com"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Name != "test-mcp" {
		t.Errorf("expected overridden name, got %q", cfg.Server.Name)
	}
	if cfg.Browser.ViewportWidth != 1280 {
		t.Errorf("expected overridden width 1280, got %d", cfg.Browser.ViewportWidth)
	}
	if cfg.Browser.ViewportHeight != 1080 {
		t.Errorf("expected default height retained, got %d", cfg.Browser.ViewportHeight)
	}
	if cfg.Browser.Settle() != 3*time.Second {
		t.Errorf("expected parsed 3s settle, got %v", cfg.Browser.Settle())
	}
	if cfg.Site.CatalogPath != "data/mdcalc_catalog.json" {
		t.Errorf("expected default catalog path retained, got %q", cfg.Site.CatalogPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestScopeDefaults(t *testing.T) {
	a := AuthConfig{}
	if a.GetReadScope() != "mdcalc:read" {
		t.Errorf("expected default read scope, got %q", a.GetReadScope())
	}
	if a.GetCalculateScope() != "mdcalc:calculate" {
		t.Errorf("expected default calculate scope, got %q", a.GetCalculateScope())
	}
	a = AuthConfig{ReadScope: "custom:read", CalculateScope: "custom:calc"}
	if a.GetReadScope() != "custom:read" || a.GetCalculateScope() != "custom:calc" {
		t.Error("expected configured scopes to win")
	}
}
