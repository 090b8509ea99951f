package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the MDCalc MCP server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Site    SiteConfig    `yaml:"site"`
	HTTP    HTTPConfig    `yaml:"http"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
	// Optional directory for rotating operation traces. Empty disables tracing.
	TraceDir string `yaml:"trace_dir"`
}

// BrowserConfig configures how Chrome is launched and how pages behave.
type BrowserConfig struct {
	// Optional Chrome binary path. Empty lets Rod's launcher find one.
	Bin string `yaml:"bin"`
	// Headless controls whether Chrome runs headless (default: true).
	Headless *bool `yaml:"headless"`
	// UserAgent presented by pages. Empty keeps the browser default.
	UserAgent string `yaml:"user_agent"`
	// Viewport for all pages (default: 1920x1080).
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
	// Navigation timeout (e.g., "15s"). Fatal for the operation when exceeded.
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Post-navigation settle delay for client-side rendering (e.g., "2s").
	SettleDelay string `yaml:"settle_delay"`
	// Delay after each field assignment (e.g., "500ms").
	AssignmentDelay string `yaml:"assignment_delay"`
	// Longer delay after assignments that can reveal conditional fields (e.g., "1s").
	RevealDelay string `yaml:"reveal_delay"`
	// Optional Playwright-format storage state file (cookies + localStorage)
	// used to present the session as already authenticated. Read-only.
	AuthState string `yaml:"auth_state"`
	// JPEG quality for captures, 1-100 (default: 30, sized for agent vision).
	CaptureQuality int `yaml:"capture_quality"`
}

// SiteConfig points at the target site and the pre-scraped catalog.
type SiteConfig struct {
	BaseURL     string `yaml:"base_url"`
	CatalogPath string `yaml:"catalog_path"`
}

// HTTPConfig enables the authenticated HTTP transport when Port > 0.
// The stdio transport is always available and carries no auth.
type HTTPConfig struct {
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures bearer-token validation for the HTTP transport.
type AuthConfig struct {
	// JWKS document URL (e.g., https://tenant.auth0.com/.well-known/jwks.json).
	JWKSURL string `yaml:"jwks_url"`
	// Expected token issuer, matched exactly.
	Issuer string `yaml:"issuer"`
	// Expected token audience.
	Audience string `yaml:"audience"`
	// Scope required for listing/search/inspection (default: mdcalc:read).
	ReadScope string `yaml:"read_scope"`
	// Scope required for calculator execution (default: mdcalc:calculate).
	CalculateScope string `yaml:"calculate_scope"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "mdcalc-mcp",
			Version: "1.0.0",
			LogFile: "mdcalc-mcp.log",
		},
		Browser: BrowserConfig{
			UserAgent:                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:            1920,
			ViewportHeight:           1080,
			DefaultNavigationTimeout: "15s",
			SettleDelay:              "2s",
			AssignmentDelay:          "500ms",
			RevealDelay:              "1s",
			CaptureQuality:           30,
		},
		Site: SiteConfig{
			BaseURL:     "https://www.mdcalc.com",
			CatalogPath: "data/mdcalc_catalog.json",
		},
		HTTP: HTTPConfig{
			Port: 0,
			Auth: AuthConfig{
				ReadScope:      "mdcalc:read",
				CalculateScope: "mdcalc:calculate",
			},
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Site.BaseURL == "" {
		return errors.New("site.base_url is required")
	}
	if c.Site.CatalogPath == "" {
		return errors.New("site.catalog_path is required")
	}
	if c.HTTP.Port > 0 {
		if c.HTTP.Auth.JWKSURL == "" {
			return errors.New("http.auth.jwks_url is required when http.port is set")
		}
		if c.HTTP.Auth.Issuer == "" {
			return errors.New("http.auth.issuer is required when http.port is set")
		}
		if c.HTTP.Auth.Audience == "" {
			return errors.New("http.auth.audience is required when http.port is set")
		}
	}
	return nil
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDurationOr(b.DefaultNavigationTimeout, 15*time.Second)
}

// Settle returns the post-navigation settle delay with a sane default.
func (b BrowserConfig) Settle() time.Duration {
	return parseDurationOr(b.SettleDelay, 2*time.Second)
}

// AssignmentSettle returns the per-assignment settle delay with a sane default.
func (b BrowserConfig) AssignmentSettle() time.Duration {
	return parseDurationOr(b.AssignmentDelay, 500*time.Millisecond)
}

// RevealSettle returns the conditional-field settle delay with a sane default.
func (b BrowserConfig) RevealSettle() time.Duration {
	return parseDurationOr(b.RevealDelay, time.Second)
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// Quality returns the capture JPEG quality clamped to 1-100.
func (b BrowserConfig) Quality() int {
	if b.CaptureQuality <= 0 {
		return 30
	}
	if b.CaptureQuality > 100 {
		return 100
	}
	return b.CaptureQuality
}

// GetReadScope returns the read scope with its default.
func (a AuthConfig) GetReadScope() string {
	if a.ReadScope == "" {
		return "mdcalc:read"
	}
	return a.ReadScope
}

// GetCalculateScope returns the calculate scope with its default.
func (a AuthConfig) GetCalculateScope() string {
	if a.CalculateScope == "" {
		return "mdcalc:calculate"
	}
	return a.CalculateScope
}
