// Package browser owns the single shared Chrome process and browsing context.
// Pages are cheap and short-lived; the browser is long-lived and relaunched
// transparently when its context dies.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"

	"mdcalc-mcp-server/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Manager owns one browser process and hands out short-lived pages.
// Callers never observe a dead context: the liveness probe in AcquirePage
// relaunches the browser before serving a page.
type Manager struct {
	cfg      config.BrowserConfig
	identity *IdentityState

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewManager creates a Manager. The browser is launched lazily on first
// AcquirePage. When the identity state file exists it is loaded once, here;
// absence means the session proceeds unauthenticated.
func NewManager(cfg config.BrowserConfig) *Manager {
	m := &Manager{cfg: cfg}

	if cfg.AuthState != "" {
		identity, err := LoadIdentityState(cfg.AuthState)
		if err != nil {
			log.Printf("identity state unavailable (%v), proceeding unauthenticated", err)
		} else {
			m.identity = identity
			log.Printf("loaded identity state: %d cookies, %d origins", len(identity.Cookies), len(identity.Origins))
		}
	}

	return m
}

// AcquirePage returns a fresh page on the shared context, launching or
// relaunching the browser as needed. The caller owns the page and must close
// it on every path.
func (m *Manager) AcquirePage(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureBrowserLocked(); err != nil {
		return nil, err
	}

	page, err := stealth.Page(m.browser)
	if err != nil {
		// The context may have died between the probe and page creation.
		// One transparent relaunch, then give up.
		log.Printf("page creation failed (%v), relaunching browser", err)
		m.teardownLocked()
		if err := m.ensureBrowserLocked(); err != nil {
			return nil, err
		}
		page, err = stealth.Page(m.browser)
		if err != nil {
			return nil, fmt.Errorf("create page after relaunch: %w", err)
		}
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Printf("warning: failed to set viewport: %v", err)
	}

	if m.cfg.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{
			UserAgent: m.cfg.UserAgent,
		}).Call(page); err != nil {
			log.Printf("warning: failed to set user agent: %v", err)
		}
	}

	return page.Context(ctx), nil
}

// ensureBrowserLocked launches the browser if absent and probes liveness if
// present. Must hold m.mu.
func (m *Manager) ensureBrowserLocked() error {
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		log.Printf("stale browser connection detected, relaunching")
		m.teardownLocked()
	}

	lnch := launcher.New().Headless(m.cfg.IsHeadless())
	if m.cfg.Bin != "" {
		lnch = lnch.Bin(m.cfg.Bin)
	}

	controlURL, err := lnch.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	// The browser outlives any single operation, so it is not bound to the
	// caller's context. Pages are.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lnch.Kill()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	if m.identity != nil && len(m.identity.Cookies) > 0 {
		if err := browser.SetCookies(m.identity.CookieParams()); err != nil {
			log.Printf("warning: failed to seed identity cookies: %v", err)
		}
	}

	m.browser = browser
	m.lnch = lnch
	log.Printf("browser connected at %s", controlURL)
	return nil
}

// SeedPageStorage applies stored localStorage entries for the page's origin.
// Cookies are seeded at browser level; localStorage can only be written once
// a page on the matching origin exists, so the engine calls this after
// navigation. Best effort.
func (m *Manager) SeedPageStorage(page *rod.Page, origin string) {
	if m.identity == nil {
		return
	}
	entries := m.identity.StorageFor(origin)
	if len(entries) == 0 {
		return
	}

	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `(items) => {
			try {
				JSON.parse(items).forEach(([k, v]) => localStorage.setItem(k, v));
			} catch (e) {}
		}`,
		JSArgs:       []interface{}{encodeStorageEntries(entries)},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		log.Printf("warning: failed to seed localStorage for %s: %v", origin, err)
	}
}

// Invalidate discards the current browser so the next acquisition relaunches.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// Shutdown closes the browser and its launcher-managed process.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
	}
	m.teardownLocked()
	log.Printf("browser shutdown complete")
	return err
}

// teardownLocked drops browser handles without error reporting. Must hold m.mu.
func (m *Manager) teardownLocked() {
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Kill()
		m.lnch = nil
	}
}
