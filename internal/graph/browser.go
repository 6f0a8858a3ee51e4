package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"weft/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type pageRecord struct {
	meta Session
	page *rod.Page
}

// Browser owns the Chrome instance and tracks the pages opened on it.
type Browser struct {
	cfg        config.BrowserConfig
	log        *zap.Logger
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*pageRecord
	controlURL string // WebSocket URL for DevTools
}

func NewBrowser(cfg config.BrowserConfig, log *zap.Logger) *Browser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Browser{
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*pageRecord),
	}
}

// Start connects to an existing Chrome or launches a new one using Rod's launcher.
func (b *Browser) Start(ctx context.Context) error {
	// If we already have a browser, verify it's still alive
	if b.browser != nil {
		_, err := b.browser.Version()
		if err == nil {
			return nil // Browser is healthy, reuse it
		}
		// Browser is dead, clean up and reconnect
		b.log.Warn("stale browser connection detected, reconnecting")
		_ = b.browser.Close()
		b.browser = nil
		b.controlURL = ""
		b.mu.Lock()
		b.sessions = make(map[string]*pageRecord)
		b.mu.Unlock()
	}

	controlURL := b.cfg.DebuggerURL
	if controlURL == "" {
		var launch *launcher.Launcher
		if len(b.cfg.Launch) > 0 {
			launch = launcher.New().Bin(b.cfg.Launch[0]).Headless(b.cfg.IsHeadless())
			for _, rawFlag := range b.cfg.Launch[1:] {
				flagStr := strings.TrimLeft(rawFlag, "-")
				name, val, hasVal := strings.Cut(flagStr, "=")
				if hasVal {
					launch = launch.Set(flags.Flag(name), val)
				} else {
					launch = launch.Set(flags.Flag(name))
				}
			}
		} else {
			launch = launcher.New().Headless(b.cfg.IsHeadless())
		}
		url, err := launch.Launch()
		if err != nil {
			// Fallback: let Rod pick the port and defaults.
			fallback := launcher.New().Headless(b.cfg.IsHeadless())
			if alt, altErr := fallback.Launch(); altErr == nil {
				controlURL = alt
			} else {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
		} else {
			controlURL = url
		}
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	b.browser = browser
	b.controlURL = controlURL
	b.log.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (b *Browser) ControlURL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.controlURL
}

// IsConnected returns whether the browser is currently connected.
func (b *Browser) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.browser != nil
}

// Close shuts down tracked pages and the underlying browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, rec := range b.sessions {
		if rec.page != nil {
			_ = rec.page.Close()
		}
		delete(b.sessions, id)
	}

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	b.controlURL = ""
	b.log.Info("browser shutdown complete")
	return err
}

// NewSession opens a new page in an incognito context and tracks it.
func (b *Browser) NewSession(ctx context.Context, url string) (*Session, error) {
	if b.browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.GetViewportWidth(),
		Height:            b.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		b.log.Warn("failed to set viewport", zap.Error(err))
	}
	if b.cfg.UserAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent})
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	b.mu.Lock()
	b.sessions[meta.ID] = &pageRecord{meta: meta, page: page}
	b.mu.Unlock()

	if url != "" {
		if err := b.Navigate(ctx, meta.ID, url); err != nil {
			return &meta, err
		}
		meta, _ = b.GetSession(meta.ID)
	}
	return &meta, nil
}

// Navigate drives the session's page to a URL and waits for the load event.
func (b *Browser) Navigate(ctx context.Context, sessionID, url string) error {
	page, ok := b.Page(sessionID)
	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}

	p := page.Context(ctx).Timeout(b.cfg.NavigationTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Best-effort settle; slow resources should not fail the fetch.
	if err := p.WaitLoad(); err != nil {
		b.log.Debug("load event wait failed", zap.String("url", url), zap.Error(err))
	}
	_ = p.WaitDOMStable(300*time.Millisecond, 0)

	now := time.Now()
	b.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = url
		s.LastActive = now
		return s
	})
	return nil
}

// Page returns the underlying Rod page for a session when present.
func (b *Browser) Page(sessionID string) (*rod.Page, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// UpdateMetadata allows callers to refresh metadata (e.g., URL/title after navigation).
func (b *Browser) UpdateMetadata(sessionID string, updater func(Session) Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns the current session metadata when available.
func (b *Browser) GetSession(sessionID string) (Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// List returns lightweight metadata for all known sessions.
func (b *Browser) List() []Session {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]Session, 0, len(b.sessions))
	for _, rec := range b.sessions {
		results = append(results, rec.meta)
	}
	return results
}

// CloseSession closes one page and stops tracking it.
func (b *Browser) CloseSession(sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[sessionID]
	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	delete(b.sessions, sessionID)
	if rec.page != nil {
		return rec.page.Close()
	}
	return nil
}
