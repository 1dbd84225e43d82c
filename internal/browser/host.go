// Package browser drives a Chrome instance over the DevTools protocol: it tracks the
// foreground tab and extracts text and screenshots for the sampler.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"example.com/focusforge/internal/sampler"
)

// ErrNotStarted is returned when the host is used before Start or after Close.
var ErrNotStarted = errors.New("browser: not started")

// Config selects the Chrome instance.
type Config struct {
	// ControlURL is the DevTools websocket of a running Chrome. Empty launches a local one.
	ControlURL string
	// Headless applies to a launched Chrome only.
	Headless bool
	Logger   *slog.Logger
}

// Host owns the connection to Chrome.
type Host struct {
	cfg Config

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewHost returns a Host. Call Start to connect.
func NewHost(cfg Config) *Host {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Host{cfg: cfg}
}

// Start connects to the configured Chrome, launching one when no control URL is set.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	wsURL := h.cfg.ControlURL
	if wsURL == "" {
		l := launcher.New().Headless(h.cfg.Headless).Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		h.lnch = l
		wsURL = u
		h.cfg.Logger.Info("launched local chrome", slog.String("url", wsURL))
	} else {
		h.cfg.Logger.Info("connecting to chrome", slog.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		h.cleanupLocked()
		return fmt.Errorf("browser: connect: %w", err)
	}
	h.browser = b
	return nil
}

// Close disconnects and stops a launched Chrome.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupLocked()
	return nil
}

func (h *Host) cleanupLocked() {
	if h.browser != nil {
		if err := h.browser.Close(); err != nil {
			h.cfg.Logger.Debug("closing browser", slog.Any("error", err))
		}
		h.browser = nil
	}
	if h.lnch != nil {
		h.lnch.Cleanup()
		h.lnch = nil
	}
}

func (h *Host) rod() (*rod.Browser, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.browser == nil {
		return nil, ErrNotStarted
	}
	return h.browser, nil
}

func (h *Host) page(ctx context.Context, p sampler.Page) (*rod.Page, error) {
	b, err := h.rod()
	if err != nil {
		return nil, err
	}
	if p.TargetID == "" {
		return nil, fmt.Errorf("browser: page %q has no target", p.URL)
	}
	page, err := b.PageFromTarget(proto.TargetTargetID(p.TargetID))
	if err != nil {
		return nil, fmt.Errorf("browser: attach %s: %w", p.TargetID, err)
	}
	return page.Context(ctx), nil
}

// Snapshot inspects every open page and reports the foreground one.
func (h *Host) Snapshot(ctx context.Context) (Snapshot, error) {
	b, err := h.rod()
	if err != nil {
		return Snapshot{}, err
	}
	pages, err := b.Context(ctx).Pages()
	if err != nil {
		return Snapshot{}, fmt.Errorf("browser: list pages: %w", err)
	}

	states := make([]pageState, 0, len(pages))
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		st := pageState{Page: sampler.Page{
			TargetID: string(info.TargetID),
			URL:      info.URL,
			Title:    info.Title,
		}}
		res, err := page.Context(ctx).Eval(`() => ({
			visible: document.visibilityState === "visible",
			focused: document.hasFocus(),
			ready: document.readyState === "complete",
		})`)
		if err == nil {
			st.Visible = res.Value.Get("visible").Bool()
			st.Focused = res.Value.Get("focused").Bool()
			st.Page.Loaded = res.Value.Get("ready").Bool()
		}
		states = append(states, st)
	}
	return snapshotOf(states), nil
}
