package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/browser/stealth"
	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
)

// Manager owns the Chrome process (or the connection to a running one) and
// the pages opened on it.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// browserCtx is the first chromedp context; cancelling it closes Chrome
	// when we launched it.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// tempProfile is removed on shutdown when the persistent profile failed.
	tempProfile string

	pages map[string]*Page
	mu    sync.Mutex
}

// NewManager launches Chrome, or attaches to browser.remote_url, and waits
// until the DevTools connection is up.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		pages:  make(map[string]*Page),
	}

	if cfg.RemoteURL != "" {
		m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
		if err := m.connect(); err != nil {
			m.allocatorCancel()
			return nil, fmt.Errorf("failed to attach to browser at %s: %w", cfg.RemoteURL, err)
		}
		m.logger.Info("Attached to running browser", zap.String("remote_url", cfg.RemoteURL))
		return m, nil
	}

	execPath := cfg.ExecPath
	if execPath == "" {
		found, err := FindChrome()
		if err != nil {
			return nil, err
		}
		execPath = found
	}

	profile := cfg.UserDataDir
	if profile != "" {
		if abs, err := filepath.Abs(profile); err == nil {
			profile = abs
		}
	}

	err := m.launch(ctx, execPath, profile)
	if err != nil && profile != "" {
		// A profile locked by another Chrome instance is the usual cause.
		m.logger.Warn("Launch with persistent profile failed, retrying with a temporary profile",
			zap.String("profile", profile), zap.Error(err))
		tmp, tmpErr := os.MkdirTemp("", "autosend-profile-")
		if tmpErr != nil {
			return nil, fmt.Errorf("failed to create temporary profile: %w", tmpErr)
		}
		m.tempProfile = tmp
		err = m.launch(ctx, execPath, tmp)
	}
	if err != nil {
		m.removeTempProfile()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	m.logger.Info("Browser launched",
		zap.String("exec_path", execPath),
		zap.Bool("headless", cfg.Headless),
		zap.Bool("temporary_profile", m.tempProfile != ""),
	)
	return m, nil
}

func (m *Manager) launch(ctx context.Context, execPath, profile string) error {
	opts := m.generateAllocatorOptions(execPath, profile)
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, opts...)
	if err := m.connect(); err != nil {
		m.allocatorCancel()
		return err
	}
	return nil
}

// connect starts the first browser context and runs an empty action to
// force the DevTools handshake.
func (m *Manager) connect() error {
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	timeout := m.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(m.browserCtx) }()

	select {
	case err := <-done:
		if err != nil {
			m.browserCancel()
			return err
		}
		return nil
	case <-time.After(timeout):
		m.browserCancel()
		return fmt.Errorf("browser did not respond within %s", timeout)
	}
}

// generateAllocatorOptions builds the Chrome command line. The browser is
// meant to be watched and logged into, so audio and extensions stay on.
func (m *Manager) generateAllocatorOptions(execPath, profile string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(execPath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.WindowSize(1280, 900),
	}
	if m.cfg.Headless {
		opts = append(opts, chromedp.DisableGPU)
	}
	if profile != "" {
		opts = append(opts, chromedp.UserDataDir(profile))
	}
	for _, arg := range m.cfg.Args {
		name, value, ok := parseFlag(arg)
		if !ok {
			m.logger.Warn("Ignoring malformed browser argument", zap.String("arg", arg))
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseFlag turns "--name" or "--name=value" into a chromedp flag pair.
func parseFlag(arg string) (string, interface{}, bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(arg), "-")
	if trimmed == "" {
		return "", nil, false
	}
	if name, value, found := strings.Cut(trimmed, "="); found {
		return name, value, name != ""
	}
	return trimmed, true, true
}

// OpenPage returns a handle on the live room tab. The most recent tab whose
// URL contains browser.target_host wins; otherwise the start URL is opened.
func (m *Manager) OpenPage(ctx context.Context) (*Page, error) {
	tabCtx, tabCancel, reused, err := m.selectTab()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, stealth.Apply(m.logger)); err != nil {
		m.logger.Warn("Failed to apply stealth evasions", zap.Error(err))
	}

	if !reused && m.cfg.StartURL != "" {
		if err := chromedp.Run(runCtx, chromedp.Navigate(m.cfg.StartURL)); err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to open %s: %w", m.cfg.StartURL, err)
		}
	}

	page := newPage(tabCtx, tabCancel, uuid.NewString(), m.logger)
	page.onClose = func() { m.unregisterPage(page.ID()) }
	m.mu.Lock()
	m.pages[page.ID()] = page
	m.mu.Unlock()

	m.reportPage(ctx, page, reused)
	return page, nil
}

// pageInspector is the part of a Page used for the connectivity check.
type pageInspector interface {
	Title(ctx context.Context) (string, error)
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}

// reportPage logs the tab's title and URL. The title doubles as a
// connectivity check on the tab.
func (m *Manager) reportPage(ctx context.Context, page pageInspector, reused bool) {
	title, err := page.Title(ctx)
	if err != nil {
		m.logger.Warn("Page opened but did not answer", zap.Error(err))
		return
	}
	var location string
	if err := page.RunActions(ctx, chromedp.Location(&location)); err != nil {
		m.logger.Debug("Could not read page location", zap.Error(err))
	}
	m.logger.Info("Page ready", zap.String("title", title), zap.String("url", location), zap.Bool("reused_tab", reused))
}

func (m *Manager) selectTab() (context.Context, context.CancelFunc, bool, error) {
	if m.cfg.TargetHost != "" {
		targets, err := chromedp.Targets(m.browserCtx)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to list tabs: %w", err)
		}
		if info := pickTarget(targets, m.cfg.TargetHost); info != nil {
			m.logger.Debug("Switching to existing tab", zap.String("url", info.URL))
			ctx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(info.TargetID))
			return ctx, cancel, true, nil
		}
	}
	// The first context already owns a tab; pages reuse it without closing it.
	ctx, cancel := context.WithCancel(m.browserCtx)
	return ctx, cancel, false, nil
}

// pickTarget returns the last page target whose URL contains host.
func pickTarget(targets []*target.Info, host string) *target.Info {
	var picked *target.Info
	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, host) {
			picked = t
		}
	}
	return picked
}

func (m *Manager) unregisterPage(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, id)
}

// Shutdown closes the pages and, when it launched Chrome, the browser.
// Attached browsers are left running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager...")

	m.mu.Lock()
	pages := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, p)
	}
	m.pages = make(map[string]*Page)
	m.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}

	var errs []error
	if m.cfg.RemoteURL == "" && m.browserCtx != nil {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(m.browserCtx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("browser close interrupted: %w", ctx.Err()))
		}
	}
	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	m.removeTempProfile()

	m.logger.Info("Browser manager shutdown complete.")
	return errors.Join(errs...)
}

func (m *Manager) removeTempProfile() {
	if m.tempProfile == "" {
		return
	}
	if err := os.RemoveAll(m.tempProfile); err != nil {
		m.logger.Debug("Failed to remove temporary profile", zap.String("dir", m.tempProfile), zap.Error(err))
	}
	m.tempProfile = ""
}
