package browser

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// defaultUserAgents is rotated per page to avoid a stable automation
// fingerprint.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
}

// Config configures the browser session.
type Config struct {
	// Headless runs Chrome without a display.
	Headless bool

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// UserAgents to rotate. Default: a small desktop set.
	UserAgents []string

	// DefaultTimeout applies to page operations without an explicit one.
	DefaultTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session owns one Chrome instance and hands out stealth pages.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts (or connects to) Chrome.
func Launch(cfg Config) (*Session, error) {
	cfg.defaults()
	s := &Session{cfg: cfg}

	controlURL := cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Set("no-sandbox").
			Set("disable-dev-shm-usage")
		if proxy := proxyFromEnv(); proxy != "" {
			l = l.Proxy(proxy)
			cfg.Logger.Info("browser: using proxy from environment")
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch chrome: %w", err)
		}
		s.lnch = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if s.lnch != nil {
			s.lnch.Kill()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b
	return s, nil
}

// NewPage opens a stealth page with a rotated user agent and a fixed
// viewport.
func (s *Session) NewPage() (Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create stealth page: %w", err)
	}

	ua := s.cfg.UserAgents[rand.N(len(s.cfg.UserAgents))]
	if err := (proto.NetworkSetUserAgentOverride{UserAgent: ua}).Call(page); err != nil {
		s.cfg.Logger.Warn("browser: user agent override failed", "error", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1280, Height: 720, DeviceScaleFactor: 1,
	}); err != nil {
		s.cfg.Logger.Warn("browser: viewport setup failed", "error", err)
	}

	return &rodPage{page: page, timeout: s.cfg.DefaultTimeout}, nil
}

// Close tears down the browser and, when locally launched, the Chrome
// process.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Kill()
	}
	return err
}

func proxyFromEnv() string {
	for _, key := range []string{"HTTPS_PROXY", "https_proxy"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
