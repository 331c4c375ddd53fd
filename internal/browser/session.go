// Package browser manages the headless Chrome session behind the scrape
// pipeline: one persistent primary tab plus short-lived enrichment tabs.
package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/dom"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// Config controls how the browser is launched.
type Config struct {
	Headless   bool
	UserAgent  string
	CookiePath string
}

// Session owns a browser process and its persistent primary tab.
type Session struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	primary  *rod.Page
}

// Open launches Chrome and prepares the primary tab. Images, the GPU and
// the automation fingerprint are disabled to keep page loads light and
// unremarkable.
func Open(cfg Config) (*Session, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("blink-settings", "imagesEnabled=false")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: connect")
	}

	s := &Session{cfg: cfg, launcher: l, browser: b}
	if cfg.CookiePath != "" {
		if err := s.loadCookies(); err != nil {
			zap.L().Warn("browser: cookie jar not loaded", zap.Error(err))
		}
	}

	primary, err := s.newPage("about:blank")
	if err != nil {
		s.Close()
		return nil, eris.Wrap(err, "browser: open primary tab")
	}
	s.primary = primary

	zap.L().Info("browser: session ready", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Primary returns the persistent primary tab.
func (s *Session) Primary() dom.Page {
	return &page{p: s.primary}
}

// OpenTab creates a tab already navigating to url. The load is not awaited;
// callers overlap loads across a batch and wait per tab before reading.
func (s *Session) OpenTab(ctx context.Context, url string) (dom.Page, error) {
	p, err := s.newPage(url)
	if err != nil {
		return nil, eris.Wrap(err, "browser: open tab")
	}
	return &page{p: p.Context(ctx)}, nil
}

// Restore re-focuses the primary tab after a batch teardown. If the primary
// window itself vanished, a surviving tab is adopted as the new primary,
// and failing that a fresh blank tab is created.
func (s *Session) Restore() {
	if s.primary != nil {
		if _, err := s.primary.Info(); err == nil {
			if _, err := s.primary.Activate(); err != nil {
				zap.L().Warn("browser: activate primary failed", zap.Error(err))
			}
			return
		}
	}

	zap.L().Warn("browser: primary tab lost, recovering")
	pages, err := s.browser.Pages()
	if err == nil && len(pages) > 0 {
		s.primary = pages.First()
	} else {
		p, perr := s.newPage("about:blank")
		if perr != nil {
			zap.L().Error("browser: could not recover primary tab", zap.Error(perr))
			return
		}
		s.primary = p
	}
	if _, err := s.primary.Activate(); err != nil {
		zap.L().Warn("browser: activate recovered primary failed", zap.Error(err))
	}
}

// Close saves the cookie jar and shuts the browser down.
func (s *Session) Close() {
	if s.cfg.CookiePath != "" {
		if err := s.saveCookies(); err != nil {
			zap.L().Warn("browser: cookie jar not saved", zap.Error(err))
		}
	}
	if err := s.browser.Close(); err != nil {
		zap.L().Warn("browser: close", zap.Error(err))
	}
	s.launcher.Cleanup()
}

func (s *Session) newPage(url string) (*rod.Page, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, err
	}
	err = (proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}).Call(p)
	if err != nil {
		zap.L().Debug("browser: user agent override failed", zap.Error(err))
	}
	return p, nil
}
