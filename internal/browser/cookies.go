package browser

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// loadCookies restores a previously saved session, letting scrape runs skip
// the interactive login while the cookies remain valid.
func (s *Session) loadCookies() error {
	data, err := os.ReadFile(s.cfg.CookiePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "browser: read cookie jar")
	}

	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return eris.Wrap(err, "browser: decode cookie jar")
	}
	if len(cookies) == 0 {
		return nil
	}

	if err := s.browser.SetCookies(proto.CookiesToParams(cookies)); err != nil {
		return eris.Wrap(err, "browser: set cookies")
	}
	zap.L().Info("browser: cookie jar restored", zap.Int("cookies", len(cookies)))
	return nil
}

func (s *Session) saveCookies() error {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return eris.Wrap(err, "browser: get cookies")
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return eris.Wrap(err, "browser: encode cookie jar")
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.CookiePath), 0o755); err != nil {
		return eris.Wrap(err, "browser: create cookie dir")
	}
	if err := os.WriteFile(s.cfg.CookiePath, data, 0o600); err != nil {
		return eris.Wrap(err, "browser: write cookie jar")
	}
	zap.L().Debug("browser: cookie jar saved", zap.Int("cookies", len(cookies)))
	return nil
}

// HasCookieJar reports whether a non-empty cookie jar exists at path.
func HasCookieJar(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
