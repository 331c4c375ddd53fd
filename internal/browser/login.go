package browser

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const loginURL = "https://x.com/i/flow/login"

// Login walks the social site's login flow with the given credentials and
// saves the resulting session to the cookie jar. The flow renders each step
// lazily, so every element lookup carries its own wait.
func (s *Session) Login(username, password string) error {
	tab, err := s.newPage(loginURL)
	if err != nil {
		return eris.Wrap(err, "browser: open login tab")
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			zap.L().Warn("browser: close login tab", zap.Error(cerr))
		}
		s.Restore()
	}()

	if err := typeInto(tab, `input[autocomplete="username"]`, username); err != nil {
		return eris.Wrap(err, "browser: enter username")
	}
	if err := clickX(tab, `//span[text()='Next']`); err != nil {
		return eris.Wrap(err, "browser: advance past username")
	}

	if err := typeInto(tab, `input[name="password"]`, password); err != nil {
		return eris.Wrap(err, "browser: enter password")
	}
	if err := clickX(tab, `//span[text()='Log in']`); err != nil {
		return eris.Wrap(err, "browser: submit login")
	}

	// Let the post-login redirect land before capturing the session.
	time.Sleep(5 * time.Second)

	if s.cfg.CookiePath != "" {
		if err := s.saveCookies(); err != nil {
			return eris.Wrap(err, "browser: persist login session")
		}
	}
	zap.L().Info("browser: login complete", zap.String("username", username))
	return nil
}

func typeInto(tab *rod.Page, selector, text string) error {
	el, err := tab.Timeout(20 * time.Second).Element(selector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return err
	}
	time.Sleep(time.Second)
	return nil
}

func clickX(tab *rod.Page, xpath string) error {
	el, err := tab.Timeout(20 * time.Second).ElementX(xpath)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	return nil
}
