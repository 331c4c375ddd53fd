package browser

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/rotisserie/eris"

	"github.com/harborview/coinwatch/internal/dom"
)

// page adapts a rod tab to the dom.Page surface.
type page struct {
	p *rod.Page
}

var _ dom.Page = (*page)(nil)

func (pg *page) Navigate(url string) error {
	return eris.Wrapf(pg.p.Navigate(url), "browser: navigate %s", url)
}

func (pg *page) WaitFor(selector string, timeout time.Duration) error {
	_, err := pg.p.Timeout(timeout).Element(selector)
	return eris.Wrapf(err, "browser: wait for %s", selector)
}

func (pg *page) WaitBody(timeout time.Duration) error {
	return pg.WaitFor("body", timeout)
}

func (pg *page) Elements(selector string) ([]dom.Element, error) {
	els, err := pg.p.Elements(selector)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: query %s", selector)
	}
	return wrapElements(els), nil
}

func (pg *page) ElementsX(xpath string) ([]dom.Element, error) {
	els, err := pg.p.ElementsX(xpath)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: query xpath %s", xpath)
	}
	return wrapElements(els), nil
}

func (pg *page) HTML() (string, error) {
	html, err := pg.p.HTML()
	return html, eris.Wrap(err, "browser: read page html")
}

func (pg *page) ScrollBy(y int) error {
	_, err := pg.p.Eval(`(y) => window.scrollBy(0, y)`, y)
	return eris.Wrap(err, "browser: scroll")
}

func (pg *page) ScrollY() (int, error) {
	res, err := pg.p.Eval(`() => window.scrollY`)
	if err != nil {
		return 0, eris.Wrap(err, "browser: read scroll offset")
	}
	return res.Value.Int(), nil
}

func (pg *page) URL() string {
	info, err := pg.p.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (pg *page) Gone() bool {
	_, err := pg.p.Info()
	return err != nil
}

func (pg *page) Close() error {
	return eris.Wrap(pg.p.Close(), "browser: close tab")
}

// element adapts a rod element to the dom.Element surface.
type element struct {
	el *rod.Element
}

var _ dom.Element = (*element)(nil)

func (e *element) ID() string {
	return string(e.el.Object.ObjectID)
}

func (e *element) Text() string {
	t, err := e.el.Text()
	if err != nil {
		return ""
	}
	return t
}

func (e *element) Attr(name string) string {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func (e *element) Elements(selector string) ([]dom.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: query %s", selector)
	}
	return wrapElements(els), nil
}

func (e *element) Parent() (dom.Element, bool) {
	p, err := e.el.Parent()
	if err != nil || p == nil {
		return nil, false
	}
	return &element{el: p}, true
}

func wrapElements(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out
}
