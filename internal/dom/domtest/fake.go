// Package domtest provides fixture implementations of the dom interfaces.
// A FakePage maps selector strings directly to element slices, so tests
// declare exactly which probes hit and which miss.
package domtest

import (
	"fmt"
	"time"

	"github.com/harborview/coinwatch/internal/dom"
)

// FakeElement is a synthetic DOM node.
type FakeElement struct {
	NodeID   string
	TextV    string
	Attrs    map[string]string
	Children map[string][]*FakeElement
	ParentEl *FakeElement
}

var _ dom.Element = (*FakeElement)(nil)

// NewElement creates an element with the given id and text.
func NewElement(id, text string) *FakeElement {
	return &FakeElement{NodeID: id, TextV: text}
}

// WithAttr sets an attribute and returns the element.
func (e *FakeElement) WithAttr(name, value string) *FakeElement {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[name] = value
	return e
}

// WithChild registers children under a selector and returns the element.
func (e *FakeElement) WithChild(selector string, children ...*FakeElement) *FakeElement {
	if e.Children == nil {
		e.Children = make(map[string][]*FakeElement)
	}
	for _, c := range children {
		if c.ParentEl == nil {
			c.ParentEl = e
		}
	}
	e.Children[selector] = append(e.Children[selector], children...)
	return e
}

// WithParent sets the parent node and returns the element.
func (e *FakeElement) WithParent(p *FakeElement) *FakeElement {
	e.ParentEl = p
	return e
}

func (e *FakeElement) ID() string   { return e.NodeID }
func (e *FakeElement) Text() string { return e.TextV }

func (e *FakeElement) Attr(name string) string {
	return e.Attrs[name]
}

func (e *FakeElement) Elements(selector string) ([]dom.Element, error) {
	return toDOM(e.Children[selector]), nil
}

func (e *FakeElement) Parent() (dom.Element, bool) {
	if e.ParentEl == nil {
		return nil, false
	}
	return e.ParentEl, true
}

// FakePage is a synthetic page keyed by literal selector strings.
type FakePage struct {
	Sel     map[string][]*FakeElement
	XPath   map[string][]*FakeElement
	HTMLSrc string
	Loc     string

	Closed   bool
	GoneFlag bool
	ScrollYs []int // successive ScrollY results; last value repeats
	scrollN  int
	NavErr   error
	WaitErr  error

	NavigatedTo []string
}

var _ dom.Page = (*FakePage)(nil)

// NewPage creates an empty fixture page.
func NewPage() *FakePage {
	return &FakePage{
		Sel:   make(map[string][]*FakeElement),
		XPath: make(map[string][]*FakeElement),
	}
}

// WithElements registers elements for a CSS selector and returns the page.
func (p *FakePage) WithElements(selector string, els ...*FakeElement) *FakePage {
	p.Sel[selector] = append(p.Sel[selector], els...)
	return p
}

// WithElementsX registers elements for an XPath expression and returns the page.
func (p *FakePage) WithElementsX(xpath string, els ...*FakeElement) *FakePage {
	p.XPath[xpath] = append(p.XPath[xpath], els...)
	return p
}

// WithHTML sets the raw markup returned by HTML.
func (p *FakePage) WithHTML(src string) *FakePage {
	p.HTMLSrc = src
	return p
}

func (p *FakePage) Navigate(url string) error {
	p.NavigatedTo = append(p.NavigatedTo, url)
	p.Loc = url
	return p.NavErr
}

func (p *FakePage) WaitFor(string, time.Duration) error { return p.WaitErr }
func (p *FakePage) WaitBody(time.Duration) error        { return p.WaitErr }

func (p *FakePage) Elements(selector string) ([]dom.Element, error) {
	return toDOM(p.Sel[selector]), nil
}

func (p *FakePage) ElementsX(xpath string) ([]dom.Element, error) {
	return toDOM(p.XPath[xpath]), nil
}

func (p *FakePage) HTML() (string, error) { return p.HTMLSrc, nil }

func (p *FakePage) ScrollBy(int) error { return nil }

func (p *FakePage) ScrollY() (int, error) {
	if len(p.ScrollYs) == 0 {
		return 0, nil
	}
	i := p.scrollN
	if i >= len(p.ScrollYs) {
		i = len(p.ScrollYs) - 1
	}
	p.scrollN++
	return p.ScrollYs[i], nil
}

func (p *FakePage) URL() string { return p.Loc }
func (p *FakePage) Gone() bool  { return p.GoneFlag }

func (p *FakePage) Close() error {
	if p.Closed {
		return fmt.Errorf("domtest: page already closed")
	}
	p.Closed = true
	return nil
}

func toDOM(els []*FakeElement) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out
}
