// Package dom defines the minimal rendered-page surface the collectors and
// extractors depend on. The production implementation wraps a live browser
// tab (internal/browser); tests substitute synthetic fixture pages so every
// selector cascade is exercisable without Chrome.
package dom

import "time"

// Page is one isolated browser tab.
//
// Lookup methods return the matched elements and a nil error on success;
// an empty slice is "not found", errors are reserved for a dead tab or a
// malformed query. Text and attribute reads on Element never fail — a
// missing value reads as the empty string.
type Page interface {
	// Navigate loads a URL in this tab and returns once navigation commits.
	Navigate(url string) error

	// WaitFor blocks until the selector matches or the timeout elapses.
	WaitFor(selector string, timeout time.Duration) error

	// WaitBody blocks until the document body is present.
	WaitBody(timeout time.Duration) error

	// Elements matches a CSS selector against the whole document.
	Elements(selector string) ([]Element, error)

	// ElementsX matches an XPath expression against the whole document.
	ElementsX(xpath string) ([]Element, error)

	// HTML returns the current page markup, for regex fallbacks and
	// diagnostic captures.
	HTML() (string, error)

	// ScrollBy scrolls the viewport down by the given pixel delta.
	ScrollBy(y int) error

	// ScrollY reports the current vertical scroll offset.
	ScrollY() (int, error)

	// URL reports the tab's current location.
	URL() string

	// Gone reports whether the underlying window has vanished (for
	// example, closed by the host page). Teardown skips gone tabs.
	Gone() bool

	// Close disposes of the tab.
	Close() error
}

// Element is one rendered DOM node.
type Element interface {
	// ID identifies the node within its page, for de-duplication guards.
	ID() string

	// Text returns the node's visible text, or "" on any failure.
	Text() string

	// Attr returns the named attribute's value, or "" when absent.
	Attr(name string) string

	// Elements matches a CSS selector scoped to this node's subtree.
	Elements(selector string) ([]Element, error)

	// Parent returns the parent node, if any.
	Parent() (Element, bool)
}
