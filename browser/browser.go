// Package browser manages the Chrome session the scraper drives and defines
// the Page surface the rest of the code consumes. Only this package touches
// Rod; everything above it works against the Page and Element interfaces so
// lookups stay testable without a live browser.
package browser

import (
	"regexp"
	"time"
)

// ElemState is the element state a wait targets.
type ElemState string

const (
	StateAttached ElemState = "attached"
	StateVisible  ElemState = "visible"
	StateHidden   ElemState = "hidden"
	StateDetached ElemState = "detached"
)

// Element is one interactive element on a page.
type Element interface {
	// Input clears the element and types the value.
	Input(value string) error
	// Value reads back the element's current value property.
	Value() (string, error)
	// Click clicks the element.
	Click() error
	// Text returns the element's visible text.
	Text() (string, error)
	// Query finds the first matching descendant without waiting.
	Query(selector string) (Element, bool, error)
	// QueryAll finds all matching descendants without waiting.
	QueryAll(selector string) ([]Element, error)
}

// Page is the browser page surface the scraper drives: navigation, element
// query, content read, and script evaluation.
type Page interface {
	Navigate(url string) error
	Reload() error
	URL() string
	// HTML returns the serialized document.
	HTML() (string, error)
	// Eval runs a JS function on the page and returns its decoded result.
	// Promises are awaited.
	Eval(js string, args ...any) (any, error)
	// FetchJSON issues a fetch from the page context (same-origin cookies
	// and headers apply) and returns the response body.
	FetchJSON(url string) ([]byte, error)
	WaitLoad(timeout time.Duration) error
	// WaitIdle waits for the page to go quiet after an action.
	WaitIdle(timeout time.Duration) error
	// WaitURL polls until the page URL matches the pattern.
	WaitURL(pattern *regexp.Regexp, timeout time.Duration) error
	// Query finds the first match without waiting; ok=false when absent.
	Query(selector string) (Element, bool, error)
	// QueryAll finds all matches without waiting.
	QueryAll(selector string) ([]Element, error)
	// WaitFor waits until a match reaches the state. For StateDetached the
	// returned element is nil once no match remains.
	WaitFor(selector string, state ElemState, timeout time.Duration) (Element, error)
}
