// Package locator resolves logical UI fields to live elements by trying an
// ordered list of fallback selectors, so a single markup change on the site
// degrades to a slower lookup instead of a broken run.
package locator

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MugiZer/roleval/browser"
)

// Attempt records one failed selector try, kept for diagnostics only.
type Attempt struct {
	Selector string
	Reason   string
}

// NotFoundError reports that no selector in a fallback list matched.
type NotFoundError struct {
	State    browser.ElemState
	Attempts []Attempt
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "locator: no element found (state=%s, tried %d selectors)", e.State, len(e.Attempts))
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %d. %s: %s", i+1, a.Selector, a.Reason)
	}
	return b.String()
}

// HealthError reports fields whose every selector failed the pre-flight
// presence check. A batch run must not start while this is non-empty.
type HealthError struct {
	Broken []string
}

func (e *HealthError) Error() string {
	return "locator: broken selectors: " + strings.Join(e.Broken, ", ")
}

// Handle is a found element together with the selector that matched it.
// For a detached wait the Element is nil.
type Handle struct {
	browser.Element
	Selector string
}

// Finder runs fallback lookups against one page.
type Finder struct {
	Page browser.Page
	// Settle is the pause between locating an element and acting on it,
	// absorbing layout shifts on this React-heavy site.
	Settle time.Duration
	Logger *slog.Logger
}

// NewFinder returns a Finder with the standard settle delay.
func NewFinder(page browser.Page, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{Page: page, Settle: 100 * time.Millisecond, Logger: logger}
}

// Find tries each selector in order, waiting for the requested state, and
// returns the first success. Every failed try is recorded in the returned
// *NotFoundError when all of them fail.
func (f *Finder) Find(selectors []string, state browser.ElemState, timeout time.Duration) (Handle, error) {
	if timeout <= 0 {
		timeout = TimeoutVisible
	}
	attempts := make([]Attempt, 0, len(selectors))
	for i, sel := range selectors {
		f.Logger.Debug("trying selector", "selector", sel, "attempt", i+1, "of", len(selectors), "state", state)
		el, err := f.Page.WaitFor(sel, state, timeout)
		if err != nil {
			attempts = append(attempts, Attempt{Selector: sel, Reason: err.Error()})
			continue
		}
		f.Logger.Debug("selector matched", "selector", sel)
		return Handle{Element: el, Selector: sel}, nil
	}
	err := &NotFoundError{State: state, Attempts: attempts}
	f.Logger.Error("all selectors failed", "state", state, "tried", len(selectors))
	return Handle{}, err
}

// FindSafe is Find without the error, for speculative checks such as "is a
// login form on screen".
func (f *Finder) FindSafe(selectors []string, state browser.ElemState, timeout time.Duration) (Handle, bool) {
	h, err := f.Find(selectors, state, timeout)
	if err != nil {
		return Handle{}, false
	}
	return h, true
}

// Fill locates a visible input, clears it, types value and verifies the
// element took it. Returns false on any failure, it never panics the loop.
func (f *Finder) Fill(selectors []string, value string, timeout time.Duration) bool {
	h, err := f.Find(selectors, browser.StateVisible, timeout)
	if err != nil {
		f.Logger.Error("fill: element not found", "error", err)
		return false
	}
	time.Sleep(f.Settle)
	if err := h.Input(value); err != nil {
		f.Logger.Error("fill: input failed", "selector", h.Selector, "error", err)
		return false
	}
	got, err := h.Value()
	if err != nil {
		f.Logger.Error("fill: readback failed", "selector", h.Selector, "error", err)
		return false
	}
	if got != value {
		f.Logger.Warn("fill: verification mismatch", "selector", h.Selector, "want", value, "got", got)
		return false
	}
	return true
}

// Click locates a visible element and clicks it. Returns false on failure.
func (f *Finder) Click(selectors []string, timeout time.Duration) bool {
	h, err := f.Find(selectors, browser.StateVisible, timeout)
	if err != nil {
		f.Logger.Error("click: element not found", "error", err)
		return false
	}
	time.Sleep(f.Settle)
	if err := h.Click(); err != nil {
		f.Logger.Error("click failed", "selector", h.Selector, "error", err)
		return false
	}
	return true
}

// Text reads the visible text of the first selector that resolves while
// attached. ok is false when nothing resolved or the read failed.
func (f *Finder) Text(selectors []string, timeout time.Duration) (string, bool) {
	h, err := f.Find(selectors, browser.StateAttached, timeout)
	if err != nil {
		return "", false
	}
	txt, err := h.Element.Text()
	if err != nil {
		f.Logger.Error("text read failed", "selector", h.Selector, "error", err)
		return "", false
	}
	return txt, true
}

// Validate checks that every field in every group still resolves to at
// least one element on the current page. Presence only, not
// interactability. Returns a *HealthError listing the broken fields.
func (f *Finder) Validate(groups map[string]Group) error {
	var broken []string
	for groupName, group := range groups {
		f.Logger.Info("validating selector group", "group", groupName)
		for fieldName, selectors := range group {
			found := false
			for _, sel := range selectors {
				els, err := f.Page.QueryAll(sel)
				if err != nil {
					continue
				}
				if len(els) > 0 {
					found = true
					f.Logger.Debug("selector healthy", "field", groupName+"."+fieldName, "selector", sel)
					break
				}
			}
			if !found {
				broken = append(broken, groupName+"."+fieldName)
				f.Logger.Error("selector broken", "field", groupName+"."+fieldName)
			}
		}
	}
	if len(broken) > 0 {
		sort.Strings(broken)
		return &HealthError{Broken: broken}
	}
	f.Logger.Info("all selectors healthy")
	return nil
}
