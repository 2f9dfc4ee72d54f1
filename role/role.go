// Package role drives the Montreal property-assessment search: navigate to
// the address form, fill it, pick the matching result, and extract the
// record from the final page. Every lookup resolves to a status-tagged
// record; auth walls are recovered once per lookup via auto-login.
package role

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MugiZer/roleval/browser"
	"github.com/MugiZer/roleval/extract"
	"github.com/MugiZer/roleval/locator"
	"github.com/MugiZer/roleval/retry"
)

// Status values written to the output record. These exact strings are what
// the CSV and Sheets consumers key on.
const (
	StatusOK              = "ok"
	StatusNotFound        = "not_found"
	StatusMultipleMatches = "multiple_matches"
	StatusAuthRequired    = "error:auth_required"
	StatusFormFillFailed  = "form_fill_failed"
	StatusClickFailed     = "click_failed"
	StatusTimeout         = "timeout"
)

// authWall is the internal marker for "a login page interrupted the flow";
// it becomes StatusAuthRequired only once recovery is exhausted.
const authWall = "auth_required"

// Cache is the lookup store consulted before and written after a search.
type Cache interface {
	Get(ctx context.Context, key string) (extract.Record, bool, error)
	Set(ctx context.Context, key string, rec extract.Record) error
}

// Limiter paces actions against the site.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config holds the scraper's endpoints and credentials.
type Config struct {
	BaseURL   string
	HomeURL   string
	StreetAPI string

	LoginEmail    string
	LoginPassword string

	// MaxAttempts bounds both the outer search retry and the street
	// suggestion retry.
	MaxAttempts int
	// DelayAfterActions enables the jittered pause between page actions.
	DelayAfterActions bool

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://montreal.ca/role-evaluation-fonciere/adresse"
	}
	if c.HomeURL == "" {
		c.HomeURL = "https://montreal.ca/"
	}
	if c.StreetAPI == "" {
		c.StreetAPI = "https://montreal.ca/info-recherche/api/evaluation-fonciere/gem/streets"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: locator.TimeoutNetwork}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scraper runs address lookups against one browser page.
type Scraper struct {
	page    browser.Page
	finder  *locator.Finder
	cache   Cache
	limiter Limiter
	cfg     Config
}

// New returns a Scraper on page. cache and limiter may be nil to disable
// caching and pacing.
func New(page browser.Page, cache Cache, limiter Limiter, cfg Config) *Scraper {
	cfg.defaults()
	return &Scraper{
		page:    page,
		finder:  locator.NewFinder(page, cfg.Logger),
		cache:   cache,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Finder exposes the scraper's locator for pre-flight selector validation.
func (s *Scraper) Finder() *locator.Finder { return s.finder }

// OpenSearchPage navigates to the search form without running a lookup,
// used by the pre-flight selector check.
func (s *Scraper) OpenSearchPage() error {
	return s.page.Navigate(s.cfg.BaseURL)
}

var (
	listURLRe   = regexp.MustCompile(locator.SearchPagePattern)
	resultURLRe = regexp.MustCompile(locator.ResultsPagePattern)
)

// Fetch resolves one address to a record. The record always carries the
// full output key set with a status; lookup failures become statuses, not
// errors. Only ctx-level failures return an error.
func (s *Scraper) Fetch(ctx context.Context, q AddressQuery) (extract.Record, error) {
	if s.cache != nil {
		if rec, ok, err := s.cache.Get(ctx, q.CacheKey()); err == nil && ok {
			s.cfg.Logger.Info("cache hit", "address", q.RawAddress)
			return rec, nil
		}
	}
	s.cfg.Logger.Info("processing address", "address", q.RawAddress, "borough", q.Borough)

	var status string
	var rec extract.Record
	err := retry.Do(ctx, s.cfg.MaxAttempts, func() error {
		var err error
		status, rec, err = s.performSearch(ctx, q)
		if err != nil {
			var nf *locator.NotFoundError
			if errors.As(err, &nf) {
				// Markup drift, retrying won't help.
				return retry.Permanent(err)
			}
			s.cfg.Logger.Warn("search attempt failed", "address", q.RawAddress, "url", s.page.URL(), "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec = extract.NewRecord()
		rec["status"] = exceptionStatus(err)
		return rec, nil
	}

	if rec == nil {
		rec = extract.NewRecord()
	}
	if status == StatusOK {
		rec["status"] = StatusOK
		rec["last_fetched_at"] = time.Now().UTC().Format(time.RFC3339)
		rec["source_url"] = s.page.URL()
		if s.cache != nil {
			if err := s.cache.Set(ctx, q.CacheKey(), rec); err != nil {
				s.cfg.Logger.Warn("cache write failed", "key", q.CacheKey(), "error", err)
			}
		}
		return rec, nil
	}
	if rec["status"] == "" {
		rec["status"] = status
	}
	return rec, nil
}

type searchState int

const (
	stateNavigating searchState = iota
	stateFormFilling
	stateSelecting
	stateParsing
)

// performSearch runs the lookup state machine once. attemptedLogin is
// deliberately a local: each invocation gets exactly one auto-login.
func (s *Scraper) performSearch(ctx context.Context, q AddressQuery) (string, extract.Record, error) {
	attemptedLogin := false
	state := stateNavigating
	for {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		switch state {
		case stateNavigating:
			if err := s.page.Navigate(s.cfg.BaseURL); err != nil {
				return "", nil, err
			}
			if err := s.page.WaitLoad(locator.TimeoutPageLoad); err != nil {
				s.cfg.Logger.Debug("page load timed out, reloading", "error", err)
				if err := s.page.Reload(); err != nil {
					return "", nil, err
				}
				if err := s.page.WaitLoad(locator.TimeoutPageLoad); err != nil {
					return "", nil, err
				}
			}
			if s.onLoginPage() {
				s.cfg.Logger.Info("auth wall during navigation", "url", s.page.URL())
				if attemptedLogin || !s.ensureAuthenticated(ctx) {
					return StatusAuthRequired, nil, nil
				}
				attemptedLogin = true
				continue
			}
			s.pause(ctx)
			state = stateFormFilling

		case stateFormFilling:
			if status := s.fillForm(ctx, q); status != "" {
				return status, nil, nil
			}
			s.pause(ctx)
			state = stateSelecting

		case stateSelecting:
			switch status := s.selectAddress(q); status {
			case authWall:
				s.cfg.Logger.Info("auth wall after submission", "url", s.page.URL())
				if attemptedLogin || !s.ensureAuthenticated(ctx) {
					return StatusAuthRequired, nil, nil
				}
				attemptedLogin = true
				state = stateNavigating
			case StatusOK:
				s.pause(ctx)
				state = stateParsing
			default:
				return status, nil, nil
			}

		case stateParsing:
			return StatusOK, s.parseFinalPage(ctx), nil
		}
	}
}

// fillForm fills the civic number and street combobox and submits. It
// returns "" on success or a terminal status.
func (s *Scraper) fillForm(ctx context.Context, q AddressQuery) string {
	if !s.finder.Fill(locator.Field("search_form", "civic_number"), q.CivicNumber, locator.TimeoutVisible) {
		return StatusFormFillFailed
	}

	suggestion, err := s.bestStreetSuggestion(ctx, q)
	if err != nil {
		s.cfg.Logger.Debug("street suggestion lookup failed", "street", q.StreetName, "error", err)
		suggestion = nil
	}

	combobox := locator.Field("search_form", "street_name_combobox")
	if suggestion != nil && suggestion.display() != "" {
		if !s.finder.Fill(combobox, suggestion.display(), locator.TimeoutVisible) {
			return StatusFormFillFailed
		}
		if err := s.setHiddenStreetFields(suggestion); err != nil {
			s.cfg.Logger.Debug("hidden field injection failed", "error", err)
		}
	} else if !s.finder.Fill(combobox, q.StreetName, locator.TimeoutVisible) {
		return StatusFormFillFailed
	}

	submit, err := s.finder.Find(locator.Field("search_form", "submit_button"), browser.StateAttached, locator.TimeoutAttached)
	if err != nil {
		return StatusFormFillFailed
	}
	if err := submit.Click(); err != nil {
		s.cfg.Logger.Error("submit click failed", "selector", submit.Selector, "error", err)
		return StatusFormFillFailed
	}
	if err := s.page.WaitIdle(locator.TimeoutDefault); err != nil {
		s.cfg.Logger.Debug("page did not settle after submit", "error", err)
	}
	return ""
}

const hiddenFieldScript = `(fields) => {
	for (const [name, value] of Object.entries(fields)) {
		const el = document.querySelector("input[name='" + name + "']");
		if (el) {
			el.value = value || "";
		}
	}
}`

// setHiddenStreetFields copies the suggestion's disambiguation values into
// the form's hidden inputs, the same thing the site's autocomplete widget
// does on selection.
func (s *Scraper) setHiddenStreetFields(sug *StreetSuggestion) error {
	_, err := s.page.Eval(hiddenFieldScript, sug.fields())
	return err
}

// selectAddress picks the result-list entry matching the query. Returns
// one of ok/not_found/multiple_matches/click_failed/timeout, or authWall.
func (s *Scraper) selectAddress(q AddressQuery) string {
	if s.onLoginPage() {
		return authWall
	}
	if err := s.page.WaitURL(listURLRe, locator.TimeoutMedium); err != nil {
		return StatusNotFound
	}

	items := s.resultItems()
	if len(items) == 0 {
		return StatusNotFound
	}

	target := q.normalizedAddress()
	matched := -1
	for i, item := range items {
		text, ok := itemAddress(item)
		if !ok {
			continue
		}
		if Normalize(text) == target {
			matched = i
			break
		}
	}
	if matched < 0 {
		if len(items) > 1 {
			return StatusMultipleMatches
		}
		// Single candidate: trust the site's own filtering.
		matched = 0
	}

	if !s.clickSelect(items[matched]) {
		return StatusClickFailed
	}
	if err := s.page.WaitURL(resultURLRe, locator.TimeoutMedium); err != nil {
		return StatusTimeout
	}
	if s.onLoginPage() {
		return authWall
	}
	if err := s.page.WaitIdle(locator.TimeoutLong); err != nil {
		s.cfg.Logger.Debug("result page did not settle", "error", err)
	}
	return StatusOK
}

func (s *Scraper) resultItems() []browser.Element {
	for _, sel := range locator.Field("address_selection", "list_items") {
		items, err := s.page.QueryAll(sel)
		if err == nil && len(items) > 0 {
			return items
		}
	}
	return nil
}

func itemAddress(item browser.Element) (string, bool) {
	for _, sel := range locator.Field("address_selection", "address_description") {
		dd, ok, err := item.Query(sel)
		if err != nil || !ok {
			continue
		}
		text, err := dd.Text()
		if err != nil {
			continue
		}
		return text, true
	}
	return "", false
}

func (s *Scraper) clickSelect(item browser.Element) bool {
	for _, sel := range locator.Field("address_selection", "select_button") {
		btn, ok, err := item.Query(sel)
		if err != nil || !ok {
			continue
		}
		if err := btn.Click(); err != nil {
			s.cfg.Logger.Error("select click failed", "selector", sel, "error", err)
			return false
		}
		return true
	}
	s.cfg.Logger.Error("no select control found on matched item")
	return false
}

// parseFinalPage extracts the record, preferring the build-data JSON
// endpoint over the rendered HTML. Any failure on the JSON path falls
// through silently.
func (s *Scraper) parseFinalPage(ctx context.Context) extract.Record {
	raw, err := s.page.Eval(`() => window.__NEXT_DATA__ || null`)
	if err != nil {
		s.cfg.Logger.Debug("unable to read build data", "error", err)
	}
	if nextData, ok := raw.(map[string]any); ok {
		for _, u := range candidateDataURLs(nextData) {
			s.pause(ctx)
			body, err := s.page.FetchJSON(u)
			if err != nil {
				s.cfg.Logger.Debug("data endpoint fetch failed", "url", u, "error", err)
				continue
			}
			rec, err := extract.ParseResultJSONBytes(body)
			if err != nil {
				s.cfg.Logger.Debug("data endpoint payload unusable", "url", u, "error", err)
				continue
			}
			s.cfg.Logger.Info("parsed result via data endpoint", "url", u)
			return rec
		}
	}

	html, err := s.page.HTML()
	if err != nil {
		s.cfg.Logger.Error("unable to read result page html", "error", err)
		return extract.NewRecord()
	}
	return extract.ParseResultPage(html)
}

// candidateDataURLs builds the same-origin data-endpoint URLs from the
// page's build id, locale and optional asset prefix.
func candidateDataURLs(nextData map[string]any) []string {
	buildID, _ := nextData["buildId"].(string)
	if buildID == "" {
		return nil
	}
	locale, _ := nextData["locale"].(string)
	if locale == "" {
		locale, _ = nextData["defaultLocale"].(string)
	}
	if locale == "" {
		locale = "fr-CA"
	}
	const base = "https://montreal.ca"
	const path = "/role-evaluation-fonciere/adresse/liste"
	urls := []string{base + "/_next/data/" + buildID + "/" + locale + path + ".json"}

	prefix, _ := nextData["assetPrefix"].(string)
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" {
		prefixed := base + prefix + "/_next/data/" + buildID + "/" + locale + path + ".json"
		if prefixed != urls[0] {
			urls = append(urls, prefixed)
		}
	}
	return urls
}

// onLoginPage reports whether the current page is an authentication wall,
// by URL marker or by the presence of the sign-in email input.
func (s *Scraper) onLoginPage() bool {
	u := strings.ToLower(s.page.URL())
	for _, marker := range locator.LoginURLMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	for _, sel := range locator.Field("login", "email_input") {
		if _, ok, err := s.page.Query(sel); err == nil && ok {
			return true
		}
	}
	return false
}

// ensureAuthenticated signs in with the configured credentials and
// navigates back to the search page. It reports whether the wall cleared.
func (s *Scraper) ensureAuthenticated(ctx context.Context) bool {
	if s.cfg.LoginEmail == "" || s.cfg.LoginPassword == "" {
		s.cfg.Logger.Error("authentication required but no credentials configured")
		return false
	}
	s.cfg.Logger.Info("signing in with configured credentials")
	if err := s.login(ctx); err != nil {
		s.cfg.Logger.Error("login failed", "error", err)
		return false
	}
	if err := s.page.Navigate(s.cfg.BaseURL); err != nil {
		s.cfg.Logger.Error("post-login navigation failed", "error", err)
		return false
	}
	return !s.onLoginPage()
}

func (s *Scraper) login(ctx context.Context) error {
	if err := s.page.Navigate(s.cfg.HomeURL); err != nil {
		return err
	}
	if !s.finder.Click(locator.Field("login", "login_button"), locator.TimeoutVisible) {
		return errors.New("role: login button not clickable")
	}
	if !s.finder.Fill(locator.Field("login", "email_input"), s.cfg.LoginEmail, locator.TimeoutVisible) {
		return errors.New("role: email input not fillable")
	}
	if !s.finder.Fill(locator.Field("login", "password_input"), s.cfg.LoginPassword, locator.TimeoutVisible) {
		return errors.New("role: password input not fillable")
	}
	if !s.finder.Click(locator.Field("login", "submit_button"), locator.TimeoutVisible) {
		return errors.New("role: login submit not clickable")
	}
	if err := s.page.WaitIdle(locator.TimeoutNetwork); err != nil {
		s.cfg.Logger.Debug("page did not settle after login", "error", err)
	}
	s.pause(ctx)
	return nil
}

func (s *Scraper) pause(ctx context.Context) {
	if s.cfg.DelayAfterActions && s.limiter != nil {
		_ = s.limiter.Wait(ctx)
	}
}

// exceptionStatus renders err as the terminal exception status, message
// truncated to keep CSV cells sane.
func exceptionStatus(err error) string {
	msg := err.Error()
	if runes := []rune(msg); len(runes) > 100 {
		msg = string(runes[:100])
	}
	return "error:exception:" + msg
}
