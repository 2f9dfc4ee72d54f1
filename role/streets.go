package role

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MugiZer/roleval/retry"
)

// StreetSuggestion is one entry from the street autocomplete API. The
// hidden search-form fields are populated from it so the site resolves the
// street unambiguously.
type StreetSuggestion struct {
	DisplayName        string
	FullStreetName     string
	StreetGeneric      string
	StreetName         string
	NoCity             string
	BoroughNumber      string
	StreetNameOfficial string
}

// fields returns the suggestion in the shape the page script expects.
func (s *StreetSuggestion) fields() map[string]string {
	return map[string]string{
		"streetGeneric":      s.StreetGeneric,
		"streetName":         s.StreetName,
		"noCity":             s.NoCity,
		"boroughNumber":      s.BoroughNumber,
		"streetNameOfficial": s.StreetNameOfficial,
	}
}

// bestStreetSuggestion queries the autocomplete API and picks the
// suggestion that best matches the query. Throttling (429) and server
// errors are retried with backoff; other HTTP errors mean "no data" and
// return nil without error.
func (s *Scraper) bestStreetSuggestion(ctx context.Context, q AddressQuery) (*StreetSuggestion, error) {
	var picked *StreetSuggestion
	err := retry.Do(ctx, s.cfg.MaxAttempts, func() error {
		s.pause(ctx)
		defer s.pause(ctx)
		suggestions, err := s.fetchSuggestions(ctx, q.StreetName)
		if err != nil {
			return err
		}
		picked = pickSuggestion(suggestions, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

func (s *Scraper) fetchSuggestions(ctx context.Context, street string) ([]*StreetSuggestion, error) {
	params := url.Values{}
	params.Set("q", street)
	params.Set("page", "1")
	params.Set("size", "10")
	reqURL := s.cfg.StreetAPI + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("role: build street request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("role: street lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		s.cfg.Logger.Warn("street suggestion API throttled", "status", resp.StatusCode)
		return nil, fmt.Errorf("role: street lookup status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		s.cfg.Logger.Debug("street suggestion lookup failed", "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("role: read street response: %w", err)
	}
	return decodeSuggestions(body), nil
}

// decodeSuggestions accepts either {"data": [...]} or a bare list. Field
// values are coerced to strings since the API mixes numbers in.
func decodeSuggestions(body []byte) []*StreetSuggestion {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	items, _ := payload.([]any)
	if m, ok := payload.(map[string]any); ok {
		items, _ = m["data"].([]any)
	}
	var out []*StreetSuggestion
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, &StreetSuggestion{
			DisplayName:        jsonField(m, "displayName"),
			FullStreetName:     jsonField(m, "fullStreetName"),
			StreetGeneric:      jsonField(m, "streetGeneric"),
			StreetName:         jsonField(m, "streetName"),
			NoCity:             jsonField(m, "noCity"),
			BoroughNumber:      jsonField(m, "boroughNumber"),
			StreetNameOfficial: jsonField(m, "streetNameOfficial"),
		})
	}
	return out
}

func jsonField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// pickSuggestion chooses among candidates: a borough hint wins first, then
// an exact normalized street-name match, then the first suggestion.
func pickSuggestion(suggestions []*StreetSuggestion, q AddressQuery) *StreetSuggestion {
	if len(suggestions) == 0 {
		return nil
	}
	if borough := NormalizeBorough(q.Borough); borough != "" {
		for _, sug := range suggestions {
			if display := NormalizeBorough(sug.display()); display != "" && strings.Contains(display, borough) {
				return sug
			}
		}
	}
	target := Normalize(q.StreetName)
	for _, sug := range suggestions {
		if Normalize(sug.display()) == target {
			return sug
		}
	}
	return suggestions[0]
}

func (s *StreetSuggestion) display() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.FullStreetName
}
