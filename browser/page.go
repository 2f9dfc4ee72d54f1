package browser

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// rodPage adapts a rod page to the Page interface. All waits are bounded:
// the zero-sleeper clone answers immediately for Query, and explicit
// timeouts bound everything else.
type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

var _ Page = (*rodPage)(nil)

func (p *rodPage) Navigate(url string) error {
	if err := p.page.Timeout(p.timeout).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) Reload() error {
	if err := p.page.Timeout(p.timeout).Reload(); err != nil {
		return fmt.Errorf("browser: reload: %w", err)
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML() (string, error) {
	html, err := p.page.Timeout(p.timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: read html: %w", err)
	}
	return html, nil
}

func (p *rodPage) Eval(js string, args ...any) (any, error) {
	res, err := p.page.Timeout(p.timeout).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Val(), nil
}

// fetchScript runs in the page context so same-origin cookies and headers
// ride along, which the assessment endpoints require.
const fetchScript = `async (url) => {
	const resp = await fetch(url, { headers: { "Accept": "application/json" } });
	if (!resp.ok) {
		throw new Error("fetch " + url + ": status " + resp.status);
	}
	return await resp.text();
}`

func (p *rodPage) FetchJSON(url string) ([]byte, error) {
	res, err := p.page.Timeout(p.timeout).Evaluate(rod.Eval(fetchScript, url).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("browser: fetch %s: %w", url, err)
	}
	return []byte(res.Value.Str()), nil
}

func (p *rodPage) WaitLoad(timeout time.Duration) error {
	if err := p.page.Timeout(timeout).WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load: %w", err)
	}
	return nil
}

func (p *rodPage) WaitIdle(timeout time.Duration) error {
	if err := p.page.Timeout(timeout).WaitIdle(timeout); err != nil {
		return fmt.Errorf("browser: wait idle: %w", err)
	}
	return nil
}

func (p *rodPage) WaitURL(pattern *regexp.Regexp, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if pattern.MatchString(p.URL()) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("browser: url %q did not match %s within %s", p.URL(), pattern, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (p *rodPage) Query(selector string) (Element, bool, error) {
	el, err := p.page.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("browser: query %s: %w", selector, err)
	}
	return &rodElement{el: el, timeout: p.timeout}, true, nil
}

func (p *rodPage) QueryAll(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query all %s: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, timeout: p.timeout})
	}
	return out, nil
}

func (p *rodPage) WaitFor(selector string, state ElemState, timeout time.Duration) (Element, error) {
	if state == StateDetached {
		deadline := time.Now().Add(timeout)
		for {
			els, err := p.page.Elements(selector)
			if err != nil {
				return nil, fmt.Errorf("browser: wait detached %s: %w", selector, err)
			}
			if len(els) == 0 {
				return nil, nil
			}
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("browser: %s still attached after %s", selector, timeout)
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
	el, err := p.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: wait %s %s: %w", state, selector, err)
	}
	switch state {
	case StateVisible:
		if err := el.WaitVisible(); err != nil {
			return nil, fmt.Errorf("browser: wait visible %s: %w", selector, err)
		}
	case StateHidden:
		if err := el.WaitInvisible(); err != nil {
			return nil, fmt.Errorf("browser: wait hidden %s: %w", selector, err)
		}
	}
	return &rodElement{el: el.CancelTimeout(), timeout: p.timeout}, nil
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

var _ Element = (*rodElement)(nil)

// Input selects the current content first so typing replaces it instead of
// appending.
func (e *rodElement) Input(value string) error {
	el := e.el.Timeout(e.timeout)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: select text: %w", err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: input: %w", err)
	}
	return nil
}

func (e *rodElement) Value() (string, error) {
	v, err := e.el.Timeout(e.timeout).Property("value")
	if err != nil {
		return "", fmt.Errorf("browser: read value: %w", err)
	}
	return v.Str(), nil
}

func (e *rodElement) Click() error {
	if err := e.el.Timeout(e.timeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

func (e *rodElement) Text() (string, error) {
	txt, err := e.el.Timeout(e.timeout).Text()
	if err != nil {
		return "", fmt.Errorf("browser: read text: %w", err)
	}
	return txt, nil
}

func (e *rodElement) Query(selector string) (Element, bool, error) {
	el, err := e.el.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("browser: query %s: %w", selector, err)
	}
	return &rodElement{el: el, timeout: e.timeout}, true, nil
}

func (e *rodElement) QueryAll(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query all %s: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, timeout: e.timeout})
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nf *rod.ElementNotFoundError
	return errors.As(err, &nf)
}
