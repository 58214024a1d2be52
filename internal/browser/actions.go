package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ClickWithin waits for selector up to timeout and activates the first match.
// Anchors navigate to their href; submit controls post their enclosing form.
// An absent control is StepNotPresent, which the caller decides is fine
// (optional step, end of pagination) or fatal (required step).
func (s *Session) ClickWithin(ctx context.Context, selector string, timeout time.Duration) StepResult {
	sel, err := s.WaitFor(ctx, selector, timeout)
	if errors.Is(err, ErrWaitTimeout) {
		return notPresent()
	}
	if err != nil {
		return failed(err)
	}
	return s.activate(ctx, sel)
}

func (s *Session) activate(ctx context.Context, sel *goquery.Selection) StepResult {
	if _, disabled := sel.Attr("disabled"); disabled {
		return notPresent()
	}

	if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
		target, err := s.resolve(href)
		if err != nil {
			return failed(err)
		}
		if err := s.request(ctx, http.MethodGet, target, nil); err != nil {
			return failed(err)
		}
		return completed()
	}

	// Buttons and inputs act on their enclosing form.
	if form := sel.Closest("form"); form.Length() > 0 {
		return s.submit(ctx, form, nil)
	}

	return failed(fmt.Errorf("element %q has no navigation target", goquery.NodeName(sel)))
}

// SubmitForm fills the first form matching formSel with values (overriding
// the form's own defaults) and submits it.
func (s *Session) SubmitForm(ctx context.Context, formSel string, values map[string]string) StepResult {
	form := s.Find(formSel).First()
	if form.Length() == 0 {
		return notPresent()
	}
	// The selector may point inside the form, e.g. at the username input.
	if goquery.NodeName(form) != "form" {
		form = form.Closest("form")
		if form.Length() == 0 {
			return notPresent()
		}
	}
	return s.submit(ctx, form, values)
}

func (s *Session) submit(ctx context.Context, form *goquery.Selection, overrides map[string]string) StepResult {
	fields := url.Values{}
	form.Find("input[name], textarea[name]").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		val, _ := in.Attr("value")
		fields.Set(name, val)
	})
	for k, v := range overrides {
		fields.Set(k, v)
	}

	action, _ := form.Attr("action")
	target, err := s.resolve(action)
	if err != nil {
		return failed(err)
	}

	method := strings.ToUpper(strings.TrimSpace(attrOr(form, "method", http.MethodGet)))
	if method == http.MethodPost {
		if err := s.request(ctx, http.MethodPost, target, fields); err != nil {
			return failed(err)
		}
		return completed()
	}

	target.RawQuery = fields.Encode()
	if err := s.request(ctx, http.MethodGet, target, nil); err != nil {
		return failed(err)
	}
	return completed()
}

// ResolveURL makes href absolute against the current page.
func (s *Session) ResolveURL(href string) (string, error) {
	u, err := s.resolve(href)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// resolve makes href absolute against the current page.
func (s *Session) resolve(href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("bad target %q: %w", href, err)
	}
	if s.current == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("relative target %q with no current page", href)
		}
		return ref, nil
	}
	return s.current.ResolveReference(ref), nil
}

func attrOr(sel *goquery.Selection, name, def string) string {
	if v, ok := sel.Attr(name); ok && v != "" {
		return v
	}
	return def
}
