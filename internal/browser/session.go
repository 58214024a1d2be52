// Package browser is a stateful page session over net/http: one cookie jar,
// one "current page" document, bounded selector waits. It is the single
// mutable resource of a run and must only be driven by one goroutine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var ErrWaitTimeout = errors.New("browser: wait timed out")

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) applybot/1.0"

type Session struct {
	hc           *http.Client
	limiter      *hostLimiter
	pollInterval time.Duration
	userAgent    string

	current *url.URL
	doc     *goquery.Document
}

type Options struct {
	PollInterval time.Duration
	ReqPerSec    float64
	UserAgent    string
}

func NewSession(opts Options) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.ReqPerSec <= 0 {
		opts.ReqPerSec = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Session{
		hc: &http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
		limiter:      newHostLimiter(opts.ReqPerSec, 2),
		pollInterval: opts.PollInterval,
		userAgent:    opts.UserAgent,
	}, nil
}

// Navigate fetches raw and makes it the current page. Redirects are followed;
// the current URL reflects the final location, which is what login checks
// inspect.
func (s *Session) Navigate(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("navigate parse url: %w", err)
	}
	return s.request(ctx, http.MethodGet, u, nil)
}

// Reload re-fetches the current page.
func (s *Session) Reload(ctx context.Context) error {
	if s.current == nil {
		return errors.New("browser: no current page")
	}
	return s.request(ctx, http.MethodGet, s.current, nil)
}

func (s *Session) CurrentURL() string {
	if s.current == nil {
		return ""
	}
	return s.current.String()
}

func (s *Session) Document() *goquery.Document {
	return s.doc
}

// Find looks up selector on the current page. Nil document yields an empty
// selection, so callers can chain Length() checks safely.
func (s *Session) Find(selector string) *goquery.Selection {
	if s.doc == nil {
		empty, _ := goquery.NewDocumentFromReader(strings.NewReader(""))
		return empty.Find(selector)
	}
	return s.doc.Find(selector)
}

// WaitFor polls the current page until selector matches or timeout passes.
// Between checks the page is re-fetched, since server-rendered listings can
// fill in on retry. Returns ErrWaitTimeout when the deadline passes.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) (*goquery.Selection, error) {
	deadline := time.Now().Add(timeout)
	for {
		if sel := s.Find(selector); sel.Length() > 0 {
			return sel.First(), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
		if s.current != nil {
			if err := s.Reload(ctx); err != nil {
				return nil, err
			}
		}
	}
}

// Close drops page state. The http client keeps no connections worth
// draining beyond its transport defaults, but an explicit teardown keeps the
// release path symmetrical with session establishment.
func (s *Session) Close() {
	s.current = nil
	s.doc = nil
	s.hc.CloseIdleConnections()
}

func (s *Session) request(ctx context.Context, method string, u *url.URL, body url.Values) error {
	if err := s.limiter.waitHost(ctx, u.Host); err != nil {
		return err
	}

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), encodedBody(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)

	res, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("fetch %s: status %d", u.String(), res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	// res.Request.URL is the post-redirect location.
	s.current = res.Request.URL
	s.doc = doc
	return nil
}

func encodedBody(v url.Values) *strings.Reader {
	if v == nil {
		return strings.NewReader("")
	}
	return strings.NewReader(v.Encode())
}
