package browser

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"
)

// CookieRecord matches the captured-session export format: flat entries with
// name/value plus the transport attributes needed to reinject them.
type CookieRecord struct {
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Domain string  `json:"domain"`
	Path   string  `json:"path"`
	Expiry float64 `json:"expiry"` // unix seconds; 0 = session cookie
}

func LoadCookieFile(path string) ([]CookieRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []CookieRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}
	return recs, nil
}

// SetCookies replaces the session's jar with a fresh one holding the given
// records, scoped to scopeURL. Replacing rather than merging mirrors
// clearing the browser before replaying a captured session.
func (s *Session) SetCookies(scopeURL string, recs []CookieRecord) error {
	u, err := url.Parse(scopeURL)
	if err != nil {
		return fmt.Errorf("cookie scope url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	cookies := make([]*http.Cookie, 0, len(recs))
	for _, r := range recs {
		c := &http.Cookie{
			Name:   r.Name,
			Value:  r.Value,
			Domain: r.Domain,
			Path:   r.Path,
		}
		if r.Expiry > 0 {
			c.Expires = time.Unix(int64(r.Expiry), 0)
		}
		cookies = append(cookies, c)
	}
	jar.SetCookies(u, cookies)

	s.hc.Jar = jar
	return nil
}
