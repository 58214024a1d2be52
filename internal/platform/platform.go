// Package platform declares career portals as configuration records.
// One generic discovery/apply engine consumes these; adding a portal means
// adding locators, not control flow.
package platform

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type AuthStrategy string

const (
	// AuthCredentials submits the login form when a login page shows up
	// mid-flow.
	AuthCredentials AuthStrategy = "credentials"
	// AuthCookies replays a captured session token set before navigating.
	AuthCookies AuthStrategy = "cookies"
)

// ApplyStep is one bounded interaction of the apply flow.
type ApplyStep struct {
	Name     string
	Selector string
	Timeout  time.Duration
	Optional bool // absent within Timeout means "does not apply here"
	Final    bool // absent within Timeout means the rest needs a human
}

type LoginForm struct {
	FormSelector string
	UserField    string // input name for the identity
	PassField    string // input name for the password
}

type Platform struct {
	Name string
	Auth AuthStrategy

	// BaseURL scopes replayed cookies and pre-injection navigation.
	BaseURL string
	// SearchTemplate gets the percent-encoded term appended, then
	// RemoteFilter.
	SearchTemplate string
	RemoteFilter   string

	// LoggedInPattern is a substring of the post-login URL that confirms an
	// authenticated area; LoginPagePattern flags a redirect to the login
	// form.
	LoggedInPattern  string
	LoginPagePattern string
	Login            LoginForm

	// CookieBanner, when set, names an accept control dismissed best-effort
	// on arrival.
	CookieBanner string

	// Listing locators.
	ListContainer string
	Item          string
	ItemLink      string
	ItemTitle     string
	ItemCompany   string
	NoResults     string // affirmative "no results" marker, optional
	NextPage      string
	ListTimeout   time.Duration
	NextTimeout   time.Duration
	// StripQuery drops query and fragment from extracted posting URLs, for
	// portals that decorate listing links with tracking parameters.
	StripQuery bool

	Steps []ApplyStep

	// ConfirmMailFrom marks application-confirmation senders for the
	// post-run mail pass.
	ConfirmMailFrom string
}

// SearchURL builds the query URL for one generated term.
func (p Platform) SearchURL(term string) string {
	return p.SearchTemplate + url.QueryEscape(strings.TrimSpace(term)) + p.RemoteFilter
}

// OnLoginPage reports whether the session's current URL is the login form.
func (p Platform) OnLoginPage(current string) bool {
	return p.LoginPagePattern != "" &&
		strings.Contains(strings.ToLower(current), p.LoginPagePattern)
}

// LoggedIn reports whether the current URL is inside the authenticated area.
func (p Platform) LoggedIn(current string) bool {
	return p.LoggedInPattern != "" &&
		strings.Contains(strings.ToLower(current), p.LoggedInPattern)
}

// ByName resolves a built-in platform adapter.
func ByName(name string) (Platform, error) {
	switch strings.ToLower(name) {
	case "gupy":
		return Gupy(), nil
	case "linkedin":
		return LinkedIn(), nil
	}
	return Platform{}, fmt.Errorf("unknown platform %q", name)
}

// All lists the built-in adapters in a stable order.
func All() []Platform {
	return []Platform{Gupy(), LinkedIn()}
}
