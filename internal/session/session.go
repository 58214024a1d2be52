// Package session establishes an authenticated browsing session per
// platform, by credential submission or by replaying captured session
// tokens. A failure here aborts the platform's run before any scraping.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"applybot-engine/internal/browser"
	"applybot-engine/internal/platform"
)

type FailureKind string

const (
	KindTokenSourceUnavailable FailureKind = "token-source-unavailable"
	KindTokenRejected          FailureKind = "token-rejected"
	KindLoginFailed            FailureKind = "login-failed"
)

type AuthError struct {
	Kind     FailureKind
	Platform string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s (%s): %v", e.Platform, e.Kind, e.Err)
	}
	return fmt.Sprintf("auth %s (%s)", e.Platform, e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

type Credentials struct {
	Email    string
	Password string
}

// Establish runs the platform's upfront auth strategy. Token-replay
// platforms must confirm the authenticated area before any scraping;
// credential platforms log in lazily via Login when the portal asks.
func Establish(ctx context.Context, sess *browser.Session, p platform.Platform, cookiesFile string, log *slog.Logger) error {
	if p.Auth != platform.AuthCookies {
		return nil
	}

	recs, err := browser.LoadCookieFile(cookiesFile)
	if err != nil {
		return &AuthError{Kind: KindTokenSourceUnavailable, Platform: p.Name, Err: err}
	}

	// Visit the portal once so the host resolves, then replace the jar and
	// reload to let the replayed tokens take effect.
	if err := sess.Navigate(ctx, p.BaseURL); err != nil {
		return &AuthError{Kind: KindTokenRejected, Platform: p.Name, Err: err}
	}
	if err := sess.SetCookies(p.BaseURL, recs); err != nil {
		return &AuthError{Kind: KindTokenRejected, Platform: p.Name, Err: err}
	}
	if err := sess.Reload(ctx); err != nil {
		return &AuthError{Kind: KindTokenRejected, Platform: p.Name, Err: err}
	}

	if !p.LoggedIn(sess.CurrentURL()) {
		return &AuthError{
			Kind:     KindTokenRejected,
			Platform: p.Name,
			Err:      fmt.Errorf("landed on %s, not the authenticated area", sess.CurrentURL()),
		}
	}

	log.Info("session established via token replay", slog.String("platform", p.Name))
	return nil
}

// Login submits the platform's login form with the given credentials. Called
// inline by the apply flow when the portal redirects to its login page.
func Login(ctx context.Context, sess *browser.Session, p platform.Platform, creds Credentials) error {
	DismissCookieBanner(ctx, sess, p)

	res := sess.SubmitForm(ctx, p.Login.FormSelector, map[string]string{
		p.Login.UserField: creds.Email,
		p.Login.PassField: creds.Password,
	})
	switch res.Outcome {
	case browser.StepNotPresent:
		return &AuthError{Kind: KindLoginFailed, Platform: p.Name, Err: fmt.Errorf("login form %q not found", p.Login.FormSelector)}
	case browser.StepFailed:
		return &AuthError{Kind: KindLoginFailed, Platform: p.Name, Err: res.Err}
	}

	if p.OnLoginPage(sess.CurrentURL()) {
		return &AuthError{Kind: KindLoginFailed, Platform: p.Name, Err: fmt.Errorf("still on login page after submit")}
	}
	return nil
}

// DismissCookieBanner clicks the platform's consent control if one is
// declared. Best effort; an absent banner is the normal case.
func DismissCookieBanner(ctx context.Context, sess *browser.Session, p platform.Platform) {
	if p.CookieBanner == "" {
		return
	}
	_ = sess.ClickWithin(ctx, p.CookieBanner, 2*time.Second)
}
