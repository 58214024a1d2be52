// Package apply drives the bounded UI step sequence that submits one
// application and classifies the terminal outcome. Every posting ends in
// exactly one finalized attempt; nothing here propagates past the workflow
// boundary.
package apply

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"applybot-engine/internal/browser"
	"applybot-engine/internal/platform"
	"applybot-engine/internal/session"
	"applybot-engine/internal/store"
)

type Deps struct {
	DB       *sql.DB
	Sess     *browser.Session
	Platform platform.Platform
	Creds    session.Credentials
	Log      *slog.Logger
	RunID    string

	// LoggedIn is shared across postings in a run: the first application
	// that hits the login page authenticates for the rest.
	LoggedIn *bool
}

// Apply processes one posting start to finish. The attempt row is persisted
// in Processing before any page interaction and always finalized before
// return. The only returned error is a store failure creating the attempt;
// application-level failures land in the attempt's status and notes.
func Apply(ctx context.Context, d *Deps, posting store.Posting) (*store.Attempt, error) {
	attempt, err := store.CreateAttempt(ctx, d.DB, posting.ID, d.RunID)
	if err != nil {
		return nil, fmt.Errorf("create attempt for posting %d: %w", posting.ID, err)
	}

	log := d.Log.With(
		slog.String("platform", d.Platform.Name),
		slog.String("title", posting.Title),
		slog.Int64("attempt", attempt.ID))

	status, notes := runSteps(ctx, d, posting, log)

	if err := store.UpdateAttempt(ctx, d.DB, attempt.ID, status, notes); err != nil {
		log.Error("finalize attempt failed", slog.Any("err", err))
	}
	attempt.Status = status
	attempt.Notes = notes

	log.Info("application finished", slog.String("status", string(status)))
	return attempt, nil
}

func runSteps(ctx context.Context, d *Deps, posting store.Posting, log *slog.Logger) (store.Status, string) {
	if err := d.Sess.Navigate(ctx, posting.URL); err != nil {
		return store.StatusFailed, "navigation failed: " + err.Error()
	}

	for i, step := range d.Platform.Steps {
		res := d.Sess.ClickWithin(ctx, step.Selector, step.Timeout)

		if step.Final {
			switch res.Outcome {
			case browser.StepCompleted:
				return store.StatusApplied, "Successfully finalized simple application."
			case browser.StepNotPresent:
				return store.StatusActionRequired, "Requires manual answers or next steps."
			default:
				return store.StatusFailed, fmt.Sprintf("step %q: %v", step.Name, res.Err)
			}
		}

		switch res.Outcome {
		case browser.StepCompleted:
			// fall through to the login check
		case browser.StepNotPresent:
			if step.Optional {
				continue
			}
			return store.StatusFailed, fmt.Sprintf("required step %q did not appear", step.Name)
		default:
			return store.StatusFailed, fmt.Sprintf("step %q: %v", step.Name, res.Err)
		}

		// The portal may bounce the first action to its login page.
		if i == 0 && d.Platform.Auth == platform.AuthCredentials &&
			d.LoggedIn != nil && !*d.LoggedIn &&
			d.Platform.OnLoginPage(d.Sess.CurrentURL()) {
			log.Info("login page detected, authenticating inline")
			if err := session.Login(ctx, d.Sess, d.Platform, d.Creds); err != nil {
				return store.StatusFailed, "inline login failed: " + err.Error()
			}
			*d.LoggedIn = true
		}
	}

	// A step list without a Final step means completing every step is the
	// whole flow.
	return store.StatusApplied, "Completed all application steps."
}
