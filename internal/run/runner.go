// Package run sequences one platform's crawl: establish session, then for
// each generated query walk the listing pages, interleaving discovery and
// application per page. Errors local to a posting or a page are contained
// at that scope; only session establishment aborts the run.
package run

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"applybot-engine/internal/apply"
	"applybot-engine/internal/browser"
	"applybot-engine/internal/discover"
	"applybot-engine/internal/events"
	"applybot-engine/internal/platform"
	"applybot-engine/internal/session"
	"applybot-engine/internal/store"
)

type Runner struct {
	DB          *sql.DB
	Sess        *browser.Session
	Platform    platform.Platform
	Creds       session.Credentials
	CookiesFile string

	Keywords []string
	Levels   []string

	// PageCap bounds pagination per query against misbehaving next
	// controls. Zero means the built-in default.
	PageCap    int
	ApplyPause time.Duration

	Log   *slog.Logger
	Hub   *events.Hub
	RunID string
}

type Summary struct {
	StartedAt      time.Time `json:"startedAt"`
	Queries        int       `json:"queries"`
	Pages          int       `json:"pages"`
	NewPostings    int       `json:"newPostings"`
	Applied        int       `json:"applied"`
	ActionRequired int       `json:"actionRequired"`
	Failed         int       `json:"failed"`
}

const defaultPageCap = 50

// Run executes the full crawl for the runner's platform. The browser
// session is torn down on every exit path; an orphaned session is an
// external resource leak.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{StartedAt: time.Now().UTC()}
	defer r.Sess.Close()

	log := r.Log.With(slog.String("platform", r.Platform.Name), slog.String("run", r.RunID))

	if err := session.Establish(ctx, r.Sess, r.Platform, r.CookiesFile, log); err != nil {
		return sum, err
	}

	// Cookie-replay platforms arrive authenticated; credential platforms
	// log in lazily during the first application.
	loggedIn := r.Platform.Auth == platform.AuthCookies

	pageCap := r.PageCap
	if pageCap <= 0 {
		pageCap = defaultPageCap
	}

	queries := discover.Queries(r.Keywords, r.Levels)
	for _, term := range queries {
		sum.Queries++
		if err := r.runQuery(ctx, term, pageCap, &loggedIn, &sum, log); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			log.Error("query aborted", slog.String("term", term), slog.Any("err", err))
		}
	}

	r.publish(events.TypeRunFinished, sum)
	log.Info("run finished",
		slog.Int("new", sum.NewPostings),
		slog.Int("applied", sum.Applied),
		slog.Int("action_required", sum.ActionRequired),
		slog.Int("failed", sum.Failed))
	return sum, nil
}

func (r *Runner) runQuery(ctx context.Context, term string, pageCap int, loggedIn *bool, sum *Summary, log *slog.Logger) error {
	if err := r.Sess.Navigate(ctx, r.Platform.SearchURL(term)); err != nil {
		return err
	}
	session.DismissCookieBanner(ctx, r.Sess, r.Platform)
	log.Info("query", slog.String("term", term))

	for page := 1; page <= pageCap; page++ {
		sum.Pages++

		scan, err := discover.ScanPage(ctx, r.Sess, r.DB, r.Platform, log)
		if err != nil {
			return err
		}
		sum.NewPostings += len(scan.New)
		for _, p := range scan.New {
			r.publish(events.TypePostingCreated, p)
		}

		if len(scan.New) > 0 {
			// Remember the exact listing URL: query and pagination state
			// may not round-trip through re-derivation.
			listURL := r.Sess.CurrentURL()

			r.applyBatch(ctx, scan.New, loggedIn, sum, log)

			if err := r.Sess.Navigate(ctx, listURL); err != nil {
				return err
			}
		}

		more, err := discover.NextPage(ctx, r.Sess, r.Platform)
		if err != nil {
			log.Warn("pagination failed, ending query", slog.Any("err", err))
			return nil
		}
		if !more {
			return nil
		}
		if page == pageCap {
			log.Warn("page cap reached, ending query",
				slog.String("term", term), slog.Int("cap", pageCap))
		}
	}
	return nil
}

// applyBatch applies to every posting in page order. A failing posting
// records its attempt and the batch moves on.
func (r *Runner) applyBatch(ctx context.Context, postings []store.Posting, loggedIn *bool, sum *Summary, log *slog.Logger) {
	deps := &apply.Deps{
		DB:       r.DB,
		Sess:     r.Sess,
		Platform: r.Platform,
		Creds:    r.Creds,
		Log:      log,
		RunID:    r.RunID,
		LoggedIn: loggedIn,
	}

	for _, p := range postings {
		attempt, err := apply.Apply(ctx, deps, p)
		if err != nil {
			log.Error("attempt not recorded", slog.Int64("posting", p.ID), slog.Any("err", err))
			continue
		}
		switch attempt.Status {
		case store.StatusApplied:
			sum.Applied++
		case store.StatusActionRequired:
			sum.ActionRequired++
		case store.StatusFailed:
			sum.Failed++
		}
		r.publish(events.TypeAttemptFinished, attempt)

		if r.ApplyPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.ApplyPause):
			}
		}
	}
}

func (r *Runner) publish(typ string, data any) {
	if r.Hub == nil {
		return
	}
	r.Hub.Publish(events.Make(r.RunID, typ, data))
}
