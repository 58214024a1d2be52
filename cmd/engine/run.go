package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"applybot-engine/internal/browser"
	"applybot-engine/internal/config"
	"applybot-engine/internal/emailconfirm"
	"applybot-engine/internal/events"
	"applybot-engine/internal/httpapi"
	"applybot-engine/internal/platform"
	"applybot-engine/internal/run"
	"applybot-engine/internal/secrets"
	"applybot-engine/internal/session"
)

type engine struct {
	cfg       config.Config
	db        *sql.DB
	hub       *events.Hub
	log       *slog.Logger
	runStatus *atomic.Value
}

// runOnce executes one run over the named platform (or all enabled ones).
// Per-platform failures are contained: an auth failure on one portal does
// not stop the next.
func (e *engine) runOnce(ctx context.Context, name string) {
	startedAt := time.Now().UTC()
	e.setStatus(func(st *httpapi.RunStatus) {
		st.Running = true
		st.LastRunAt = startedAt.Format(time.RFC3339)
	})

	var lastErr error
	platforms := e.selectPlatforms(name)
	if len(platforms) == 0 {
		lastErr = fmt.Errorf("no enabled platform matches %q", name)
		e.log.Error("nothing to run", slog.String("platform", name))
	}

	for _, p := range platforms {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if err := e.runPlatform(ctx, p); err != nil {
			lastErr = err
		}
	}

	if lastErr == nil && e.cfg.EmailConfirm.Enabled {
		e.confirmPass(ctx, startedAt)
	}

	e.setStatus(func(st *httpapi.RunStatus) {
		st.Running = false
		if lastErr != nil {
			st.LastError = lastErr.Error()
		} else {
			st.LastError = ""
			st.LastOkAt = time.Now().UTC().Format(time.RFC3339)
		}
	})
}

func (e *engine) runPlatform(ctx context.Context, p platform.Platform) error {
	pcfg := e.cfg.Platforms[strings.ToLower(p.Name)]

	sess, err := browser.NewSession(browser.Options{
		PollInterval: time.Duration(e.cfg.Run.PollIntervalMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}

	creds := session.Credentials{Email: pcfg.Email}
	if p.Auth == platform.AuthCredentials {
		pw, err := secrets.GetPlatformPassword(p.Name, pcfg.Email)
		if err != nil {
			sess.Close()
			e.log.Error("credentials unavailable", slog.String("platform", p.Name), slog.Any("err", err))
			return err
		}
		creds.Password = pw
	}

	r := &run.Runner{
		DB:          e.db,
		Sess:        sess,
		Platform:    p,
		Creds:       creds,
		CookiesFile: pcfg.CookiesFile,
		Keywords:    e.cfg.Search.Keywords,
		Levels:      e.cfg.Search.Levels,
		PageCap:     e.cfg.Run.PageCap,
		ApplyPause:  time.Duration(e.cfg.Run.ApplyPauseSeconds) * time.Second,
		Log:         e.log,
		Hub:         e.hub,
		RunID:       uuid.NewString(),
	}

	if _, err := r.Run(ctx); err != nil {
		var authErr *session.AuthError
		if errors.As(err, &authErr) {
			e.log.Error("platform run aborted",
				slog.String("platform", p.Name),
				slog.String("kind", string(authErr.Kind)),
				slog.Any("err", authErr.Unwrap()))
		} else {
			e.log.Error("platform run failed", slog.String("platform", p.Name), slog.Any("err", err))
		}
		return err
	}
	return nil
}

func (e *engine) confirmPass(ctx context.Context, since time.Time) {
	ec := e.cfg.EmailConfirm
	pw, err := secrets.GetIMAPPassword(ec.Username, ec.IMAPHost)
	if err != nil {
		e.log.Warn("confirmation pass skipped", slog.Any("err", err))
		return
	}
	port := ec.IMAPPort
	if port == 0 {
		port = 993
	}
	_, err = emailconfirm.Check(ctx, e.db, emailconfirm.Config{
		Addr:     fmt.Sprintf("%s:%d", ec.IMAPHost, port),
		Host:     ec.IMAPHost,
		Username: ec.Username,
		Password: pw,
		MaxMails: ec.MaxMails,
	}, e.selectPlatforms("all"), since, e.log)
	if err != nil {
		e.log.Warn("confirmation pass failed", slog.Any("err", err))
	}
}

// selectPlatforms maps the requested name onto enabled built-in adapters.
func (e *engine) selectPlatforms(name string) []platform.Platform {
	var out []platform.Platform
	for _, p := range platform.All() {
		pcfg, ok := e.cfg.Platforms[strings.ToLower(p.Name)]
		if !ok || !pcfg.Enabled {
			continue
		}
		if name != "all" && !strings.EqualFold(name, p.Name) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *engine) setStatus(mut func(*httpapi.RunStatus)) {
	st := httpapi.RunStatus{}
	if v := e.runStatus.Load(); v != nil {
		st = v.(httpapi.RunStatus)
	}
	mut(&st)
	e.runStatus.Store(st)
}
