package apply

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"applybot-engine/internal/browser"
	"applybot-engine/internal/platform"
	"applybot-engine/internal/session"
	"applybot-engine/internal/store"
)

func testPlatform() platform.Platform {
	return platform.Platform{
		Name:             "TestBoard",
		Auth:             platform.AuthCredentials,
		LoginPagePattern: "login",
		Login: platform.LoginForm{
			FormSelector: "#signin",
			UserField:    "username",
			PassField:    "password",
		},
		Steps: []platform.ApplyStep{
			{Name: "apply", Selector: "a#apply", Timeout: 100 * time.Millisecond},
			{Name: "continue", Selector: "a#continue", Timeout: 100 * time.Millisecond},
			{Name: "refuse-notifications", Selector: "a#refuse", Timeout: 30 * time.Millisecond, Optional: true},
			{Name: "finalize", Selector: "a#finalize", Timeout: 50 * time.Millisecond, Final: true},
		},
	}
}

func newDeps(t *testing.T) (*Deps, *sql.DB) {
	t.Helper()
	sess, err := browser.NewSession(browser.Options{
		PollInterval: 10 * time.Millisecond,
		ReqPerSec:    1000,
	})
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	loggedIn := true
	return &Deps{
		DB:       db.Pool,
		Sess:     sess,
		Platform: testPlatform(),
		Creds:    session.Credentials{Email: "me@example.com", Password: "hunter2"},
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RunID:    "run-test",
		LoggedIn: &loggedIn,
	}, db.Pool
}

func mustPosting(t *testing.T, db *sql.DB, url string) store.Posting {
	t.Helper()
	p, err := store.CreatePosting(context.Background(), db, url, "Dev", "Acme", "TestBoard")
	require.NoError(t, err)
	return *p
}

// flowServer serves a complete simple-application flow.
func flowServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="apply" href="/flow/step1">apply</a></body></html>`)
	})
	mux.HandleFunc("/flow/step1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="continue" href="/flow/step2">continue</a></body></html>`)
	})
	mux.HandleFunc("/flow/step2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="finalize" href="/flow/done">finish</a></body></html>`)
	})
	mux.HandleFunc("/flow/done", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>thanks</body></html>`)
	})
	// flow that stalls after save-and-continue: custom questions ahead
	mux.HandleFunc("/jobs/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="apply" href="/flow/manual">apply</a></body></html>`)
	})
	mux.HandleFunc("/flow/manual", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="continue" href="/flow/manual2">continue</a></body></html>`)
	})
	mux.HandleFunc("/flow/manual2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>tell us about yourself…</p></body></html>`)
	})
	// flow with a broken required step
	mux.HandleFunc("/jobs/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="apply" href="/flow/dead-end">apply</a></body></html>`)
	})
	mux.HandleFunc("/flow/dead-end", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>unexpected page</p></body></html>`)
	})
	return httptest.NewServer(mux)
}

func TestApply_CleanFlow(t *testing.T) {
	srv := flowServer()
	defer srv.Close()

	d, db := newDeps(t)
	posting := mustPosting(t, db, srv.URL+"/jobs/1")

	attempt, err := Apply(context.Background(), d, posting)
	require.NoError(t, err)
	require.Equal(t, store.StatusApplied, attempt.Status)

	n, err := store.AttemptCountForPosting(context.Background(), db, posting.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestApply_ManualFollowUp(t *testing.T) {
	srv := flowServer()
	defer srv.Close()

	d, db := newDeps(t)
	posting := mustPosting(t, db, srv.URL+"/jobs/2")

	attempt, err := Apply(context.Background(), d, posting)
	require.NoError(t, err)
	require.Equal(t, store.StatusActionRequired, attempt.Status)
	require.Contains(t, attempt.Notes, "manual")
}

func TestApply_RequiredStepMissing(t *testing.T) {
	srv := flowServer()
	defer srv.Close()

	d, db := newDeps(t)
	posting := mustPosting(t, db, srv.URL+"/jobs/3")

	attempt, err := Apply(context.Background(), d, posting)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, attempt.Status)
	require.Contains(t, attempt.Notes, "continue")
}

func TestApply_NavigationFailure(t *testing.T) {
	srv := flowServer()
	srv.Close() // dead portal

	d, db := newDeps(t)
	posting := mustPosting(t, db, srv.URL+"/jobs/1")

	attempt, err := Apply(context.Background(), d, posting)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, attempt.Status)
	require.Contains(t, attempt.Notes, "navigation failed")
}

func TestApply_InlineLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="apply" href="/login/form">apply</a></body></html>`)
	})
	var loginPosted bool
	mux.HandleFunc("/login/form", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<form id="signin" action="/login/submit" method="post">
  <input name="username" value="" />
  <input name="password" value="" />
</form>
</body></html>`)
	})
	mux.HandleFunc("/login/submit", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		loginPosted = r.PostForm.Get("username") == "me@example.com"
		http.Redirect(w, r, "/flow/step1", http.StatusFound)
	})
	mux.HandleFunc("/flow/step1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="continue" href="/flow/step2">continue</a></body></html>`)
	})
	mux.HandleFunc("/flow/step2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="finalize" href="/flow/done">finish</a></body></html>`)
	})
	mux.HandleFunc("/flow/done", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>thanks</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d, db := newDeps(t)
	loggedIn := false
	d.LoggedIn = &loggedIn

	posting := mustPosting(t, db, srv.URL+"/jobs/5")

	attempt, err := Apply(context.Background(), d, posting)
	require.NoError(t, err)
	require.Equal(t, store.StatusApplied, attempt.Status)
	require.True(t, loginPosted)
	require.True(t, loggedIn)
}
