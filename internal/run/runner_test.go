package run

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
	"applybot-engine/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))
	return db.Pool
}

func newTestSession(t *testing.T) *browser.Session {
	t.Helper()
	s, err := browser.NewSession(browser.Options{
		PollInterval: 10 * time.Millisecond,
		ReqPerSec:    1000,
	})
	require.NoError(t, err)
	return s
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jobItem(id int, title, company string) string {
	return fmt.Sprintf(`<div class="job">
  <a class="link" href="/jobs/%d">open</a>
  <span class="t">%s</span>
  <span class="c">%s</span>
</div>`, id, title, company)
}

func listing(items string, next string) string {
	nextHTML := ""
	if next != "" {
		nextHTML = fmt.Sprintf(`<a class="next" href=%q>next</a>`, next)
	}
	return fmt.Sprintf(`<html><body><div class="results">%s</div>%s</body></html>`, items, nextHTML)
}

// portal is a two-page board with four postings. Posting 2's page has no
// apply control, so its flow fails while the batch continues.
func portal() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing(
			jobItem(1, "Backend Dev", "Acme")+
				jobItem(2, "Data Eng", "Globex")+
				jobItem(3, "SRE", "Initech"),
			"/search2?q="+r.URL.Query().Get("q")))
	})
	mux.HandleFunc("/search2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing(jobItem(4, "Platform Eng", "Hooli"), ""))
	})
	for _, id := range []int{1, 3, 4} {
		mux.HandleFunc(fmt.Sprintf("/jobs/%d", id), func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<html><body><a id="apply" href="/flow/%d">apply</a></body></html>`, id)
		})
	}
	mux.HandleFunc("/jobs/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>listing expired</body></html>`)
	})
	mux.HandleFunc("/flow/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="done" href="/confirm">submit</a></body></html>`)
	})
	mux.HandleFunc("/confirm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>thanks</body></html>`)
	})
	return httptest.NewServer(mux)
}

func portalPlatform(baseURL string) platform.Platform {
	return platform.Platform{
		Name:           "TestBoard",
		Auth:           platform.AuthCredentials,
		SearchTemplate: baseURL + "/search?q=",
		ListContainer:  ".results",
		Item:           ".job",
		ItemLink:       "a.link",
		ItemTitle:      ".t",
		ItemCompany:    ".c",
		NextPage:       "a.next",
		ListTimeout:    100 * time.Millisecond,
		NextTimeout:    50 * time.Millisecond,
		Steps: []platform.ApplyStep{
			{Name: "apply", Selector: "#apply", Timeout: 50 * time.Millisecond},
			{Name: "finalize", Selector: "#done", Timeout: 50 * time.Millisecond, Final: true},
		},
	}
}

func newRunner(t *testing.T, db *sql.DB, p platform.Platform) *Runner {
	t.Helper()
	return &Runner{
		DB:       db,
		Sess:     newTestSession(t),
		Platform: p,
		Keywords: []string{"engineer"},
		Log:      discardLog(),
		RunID:    "run-test",
	}
}

func TestRun_InterleavedDiscoverAndApply(t *testing.T) {
	srv := portal()
	defer srv.Close()

	db := newTestDB(t)
	r := newRunner(t, db, portalPlatform(srv.URL))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, sum.Queries)
	require.Equal(t, 2, sum.Pages)
	require.Equal(t, 4, sum.NewPostings)
	require.Equal(t, 3, sum.Applied)
	require.Equal(t, 1, sum.Failed)

	// Posting 2's broken flow did not stop the rest: every posting holds
	// exactly one finalized attempt.
	postings, err := store.ListPostings(context.Background(), db, 10)
	require.NoError(t, err)
	require.Len(t, postings, 4)
	for _, p := range postings {
		n, err := store.AttemptCountForPosting(context.Background(), db, p.ID)
		require.NoError(t, err)
		require.Equal(t, 1, n, "posting %s", p.URL)
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	srv := portal()
	defer srv.Close()

	db := newTestDB(t)
	p := portalPlatform(srv.URL)

	_, err := newRunner(t, db, p).Run(context.Background())
	require.NoError(t, err)

	sum, err := newRunner(t, db, p).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, sum.NewPostings)
	require.Equal(t, 0, sum.Applied+sum.ActionRequired+sum.Failed)
}

func TestRun_PageCapBoundsPagination(t *testing.T) {
	srv := portal()
	defer srv.Close()

	db := newTestDB(t)
	r := newRunner(t, db, portalPlatform(srv.URL))
	r.PageCap = 1

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, sum.Pages)
	require.Equal(t, 3, sum.NewPostings)
}

func TestRun_TokenReplayFailureAbortsRun(t *testing.T) {
	srv := portal()
	defer srv.Close()

	db := newTestDB(t)
	p := portalPlatform(srv.URL)
	p.Auth = platform.AuthCookies
	p.BaseURL = srv.URL + "/"
	p.LoggedInPattern = "feed"

	r := newRunner(t, db, p)
	r.CookiesFile = "/nonexistent/cookies.json"

	sum, err := r.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, sum.Pages)

	postings, err := store.ListPostings(context.Background(), db, 10)
	require.NoError(t, err)
	require.Empty(t, postings)
}
