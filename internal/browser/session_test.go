package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(Options{
		PollInterval: 10 * time.Millisecond,
		ReqPerSec:    1000,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNavigateAndFind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><ul id="list"><li>one</li><li>two</li></ul></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))
	require.Equal(t, srv.URL, s.CurrentURL())
	require.Equal(t, 2, s.Find("#list li").Length())
}

func TestNavigate_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/feed", http.StatusFound)
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>feed</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL+"/start"))
	require.Equal(t, srv.URL+"/feed", s.CurrentURL())
}

func TestWaitFor_AppearsOnRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			fmt.Fprint(w, `<html><body>loading</body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><div id="ready">ok</div></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))

	sel, err := s.WaitFor(context.Background(), "#ready", time.Second)
	require.NoError(t, err)
	require.Equal(t, "ok", sel.Text())
}

func TestWaitFor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))

	_, err := s.WaitFor(context.Background(), "#never", 50*time.Millisecond)
	require.ErrorIs(t, err, ErrWaitTimeout)
}

func TestClickWithin_Anchor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="go" href="/target">go</a></body></html>`)
	})
	mux.HandleFunc("/target", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>arrived</h1></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))

	res := s.ClickWithin(context.Background(), "#go", 100*time.Millisecond)
	require.Equal(t, StepCompleted, res.Outcome)
	require.Equal(t, srv.URL+"/target", s.CurrentURL())
}

func TestClickWithin_AbsentIsNotPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))

	res := s.ClickWithin(context.Background(), "#missing", 30*time.Millisecond)
	require.Equal(t, StepNotPresent, res.Outcome)
	require.NoError(t, res.Err)
}

func TestClickWithin_DisabledIsNotPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a id="next" href="/p2" disabled>next</a></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))

	res := s.ClickWithin(context.Background(), "#next", 100*time.Millisecond)
	require.Equal(t, StepNotPresent, res.Outcome)
}

func TestClickWithin_SubmitButtonPostsForm(t *testing.T) {
	var gotMethod, gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<form action="/submit" method="post">
  <input type="hidden" name="token" value="abc" />
  <button id="send" type="submit">send</button>
</form>
</body></html>`)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = r.ParseForm()
		gotBody = r.PostForm.Encode()
		fmt.Fprint(w, `<html><body>done</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL))

	res := s.ClickWithin(context.Background(), "#send", 100*time.Millisecond)
	require.Equal(t, StepCompleted, res.Outcome)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "token=abc", gotBody)
}

func TestSubmitForm_Overrides(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<form id="signin" action="/do-login" method="post">
  <input name="username" value="" />
  <input name="password" value="" />
</form>
</body></html>`)
	})
	mux.HandleFunc("/do-login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm.Get("username") + "/" + r.PostForm.Get("password")
		fmt.Fprint(w, `<html><body>in</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), srv.URL+"/login"))

	res := s.SubmitForm(context.Background(), "#signin", map[string]string{
		"username": "me@example.com",
		"password": "hunter2",
	})
	require.Equal(t, StepCompleted, res.Outcome)
	require.Equal(t, "me@example.com/hunter2", got)
}

func TestSetCookies(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("li_at"); err == nil {
			gotCookie = c.Value
		}
		fmt.Fprint(w, `<html><body>hi</body></html>`)
	}))
	defer srv.Close()

	s := newTestSession(t)
	require.NoError(t, s.SetCookies(srv.URL, []CookieRecord{
		{Name: "li_at", Value: "tok-123", Path: "/"},
	}))
	require.NoError(t, s.Navigate(context.Background(), srv.URL))
	require.Equal(t, "tok-123", gotCookie)
}

func TestLoadCookieFile_Missing(t *testing.T) {
	_, err := LoadCookieFile("/does/not/exist.json")
	require.Error(t, err)
}
