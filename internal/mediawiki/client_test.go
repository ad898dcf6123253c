package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

// fakeWiki is a tiny in-memory stand-in for api.php.
type fakeWiki struct {
	t *testing.T

	mu         sync.Mutex
	pages      map[string]string
	edits      []editRecord
	lagOnce    bool
	loggedIn   bool
	logins     int
	userAgents []string
	authHeader string
}

type editRecord = map[string]string

func newFakeWiki(t *testing.T) *fakeWiki {
	return &fakeWiki{t: t, pages: map[string]string{"Existing": "hello"}}
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		f.t.Fatalf("parse form: %v", err)
	}
	f.userAgents = append(f.userAgents, r.UserAgent())
	f.authHeader = r.Header.Get("Authorization")
	if r.Form.Get("format") != "json" || r.Form.Get("formatversion") != "2" {
		f.t.Errorf("missing format parameters: %v", r.Form)
	}

	if f.lagOnce {
		f.lagOnce = false
		writeJSON(w, map[string]any{"error": map[string]string{"code": "maxlag", "info": "Waiting for a database server"}})
		return
	}

	switch r.Form.Get("action") {
	case "query":
		if r.Form.Get("meta") == "tokens" {
			if r.Form.Get("type") == "login" {
				writeJSON(w, map[string]any{"query": map[string]any{"tokens": map[string]string{"logintoken": "LT+\\"}}})
				return
			}
			writeJSON(w, map[string]any{"query": map[string]any{"tokens": map[string]string{"csrftoken": "CT+\\"}}})
			return
		}
		title := r.Form.Get("titles")
		text, ok := f.pages[title]
		if !ok {
			writeJSON(w, map[string]any{"query": map[string]any{"pages": []map[string]any{{"title": title, "missing": true}}}})
			return
		}
		writeJSON(w, map[string]any{"query": map[string]any{"pages": []map[string]any{{
			"title": title,
			"revisions": []map[string]any{{
				"slots": map[string]any{"main": map[string]string{"content": text}},
			}},
		}}}})
	case "login":
		if r.Method != http.MethodPost {
			f.t.Errorf("login must be POST")
		}
		if r.PostForm.Get("lgtoken") != "LT+\\" || r.PostForm.Get("lgpassword") != "secret" {
			writeJSON(w, map[string]any{"login": map[string]string{"result": "Failed", "reason": "bad password"}})
			return
		}
		f.loggedIn = true
		f.logins++
		writeJSON(w, map[string]any{"login": map[string]string{"result": "Success", "lgusername": "Clerk"}})
	case "edit":
		if r.PostForm.Get("token") != "CT+\\" {
			writeJSON(w, map[string]any{"error": map[string]string{"code": "badtoken", "info": "Invalid CSRF token."}})
			return
		}
		if r.PostForm.Get("assert") == "user" && !f.loggedIn && f.authHeader == "" {
			writeJSON(w, map[string]any{"error": map[string]string{"code": "assertuserfailed", "info": "not logged in"}})
			return
		}
		f.edits = append(f.edits, editRecord{
			"title":   r.PostForm.Get("title"),
			"text":    r.PostForm.Get("text"),
			"summary": r.PostForm.Get("summary"),
			"minor":   r.PostForm.Get("minor"),
			"assert":  r.PostForm.Get("assert"),
		})
		f.pages[r.PostForm.Get("title")] = r.PostForm.Get("text")
		writeJSON(w, map[string]any{"edit": map[string]string{"result": "Success"}})
	default:
		writeJSON(w, map[string]any{"error": map[string]string{"code": "badvalue", "info": "unknown action"}})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := NewClient(Options{APIURL: srv.URL, UserAgent: "test-agent/1.0", MaxLag: 5, OAuthToken: token})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return c
}

func TestPageText(t *testing.T) {
	fake := newFakeWiki(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv, "")

	text, err := c.PageText(context.Background(), "Existing")
	if err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if text != "hello" {
		t.Fatalf("PageText = %q, want hello", text)
	}

	text, err = c.PageText(context.Background(), "Absent")
	if err != nil {
		t.Fatalf("PageText(missing): %v", err)
	}
	if text != "" {
		t.Fatalf("missing page should read as empty, got %q", text)
	}
	if fake.userAgents[0] != "test-agent/1.0" {
		t.Fatalf("unexpected user agent %q", fake.userAgents[0])
	}
}

func TestLoginAndSave(t *testing.T) {
	fake := newFakeWiki(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv, "")

	if err := c.Login(context.Background(), "Clerk@task", "wrong"); err == nil {
		t.Fatal("expected login failure")
	}
	if err := c.Login(context.Background(), "Clerk@task", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !c.Authenticated() {
		t.Fatal("client should be authenticated")
	}

	err := c.SavePage(context.Background(), domain.Edit{Title: "Report", Text: "table", Summary: "update", Minor: true})
	if err != nil {
		t.Fatalf("SavePage: %v", err)
	}
	if len(fake.edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(fake.edits))
	}
	e := fake.edits[0]
	if e["title"] != "Report" || e["text"] != "table" || e["minor"] != "1" || e["assert"] != "user" {
		t.Fatalf("unexpected edit %+v", e)
	}
	if got, _ := c.PageText(context.Background(), "Report"); got != "table" {
		t.Fatalf("saved text not readable, got %q", got)
	}
}

func TestRetriesOnMaxLag(t *testing.T) {
	fake := newFakeWiki(t)
	fake.lagOnce = true
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv, "")

	text, err := c.PageText(context.Background(), "Existing")
	if err != nil {
		t.Fatalf("PageText after maxlag: %v", err)
	}
	if text != "hello" {
		t.Fatalf("PageText = %q", text)
	}
}

func TestPermanentAPIErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, map[string]any{"error": map[string]string{"code": "protectedpage", "info": "protected"}})
	}))
	defer srv.Close()
	c := newTestClient(t, srv, "")

	_, err := c.PageText(context.Background(), "Anything")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "protectedpage" {
		t.Fatalf("expected protectedpage APIError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error retried: %d calls", calls)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"query": map[string]any{"pages": []map[string]any{{"title": "X", "missing": true}}}})
	}))
	defer srv.Close()
	c := newTestClient(t, srv, "")

	if _, err := c.PageText(context.Background(), "X"); err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestOAuthTokenIsSent(t *testing.T) {
	fake := newFakeWiki(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv, "owner-token")

	if !c.Authenticated() {
		t.Fatal("oauth client should count as authenticated")
	}
	if err := c.SavePage(context.Background(), domain.Edit{Title: "Data", Text: "x"}); err != nil {
		t.Fatalf("SavePage: %v", err)
	}
	if fake.authHeader != "Bearer owner-token" {
		t.Fatalf("unexpected Authorization header %q", fake.authHeader)
	}
	if fake.edits[0]["minor"] != "" {
		t.Fatalf("major edit must not be flagged minor: %+v", fake.edits[0])
	}
}

func TestSavePageRenewsLostSession(t *testing.T) {
	fake := newFakeWiki(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv, "")

	if err := c.Login(context.Background(), "Clerk@task", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	fake.mu.Lock()
	fake.loggedIn = false
	fake.mu.Unlock()

	if err := c.SavePage(context.Background(), domain.Edit{Title: "Report", Text: "table"}); err != nil {
		t.Fatalf("SavePage after session loss: %v", err)
	}
	if fake.logins != 2 {
		t.Fatalf("expected a second login, got %d logins", fake.logins)
	}
	if len(fake.edits) != 1 || fake.edits[0]["assert"] != "user" {
		t.Fatalf("unexpected edits %+v", fake.edits)
	}
}

func TestSavePageWithoutCredentialsDoesNotRelogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("meta") == "tokens" {
			writeJSON(w, map[string]any{"query": map[string]any{"tokens": map[string]string{"csrftoken": "CT+\\"}}})
			return
		}
		writeJSON(w, map[string]any{"error": map[string]string{"code": "assertuserfailed", "info": "not logged in"}})
	}))
	defer srv.Close()
	c := newTestClient(t, srv, "owner-token")

	err := c.SavePage(context.Background(), domain.Edit{Title: "Report", Text: "table"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "assertuserfailed" {
		t.Fatalf("expected assertuserfailed, got %v", err)
	}
}
