package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thatjpcsguy/peekfs/internal/render"
	"github.com/thatjpcsguy/peekfs/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func newTestHandler(t *testing.T, st *store.Store) http.Handler {
	t.Helper()

	srv := New(Options{
		Addr:          "127.0.0.1:0",
		Store:         st,
		Renderer:      render.New("monokai", false),
		Logger:        testLogger(),
		SweepInterval: time.Hour,
	})
	return srv.Handler()
}

func grantFile(t *testing.T, st *store.Store, token, path string, ttl time.Duration, win store.LineWindow) {
	t.Helper()

	now := time.Now()
	err := st.Insert(store.Authorization{
		Token:     token,
		FilePath:  path,
		FileName:  filepath.Base(path),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Window:    win,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeFileUnknownToken(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	rec := get(handler, "/f/nosuchtoken/readme.md")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "not found") {
		t.Errorf("body = %q, want it to mention not found", rec.Body.String())
	}
}

func TestServeFileExpired(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("still on disk\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "expiredtok", path, -time.Minute, store.LineWindow{})

	rec := get(handler, "/f/expiredtok/notes.txt")

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGone)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "notes.txt") || !strings.Contains(body, "has expired") {
		t.Errorf("body should name the file and say it expired, got %q", body)
	}
	if strings.Contains(body, path) {
		t.Errorf("body leaks the filesystem path %q", path)
	}
}

func TestServeFileGone(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "fleeting.txt")
	if err := os.WriteFile(path, []byte("soon gone"), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "gonetok", path, time.Hour, store.LineWindow{})
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	rec := get(handler, "/f/gonetok/fleeting.txt")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "no longer exists") {
		t.Errorf("body = %q, want the file-gone message", body)
	}
	if strings.Contains(body, path) {
		t.Errorf("body leaks the filesystem path %q", path)
	}
}

func TestServeFileRawPassthrough(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	content := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01, 0x02}
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "rawtok", path, time.Hour, store.LineWindow{})

	rec := get(handler, "/f/rawtok/blob.bin")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Errorf("body = %v, want original bytes %v", rec.Body.Bytes(), content)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q, want application/octet-stream", ct)
	}
}

func TestServeFileHighlighted(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "hello.py")
	if err := os.WriteFile(path, []byte("print('hello')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "codetok", path, time.Hour, store.LineWindow{})

	rec := get(handler, "/f/codetok/hello.py")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "print") || !strings.Contains(body, "chroma") {
		t.Errorf("body should contain highlighted source, got %q", body)
	}
}

func TestServeFileMarkdown(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "readme.md")
	if err := os.WriteFile(path, []byte("# Heading\n\nsome text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "mdtok", path, time.Hour, store.LineWindow{})

	rec := get(handler, "/f/mdtok/readme.md")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "<h1") {
		t.Errorf("markdown not converted, body = %q", rec.Body.String())
	}
}

func TestServeFileAppliesLineWindow(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "service.log")
	content := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "headtok", path, time.Hour, store.LineWindow{Mode: store.LineHead, Count: 2})

	rec := get(handler, "/f/headtok/service.log")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "one\ntwo\n" {
		t.Errorf("body = %q, want first two lines only", got)
	}
}

func TestServeFileReadsCurrentContent(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "draft.log")
	if err := os.WriteFile(path, []byte("v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "freshtok", path, time.Hour, store.LineWindow{})

	// The grant covers the path, not a snapshot.
	if err := os.WriteFile(path, []byte("v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(handler, "/f/freshtok/draft.log")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "v2\n" {
		t.Errorf("body = %q, want the file's current content", got)
	}
}

func TestServeFileDisplayNameIgnored(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	path := filepath.Join(t.TempDir(), "real.log")
	if err := os.WriteFile(path, []byte("payload\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	grantFile(t, st, "nametok", path, time.Hour, store.LineWindow{})

	rec := get(handler, "/f/nametok/completely-different-name.log")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "payload\n" {
		t.Errorf("body = %q, want file content regardless of the name segment", got)
	}
}

func TestServeCommitUnknownToken(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	rec := get(handler, "/git/nosuchtoken")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServeCommitExpired(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	now := time.Now()
	err := st.InsertGit(store.GitAuthorization{
		Token:     "expiredgit",
		RepoPath:  "/tmp/does-not-matter",
		Commit:    "0123456789abcdef0123456789abcdef01234567",
		CreatedAt: now,
		ExpiresAt: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("InsertGit() error = %v", err)
	}

	rec := get(handler, "/git/expiredgit")

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGone)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "commit 0123456789ab") || !strings.Contains(body, "has expired") {
		t.Errorf("body should name the commit and say it expired, got %q", body)
	}
}

func TestServeCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	st := newTestStore(t)
	handler := newTestHandler(t, st)

	repo := t.TempDir()
	gitRun(t, repo, "init")
	if err := os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitRun(t, repo, "add", ".")
	gitRun(t, repo, "commit", "-m", "initial layout")
	sha := strings.TrimSpace(gitRun(t, repo, "rev-parse", "HEAD"))

	now := time.Now()
	err := st.InsertGit(store.GitAuthorization{
		Token:     "gittok",
		RepoPath:  repo,
		Commit:    sha,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("InsertGit() error = %v", err)
	}

	rec := get(handler, "/git/gittok")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %q", rec.Code, http.StatusOK, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "initial layout") || !strings.Contains(body, "main.go") {
		t.Errorf("commit page should show the subject and changed file, got %q", body)
	}
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		"GIT_CONFIG_GLOBAL=/dev/null", "GIT_CONFIG_SYSTEM=/dev/null",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

func TestHealthz(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	rec := get(handler, "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	get(handler, "/healthz")
	get(handler, "/f/unknowntoken/x.txt")
	rec := get(handler, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "peekfs_http_requests_total") {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
	if !strings.Contains(body, "peekfs_active_grants") {
		t.Errorf("metrics output missing active grants gauge")
	}
	if !strings.Contains(body, `peekfs_gateway_requests_total{outcome="unknown"}`) {
		t.Errorf("metrics output missing gateway outcome counter")
	}
}

func TestForegroundServerHasNoSweeper(t *testing.T) {
	st := newTestStore(t)

	srv := New(Options{
		Addr:         "127.0.0.1:0",
		Store:        st,
		Renderer:     render.New("monokai", false),
		Logger:       testLogger(),
		DisableSweep: true,
	})

	if srv.sweeper != nil {
		t.Error("foreground server should not carry a sweeper")
	}
}

func TestRateLimit(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	limited := 0
	for i := 0; i < rateLimitBurst+5; i++ {
		rec := get(handler, "/f/sometoken/file.txt")
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}

	if limited == 0 {
		t.Errorf("no request was rate limited after %d rapid requests", rateLimitBurst+5)
	}
}

func TestRequestIDHeader(t *testing.T) {
	st := newTestStore(t)
	handler := newTestHandler(t, st)

	rec := get(handler, "/healthz")

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header not set")
	}
}

func TestSweeperRemovesExpiredAndSignalsIdle(t *testing.T) {
	st := newTestStore(t)

	path := filepath.Join(t.TempDir(), "old.txt")
	grantFile(t, st, "oldtok", path, -time.Minute, store.LineWindow{})

	sw := NewSweeper(st, testLogger(), time.Hour)
	sw.sweep(time.Now())

	if _, err := st.Get("oldtok"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired grant still present, Get() error = %v", err)
	}
	select {
	case <-sw.Idle():
	default:
		t.Error("Idle() not signalled with no active grants left")
	}
}

func TestSweeperStaysQuietWhileActive(t *testing.T) {
	st := newTestStore(t)

	path := filepath.Join(t.TempDir(), "current.txt")
	grantFile(t, st, "livetok", path, time.Hour, store.LineWindow{})

	sw := NewSweeper(st, testLogger(), time.Hour)
	sw.sweep(time.Now())

	select {
	case <-sw.Idle():
		t.Error("Idle() signalled despite an active grant")
	default:
	}
}

func TestSweeperIdleSignalledOnce(t *testing.T) {
	st := newTestStore(t)

	sw := NewSweeper(st, testLogger(), time.Hour)
	sw.sweep(time.Now())
	sw.sweep(time.Now()) // second close would panic without the once guard

	select {
	case <-sw.Idle():
	default:
		t.Error("Idle() not signalled")
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	st := newTestStore(t)

	path := filepath.Join(t.TempDir(), "current.txt")
	grantFile(t, st, "livetok", path, time.Hour, store.LineWindow{})

	sw := NewSweeper(st, testLogger(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestServerRunShutsDownWhenIdle(t *testing.T) {
	st := newTestStore(t)

	srv := New(Options{
		Addr:          "127.0.0.1:0",
		Store:         st,
		Renderer:      render.New("monokai", false),
		Logger:        testLogger(),
		SweepInterval: 10 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not shut down with an empty store")
	}
}
