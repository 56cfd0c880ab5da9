package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thatjpcsguy/peekfs/internal/gitview"
)

func testSource(token, path string, content string) Source {
	return Source{
		Token:       token,
		Path:        path,
		DisplayName: filepath.Base(path),
		Size:        int64(len(content)),
		ModTime:     time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC),
		Content:     []byte(content),
	}
}

func TestFileCodePage(t *testing.T) {
	r := New("monokai", false)

	res := r.File(testSource("tok1", "/home/dev/main.go", "package main\n\nfunc main() {}\n"))
	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q, want text/html", res.ContentType)
	}

	html := string(res.Body)
	if !strings.Contains(html, "chroma") {
		t.Error("code page has no chroma-highlighted content")
	}
	if !strings.Contains(html, "main") {
		t.Error("code page does not contain the source text")
	}
	if !strings.Contains(html, "29 B") {
		t.Errorf("code page missing size in meta:\n%s", html[:min(len(html), 600)])
	}
}

func TestFileCodePageEscapesHTML(t *testing.T) {
	r := New("monokai", false)

	res := r.File(testSource("tok1", "/tmp/note.txt", "<script>alert(1)</script>\n"))
	html := string(res.Body)
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("file content reached the page unescaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Error("escaped content missing from the page")
	}
}

func TestFileMarkdownPage(t *testing.T) {
	r := New("monokai", false)

	res := r.File(testSource("tok2", "/home/dev/README.md", "# Title\n\nSome *text*.\n"))
	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q, want text/html", res.ContentType)
	}

	html := string(res.Body)
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "Title") {
		t.Error("markdown heading was not converted")
	}
	if !strings.Contains(html, "<em>text</em>") {
		t.Error("markdown emphasis was not converted")
	}
}

func TestFileRawPassthrough(t *testing.T) {
	r := New("monokai", false)

	content := "\x00\x01binary"
	res := r.File(testSource("tok3", "/tmp/blob.bin", content))
	if res.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream", res.ContentType)
	}
	if string(res.Body) != content {
		t.Error("raw passthrough modified the bytes")
	}

	res = r.File(testSource("tok4", "/tmp/image.png", "fake png"))
	if res.ContentType != "image/png" {
		t.Errorf("ContentType for .png = %q, want image/png", res.ContentType)
	}
}

func TestFileCaching(t *testing.T) {
	r := New("monokai", false)
	src := testSource("tok5", "/home/dev/app.py", "print('hi')\n")

	first := r.File(src)
	second := r.File(src)
	if first != second {
		t.Error("identical request was re-rendered instead of cached")
	}

	// A different grant for the same file renders its own page.
	other := src
	other.Token = "tok6"
	if r.File(other) == first {
		t.Error("cache shared a page across tokens")
	}

	// Raw passthrough is not cached.
	raw := testSource("tok7", "/tmp/blob.bin", "data")
	if r.File(raw) == r.File(raw) {
		t.Error("raw passthrough unexpectedly cached")
	}
}

func TestFileLineNumbers(t *testing.T) {
	plain := New("monokai", false).File(testSource("t1", "/x/a.go", "package a\n"))
	numbered := New("monokai", true).File(testSource("t2", "/x/a.go", "package a\n"))

	if len(numbered.Body) <= len(plain.Body) {
		t.Error("line-numbered page is not larger than the plain one")
	}
}

func TestFileUnknownStyleFallsBack(t *testing.T) {
	r := New("no-such-style", false)

	res := r.File(testSource("tok8", "/x/a.go", "package a\n"))
	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("unknown style broke rendering: ContentType = %q", res.ContentType)
	}
}

func TestCommitPage(t *testing.T) {
	r := New("monokai", false)

	c := &gitview.Commit{
		Hash:        "0123456789abcdef0123456789abcdef01234567",
		AuthorName:  "Dev One",
		AuthorEmail: "dev@example.com",
		Date:        "2026-03-14T09:26:00+00:00",
		Subject:     "fix parser offsets",
		Body:        "Offsets were off by one.",
		Files: []gitview.FileDiff{
			{
				Path:    "parser.go",
				Added:   "3",
				Deleted: "1",
				Diff:    "--- a/parser.go\n+++ b/parser.go\n@@ -1 +1,3 @@\n+offset++\n",
			},
			{Path: "binary.dat", Added: "-", Deleted: "-"},
		},
	}

	res := r.Commit("/home/dev/repo", c)
	if res.ContentType != "text/html; charset=utf-8" {
		t.Fatalf("ContentType = %q, want text/html", res.ContentType)
	}

	html := string(res.Body)
	for _, want := range []string{
		"fix parser offsets",
		"Offsets were off by one.",
		"0123456789ab",
		"Dev One",
		"2 files changed",
		"parser.go",
		"(+3 -1)",
		"No diff available",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("commit page missing %q", want)
		}
	}

	// Commit pages are cached by hash.
	if r.Commit("/home/dev/repo", c) != res {
		t.Error("commit page was re-rendered instead of cached")
	}
}

func TestExpiredPage(t *testing.T) {
	res := ExpiredPage("notes.txt")

	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q, want text/html", res.ContentType)
	}
	html := string(res.Body)
	if !strings.Contains(html, "notes.txt") {
		t.Error("expired page does not name the file")
	}
	if !strings.Contains(html, "no longer available") {
		t.Error("expired page missing explanation")
	}
}

func TestDisplayPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := displayPath(filepath.Join(home, "work", "a.txt")); got != "~/work/a.txt" {
		t.Errorf("displayPath(under home) = %q, want ~/work/a.txt", got)
	}
	if got := displayPath("/etc/hosts"); got != "/etc/hosts" {
		t.Errorf("displayPath(outside home) = %q, want unchanged", got)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.n); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
