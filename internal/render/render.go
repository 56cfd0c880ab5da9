// Package render turns authorized file bytes into presentable HTTP
// responses: highlighted HTML for code, converted HTML for markdown, raw
// passthrough for everything else. Rendering never denies access; any
// failure inside this package degrades to raw bytes.
package render

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peekfs_render_cache_hits_total",
		Help: "Rendered pages served from the in-memory cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peekfs_render_cache_misses_total",
		Help: "Render requests that had to be computed.",
	})
)

const (
	cacheSize = 128
	cacheTTL  = 5 * time.Minute
)

// Result is a rendered response body plus its content type.
type Result struct {
	ContentType string
	Body        []byte
}

// Source is one authorized file, already read and line-windowed by the
// caller.
type Source struct {
	// Token identifies the grant; it is only used as cache identity, so
	// two grants for the same file never share a rendered page.
	Token       string
	Path        string
	DisplayName string
	Size        int64
	ModTime     time.Time
	Content     []byte
}

// Renderer produces HTML pages from file content and commit views. It
// keeps a small TTL cache of rendered pages since highlighting large
// files is the expensive part of serving.
type Renderer struct {
	style   string
	lineNos bool
	cache   *expirable.LRU[string, *Result]
}

// New returns a Renderer using the given highlight style name. Unknown
// styles fall back to chroma's default.
func New(style string, lineNos bool) *Renderer {
	return &Renderer{
		style:   style,
		lineNos: lineNos,
		cache:   expirable.NewLRU[string, *Result](cacheSize, nil, cacheTTL),
	}
}

// File renders src according to its extension. Raw passthrough is not
// cached; highlighted and converted pages are.
func (r *Renderer) File(src Source) *Result {
	ext := strings.ToLower(filepath.Ext(src.Path))

	var build func(Source) *Result
	switch {
	case ext == ".md" || ext == ".markdown":
		build = r.markdownPage
	case codeExtensions[ext]:
		build = r.codePage
	default:
		return rawResult(src)
	}

	key := fmt.Sprintf("%s|%d|%d|%d", src.Token, src.ModTime.UnixNano(), src.Size, len(src.Content))
	if res, ok := r.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return res
	}
	cacheMissesTotal.Inc()

	res := build(src)
	r.cache.Add(key, res)
	return res
}

// rawResult passes the bytes through with a guessed content type.
func rawResult(src Source) *Result {
	contentType := mime.TypeByExtension(filepath.Ext(src.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Result{ContentType: contentType, Body: src.Content}
}

// codeExtensions lists the extensions rendered as highlighted pages.
// Everything else is passed through raw with a guessed content type.
var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".go": true, ".rs": true, ".rb": true, ".java": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".cs": true,
	".swift": true, ".kt": true, ".scala": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true,
	".html": true, ".css": true, ".scss": true, ".less": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true, ".xml": true, ".sql": true, ".graphql": true,
	".rst": true, ".txt": true,
	".lua": true, ".vim": true, ".el": true, ".clj": true, ".hs": true,
	".ml": true, ".ex": true, ".exs": true, ".r": true, ".jl": true,
	".pl": true, ".pm": true, ".php": true,
	".dockerfile": true, ".makefile": true, ".cmake": true,
	".conf": true, ".env": true, ".gitignore": true,
	".diff": true, ".patch": true,
}

// displayPath abbreviates the home directory to ~ for page headers.
func displayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+string(filepath.Separator)) {
		return "~/" + path[len(home)+1:]
	}
	return path
}

func formatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			if unit == "B" {
				return fmt.Sprintf("%.0f %s", size, unit)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}
