package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thatjpcsguy/peekfs/internal/gitview"
	"github.com/thatjpcsguy/peekfs/internal/render"
	"github.com/thatjpcsguy/peekfs/internal/store"
)

// Gateway serves authorized content. Every request is resolved through
// the token alone; the trailing display name in file URLs is cosmetic
// and never consulted. Response bodies never contain filesystem paths.
type Gateway struct {
	store    *store.Store
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewGateway returns a Gateway backed by the given store and renderer.
func NewGateway(st *store.Store, renderer *render.Renderer, logger *slog.Logger) *Gateway {
	return &Gateway{store: st, renderer: renderer, logger: logger}
}

// ServeFile handles GET /f/{token}/{name}. An unknown token, an expired
// grant and a vanished file are three distinct outcomes: a bare 404, a
// 410 with the expired page, and a 404 explaining the file is gone.
func (g *Gateway) ServeFile(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	rec, err := g.store.Get(token)
	if errors.Is(err, store.ErrNotFound) {
		gatewayOutcomes.WithLabelValues("unknown").Inc()
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		gatewayOutcomes.WithLabelValues("error").Inc()
		g.logger.Error("failed to look up authorization", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if rec.Expired(time.Now()) {
		gatewayOutcomes.WithLabelValues("expired").Inc()
		writeResult(w, http.StatusGone, render.ExpiredPage(rec.FileName))
		return
	}

	f, err := os.Open(rec.FilePath)
	if err != nil {
		gatewayOutcomes.WithLabelValues("unavailable").Inc()
		http.Error(w, "file no longer exists on disk", http.StatusNotFound)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		gatewayOutcomes.WithLabelValues("unavailable").Inc()
		http.Error(w, "file no longer exists on disk", http.StatusNotFound)
		return
	}

	content, err := io.ReadAll(f)
	if err != nil {
		gatewayOutcomes.WithLabelValues("unavailable").Inc()
		g.logger.Error("failed to read authorized file", slog.String("token", token), slog.String("error", err.Error()))
		http.Error(w, "file no longer exists on disk", http.StatusNotFound)
		return
	}

	gatewayOutcomes.WithLabelValues("served").Inc()
	res := g.renderer.File(render.Source{
		Token:       rec.Token,
		Path:        rec.FilePath,
		DisplayName: rec.FileName,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Content:     rec.Window.Apply(content),
	})
	writeResult(w, http.StatusOK, res)
}

// ServeCommit handles GET /git/{token}.
func (g *Gateway) ServeCommit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	rec, err := g.store.GetGit(token)
	if errors.Is(err, store.ErrNotFound) {
		gatewayOutcomes.WithLabelValues("unknown").Inc()
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		gatewayOutcomes.WithLabelValues("error").Inc()
		g.logger.Error("failed to look up authorization", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if rec.Expired(time.Now()) {
		gatewayOutcomes.WithLabelValues("expired").Inc()
		writeResult(w, http.StatusGone, render.ExpiredPage("commit "+shortHash(rec.Commit)))
		return
	}

	commit, err := gitview.Load(rec.RepoPath, rec.Commit)
	if err != nil {
		gatewayOutcomes.WithLabelValues("error").Inc()
		g.logger.Error("failed to load commit", slog.String("token", token), slog.String("error", err.Error()))
		http.Error(w, "failed to read commit", http.StatusInternalServerError)
		return
	}

	gatewayOutcomes.WithLabelValues("served").Inc()
	writeResult(w, http.StatusOK, g.renderer.Commit(rec.RepoPath, commit))
}

func writeResult(w http.ResponseWriter, status int, res *render.Result) {
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(res.Body)
}

func shortHash(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
