// Package token mints access tokens and turns them into stored grants.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thatjpcsguy/peekfs/internal/gitview"
	"github.com/thatjpcsguy/peekfs/internal/store"
)

var (
	// ErrFileNotFound means the path to share does not exist.
	ErrFileNotFound = errors.New("file does not exist")
	// ErrNotRegularFile means the path is a directory or other non-file.
	ErrNotRegularFile = errors.New("not a regular file")
	// ErrNotReadable means the file exists but cannot be opened.
	ErrNotReadable = errors.New("file is not readable")
	// ErrTooManyCollisions means minting kept hitting used tokens.
	ErrTooManyCollisions = errors.New("too many token collisions")
)

const (
	tokenBytes      = 6 // 8 characters once base64url encoded
	maxMintAttempts = 5
)

// Service mints tokens and records the grants they stand for.
type Service struct {
	store *store.Store
	mint  func() string
}

// NewService returns a Service backed by st.
func NewService(st *store.Store) *Service {
	return &Service{store: st, mint: mintToken}
}

// Allow grants access to the file at path for ttl. The path is validated
// and resolved to an absolute path before the grant is stored; the returned
// grant carries the minted token.
func (s *Service) Allow(path string, ttl time.Duration, window store.LineWindow) (*store.Authorization, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	// Catch unreadable files at grant time rather than at first request.
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotReadable)
	}
	_ = f.Close()

	now := time.Now().UTC().Truncate(time.Second)
	a := store.Authorization{
		FilePath:  abs,
		FileName:  filepath.Base(abs),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Window:    window,
	}

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		a.Token = s.mint()
		err := s.store.Insert(a)
		if err == nil {
			return &a, nil
		}
		if errors.Is(err, store.ErrTokenExists) {
			continue
		}
		return nil, err
	}

	return nil, ErrTooManyCollisions
}

// AllowGit grants access to a commit view for ttl. The path must be inside
// a git repository and ref must name a commit in it; branches, tags and
// short hashes are resolved to the full hash before storing.
func (s *Service) AllowGit(repoPath, ref string, ttl time.Duration) (*store.GitAuthorization, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	if !gitview.IsRepo(abs) {
		return nil, fmt.Errorf("%s: %w", repoPath, gitview.ErrNotRepo)
	}

	sha, err := gitview.ResolveCommit(abs, ref)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	g := store.GitAuthorization{
		RepoPath:  abs,
		Commit:    sha,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		g.Token = s.mint()
		err := s.store.InsertGit(g)
		if err == nil {
			return &g, nil
		}
		if errors.Is(err, store.ErrTokenExists) {
			continue
		}
		return nil, err
	}

	return nil, ErrTooManyCollisions
}

// Revoke removes the grant for token and reports whether one existed.
func (s *Service) Revoke(token string) (bool, error) {
	return s.store.Delete(token)
}

func mintToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
