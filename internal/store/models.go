package store

import (
	"bytes"
	"fmt"
	"time"
)

// Authorization grants access to a single file until ExpiresAt.
type Authorization struct {
	Token     string
	FilePath  string // absolute path on disk, the real subject of the grant
	FileName  string // display name baked into the URL, cosmetic only
	CreatedAt time.Time
	ExpiresAt time.Time
	Window    LineWindow
}

// Expired reports whether the grant is past its deadline. A grant whose
// deadline equals now is already expired.
func (a Authorization) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// GitAuthorization grants access to a rendered view of one git commit.
type GitAuthorization struct {
	Token     string
	RepoPath  string
	Commit    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the grant is past its deadline.
func (g GitAuthorization) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

// LineMode selects which end of the file a LineWindow keeps.
type LineMode string

const (
	LineAll  LineMode = ""
	LineHead LineMode = "head"
	LineTail LineMode = "tail"
)

// LineWindow restricts a grant to the first or last Count lines of the
// file. The zero value means the whole file.
type LineWindow struct {
	Mode  LineMode
	Count int
}

// IsZero reports whether the window covers the whole file.
func (w LineWindow) IsZero() bool {
	return w.Mode == LineAll || w.Count <= 0
}

// Apply returns the slice of content selected by the window. Line endings
// are preserved; a count larger than the file returns it unchanged.
func (w LineWindow) Apply(content []byte) []byte {
	if w.IsZero() {
		return content
	}

	lines := bytes.SplitAfter(content, []byte("\n"))
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	if w.Count >= len(lines) {
		return content
	}

	if w.Mode == LineHead {
		lines = lines[:w.Count]
	} else {
		lines = lines[len(lines)-w.Count:]
	}
	return bytes.Join(lines, nil)
}

// Describe returns a human-readable form like "first 40 lines", or "" for
// a whole-file window.
func (w LineWindow) Describe() string {
	if w.IsZero() {
		return ""
	}
	if w.Mode == LineHead {
		return fmt.Sprintf("first %d lines", w.Count)
	}
	return fmt.Sprintf("last %d lines", w.Count)
}
