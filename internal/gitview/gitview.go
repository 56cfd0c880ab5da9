// Package gitview reads commit metadata and diffs out of a local
// repository by shelling out to git.
package gitview

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotRepo means the given directory is not inside a git repository.
var ErrNotRepo = errors.New("not a git repository")

// Commit holds the metadata and per-file diffs of a single commit.
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Date        string
	Subject     string
	Body        string
	Files       []FileDiff
}

// ShortHash returns the abbreviated commit hash used in page titles.
func (c *Commit) ShortHash() string {
	if len(c.Hash) > 12 {
		return c.Hash[:12]
	}
	return c.Hash
}

// FileDiff is one changed file within a commit. Added and Deleted keep
// git's numstat text form, which is "-" for binary files.
type FileDiff struct {
	Path    string
	Added   string
	Deleted string
	Diff    string
}

// Stats returns the "+a -d" summary shown next to the file name.
func (f FileDiff) Stats() string {
	return fmt.Sprintf("+%s -%s", f.Added, f.Deleted)
}

// IsRepo reports whether dir is inside a git repository.
func IsRepo(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// ResolveCommit verifies that ref names a commit in the repository and
// returns its full hash. Short hashes, branch names and tags all work.
func ResolveCommit(repoPath, ref string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--verify", ref+"^{commit}")
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", ref, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Load reads the commit's metadata, its changed files, and a diff per
// file. A file whose diff cannot be produced gets an empty Diff rather
// than failing the whole commit.
func Load(repoPath, commit string) (*Commit, error) {
	cmd := exec.Command("git", "log", "-1", "--format=%H%n%an%n%ae%n%aI%n%s%n%b", commit)
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", commit, err)
	}

	c := &Commit{Hash: commit}
	lines := strings.SplitN(strings.TrimSpace(string(output)), "\n", 6)
	if len(lines) > 0 {
		c.Hash = lines[0]
	}
	if len(lines) > 1 {
		c.AuthorName = lines[1]
	}
	if len(lines) > 2 {
		c.AuthorEmail = lines[2]
	}
	if len(lines) > 3 {
		c.Date = lines[3]
	}
	if len(lines) > 4 {
		c.Subject = lines[4]
	}
	if len(lines) > 5 {
		c.Body = strings.TrimSpace(lines[5])
	}

	files, err := changedFiles(repoPath, commit)
	if err != nil {
		return nil, err
	}

	for i := range files {
		files[i].Diff = fileDiff(repoPath, commit, files[i].Path)
	}
	c.Files = files

	return c, nil
}

// changedFiles lists the files touched by the commit with numstat counts.
func changedFiles(repoPath, commit string) ([]FileDiff, error) {
	cmd := exec.Command("git", "diff-tree", "--no-commit-id", "-r", "--numstat", commit)
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files: %w", err)
	}

	var files []FileDiff
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		files = append(files, FileDiff{
			Added:   parts[0],
			Deleted: parts[1],
			Path:    parts[2],
		})
	}

	return files, nil
}

// fileDiff returns the diff for one file. For the initial commit (no
// parent) it falls back to `git show`.
func fileDiff(repoPath, commit, path string) string {
	cmd := exec.Command("git", "diff", commit+"~1", commit, "--", path)
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err == nil {
		return string(output)
	}

	cmd = exec.Command("git", "show", commit, "--", path)
	cmd.Dir = repoPath
	output, err = cmd.Output()
	if err != nil {
		return ""
	}
	return string(output)
}
