package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/thatjpcsguy/peekfs/internal/gitview"
)

// Commit renders a commit view: header with the commit metadata, then a
// collapsible highlighted diff per changed file. Pages are cached by
// commit hash since a commit's content never changes.
func (r *Renderer) Commit(repoPath string, c *gitview.Commit) *Result {
	key := "git|" + c.Hash
	if res, ok := r.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return res
	}
	cacheMissesTotal.Inc()

	res := r.commitPage(repoPath, c)
	r.cache.Add(key, res)
	return res
}

func (r *Renderer) commitPage(repoPath string, c *gitview.Commit) *Result {
	diffLexer := lexers.Get("diff")
	if diffLexer == nil {
		diffLexer = lexers.Fallback
	}

	var css string
	files := make([]commitFileData, 0, len(c.Files))
	for _, f := range c.Files {
		fd := commitFileData{Path: f.Path, Stats: f.Stats()}
		if f.Diff == "" {
			fd.Diff = template.HTML("<pre>No diff available</pre>")
		} else {
			highlighted, styleCSS, err := r.highlight(diffLexer, f.Diff)
			if err != nil {
				return commitFallback(c)
			}
			css = styleCSS
			fd.Diff = template.HTML(highlighted)
		}
		files = append(files, fd)
	}

	page, err := execTemplate(commitTmpl, commitData{
		Repo:        displayPath(repoPath),
		ShortHash:   c.ShortHash(),
		FullHash:    c.Hash,
		AuthorName:  c.AuthorName,
		AuthorEmail: c.AuthorEmail,
		Date:        c.Date,
		Subject:     c.Subject,
		Body:        c.Body,
		FileCount:   len(c.Files),
		CSS:         template.CSS(css),
		Files:       files,
	})
	if err != nil {
		return commitFallback(c)
	}
	return htmlResult(page)
}

// commitFallback is the raw-bytes degradation for commit views: a plain
// text dump in `git show` spirit.
func commitFallback(c *gitview.Commit) *Result {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "commit %s\nAuthor: %s <%s>\nDate:   %s\n\n    %s\n",
		c.Hash, c.AuthorName, c.AuthorEmail, c.Date, c.Subject)
	if c.Body != "" {
		fmt.Fprintf(&buf, "\n    %s\n", c.Body)
	}
	for _, f := range c.Files {
		buf.WriteString("\n")
		buf.WriteString(f.Diff)
	}
	return &Result{ContentType: "text/plain; charset=utf-8", Body: buf.Bytes()}
}
