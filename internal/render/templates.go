package render

import (
	"bytes"
	"html/template"
)

type codeData struct {
	Title   string
	Meta    string
	CSS     template.CSS
	Content template.HTML
}

type markdownData struct {
	Title   string
	Meta    string
	Content template.HTML
}

type commitData struct {
	Repo        string
	ShortHash   string
	FullHash    string
	AuthorName  string
	AuthorEmail string
	Date        string
	Subject     string
	Body        string
	FileCount   int
	CSS         template.CSS
	Files       []commitFileData
}

type commitFileData struct {
	Path  string
	Stats string
	Diff  template.HTML
}

func execTemplate(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExpiredPage is the response for a token whose grant outlived its TTL.
// It names only the display name, never the path.
func ExpiredPage(displayName string) *Result {
	page, err := execTemplate(expiredTmpl, struct{ Name string }{Name: displayName})
	if err != nil {
		return &Result{
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(displayName + " has expired and can no longer be accessed.\n"),
		}
	}
	return htmlResult(page)
}

var codeTmpl = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif;
    background: #1e1e1e;
    color: #d4d4d4;
    min-height: 100vh;
  }
  .file-header {
    background: #2d2d2d;
    border-bottom: 1px solid #404040;
    padding: 12px 16px;
  }
  .file-path {
    font-size: 14px;
    font-weight: 600;
    color: #e0e0e0;
    word-break: break-all;
  }
  .file-meta {
    font-size: 12px;
    font-weight: 400;
    color: #888;
    margin-top: 4px;
  }
  .file-content {
    overflow-x: auto;
  }
  {{.CSS}}
  pre.chroma {
    padding: 12px 8px;
    margin: 0;
    font-family: 'SF Mono', 'Menlo', 'Monaco', 'Consolas', 'Liberation Mono', monospace;
    font-size: 15px;
    line-height: 1.6;
    white-space: pre-wrap;
    word-wrap: break-word;
    overflow-wrap: break-word;
  }
  @media (max-width: 768px) {
    .file-header {
      padding: 10px 12px;
      font-size: 13px;
    }
    pre.chroma {
      font-size: 14px;
      line-height: 1.5;
      padding: 8px 12px;
    }
  }
</style>
</head>
<body>
  <div class="file-header">
    <div class="file-path">{{.Title}}</div>
    <div class="file-meta">{{.Meta}}</div>
  </div>
  <div class="file-content">
    {{.Content}}
  </div>
</body>
</html>
`))

var markdownTmpl = template.Must(template.New("markdown").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif;
    background: #1e1e1e;
    color: #d4d4d4;
    min-height: 100vh;
  }
  .file-header {
    background: #2d2d2d;
    border-bottom: 1px solid #404040;
    padding: 12px 16px;
  }
  .file-path {
    font-size: 14px;
    font-weight: 600;
    color: #e0e0e0;
  }
  .file-meta {
    font-size: 12px;
    color: #888;
    margin-top: 4px;
  }
  .markdown-body {
    max-width: 860px;
    margin: 0 auto;
    padding: 24px 16px;
    line-height: 1.6;
  }
  .markdown-body h1, .markdown-body h2 {
    border-bottom: 1px solid #404040;
    padding-bottom: 6px;
    margin: 20px 0 12px;
  }
  .markdown-body h3, .markdown-body h4 { margin: 16px 0 8px; }
  .markdown-body p, .markdown-body ul, .markdown-body ol { margin-bottom: 12px; }
  .markdown-body ul, .markdown-body ol { padding-left: 24px; }
  .markdown-body code {
    font-family: 'SF Mono', 'Menlo', monospace;
    font-size: 13px;
    background: #2d2d2d;
    padding: 2px 4px;
    border-radius: 3px;
  }
  .markdown-body pre {
    background: #252525;
    padding: 12px;
    border-radius: 4px;
    overflow-x: auto;
    margin-bottom: 12px;
  }
  .markdown-body pre code { background: none; padding: 0; }
  .markdown-body blockquote {
    border-left: 3px solid #404040;
    padding-left: 12px;
    color: #a0a0a0;
    margin-bottom: 12px;
  }
  .markdown-body a { color: #6ab0f3; }
  .markdown-body table { border-collapse: collapse; margin-bottom: 12px; }
  .markdown-body th, .markdown-body td {
    border: 1px solid #404040;
    padding: 6px 10px;
  }
</style>
</head>
<body>
  <div class="file-header">
    <div class="file-path">{{.Title}}</div>
    <div class="file-meta">{{.Meta}}</div>
  </div>
  <div class="markdown-body">
{{.Content}}
  </div>
</body>
</html>
`))

var commitTmpl = template.Must(template.New("commit").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Repo}} · {{.ShortHash}}</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif;
    background: #1e1e1e;
    color: #d4d4d4;
    min-height: 100vh;
  }
  .commit-header {
    background: #2d2d2d;
    border-bottom: 1px solid #404040;
    padding: 16px;
  }
  .commit-repo {
    font-size: 12px;
    color: #888;
    margin-bottom: 8px;
  }
  .commit-subject {
    font-size: 16px;
    font-weight: 600;
    color: #e0e0e0;
    margin-bottom: 8px;
  }
  .commit-body {
    font-size: 14px;
    color: #b0b0b0;
    white-space: pre-wrap;
    margin-bottom: 8px;
  }
  .commit-meta {
    font-size: 13px;
    color: #888;
  }
  .commit-meta .hash {
    font-family: 'SF Mono', 'Menlo', monospace;
    color: #6ab0f3;
  }
  .file-summary {
    padding: 12px 16px;
    font-size: 13px;
    color: #888;
    background: #2d2d2d;
    border-bottom: 1px solid #404040;
  }
  .file-list {
    padding: 8px 0;
  }
  .file-list details {
    border-bottom: 1px solid #333;
  }
  .file-list summary {
    padding: 10px 16px;
    cursor: pointer;
    font-size: 14px;
    font-family: 'SF Mono', 'Menlo', monospace;
    background: #252525;
  }
  .file-list summary:hover {
    background: #2a2a2a;
  }
  .file-path {
    color: #e0e0e0;
  }
  .file-stats {
    color: #888;
    font-size: 12px;
  }
  .diff-content {
    overflow-x: auto;
  }
  {{.CSS}}
  pre.chroma {
    padding: 8px 16px;
    margin: 0;
    font-family: 'SF Mono', 'Menlo', 'Monaco', 'Consolas', monospace;
    font-size: 13px;
    line-height: 1.5;
    white-space: pre-wrap;
    word-wrap: break-word;
  }
  @media (max-width: 768px) {
    .commit-header { padding: 12px; }
    .file-list summary { padding: 8px 12px; font-size: 13px; }
    pre.chroma { font-size: 12px; padding: 6px 12px; }
  }
</style>
</head>
<body>
  <div class="commit-header">
    <div class="commit-repo">{{.Repo}}</div>
    <div class="commit-subject">{{.Subject}}</div>
    {{if .Body}}<p class="commit-body">{{.Body}}</p>{{end}}
    <div class="commit-meta">
      <span class="hash" title="{{.FullHash}}">{{.ShortHash}}</span> · {{.AuthorName}} &lt;{{.AuthorEmail}}&gt; · {{.Date}}
    </div>
  </div>
  <div class="file-summary">{{.FileCount}} files changed</div>
  <div class="file-list">
{{range .Files}}    <details>
      <summary><span class="file-path">{{.Path}}</span> <span class="file-stats">({{.Stats}})</span></summary>
      <div class="diff-content">{{.Diff}}</div>
    </details>
{{end}}  </div>
</body>
</html>
`))

var expiredTmpl = template.Must(template.New("expired").Parse(`<!DOCTYPE html>
<html>
<head><title>File Expired</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 480px; margin: 80px auto; text-align: center; color: #333; }
  h1 { font-size: 1.4em; }
  p { color: #666; }
</style>
</head>
<body>
  <h1>This file is no longer available</h1>
  <p><strong>{{.Name}}</strong> has expired and can no longer be accessed.</p>
</body>
</html>
`))
