package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown is shared across requests; the converter is stateless per
// Convert call.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// markdownPage converts a markdown file to a styled HTML page.
func (r *Renderer) markdownPage(src Source) *Result {
	var body bytes.Buffer
	if err := markdown.Convert(src.Content, &body); err != nil {
		return rawResult(src)
	}

	page, err := execTemplate(markdownTmpl, markdownData{
		Title:   src.DisplayName,
		Meta:    fmt.Sprintf("%s · %s", formatSize(src.Size), src.ModTime.Format("2006-01-02 15:04")),
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return rawResult(src)
	}
	return htmlResult(page)
}
