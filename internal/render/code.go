package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// codePage renders a syntax-highlighted page for a source file.
func (r *Renderer) codePage(src Source) *Result {
	lexer := lexers.Match(filepath.Base(src.Path))
	if lexer == nil {
		lexer = lexers.Fallback
	}

	highlighted, css, err := r.highlight(lexer, string(src.Content))
	if err != nil {
		return rawResult(src)
	}

	page, err := execTemplate(codeTmpl, codeData{
		Title:   displayPath(src.Path),
		Meta:    fmt.Sprintf("%s · %s", formatSize(src.Size), src.ModTime.Format("2006-01-02 15:04")),
		CSS:     template.CSS(css),
		Content: template.HTML(highlighted),
	})
	if err != nil {
		return rawResult(src)
	}
	return htmlResult(page)
}

// highlight runs chroma over content and returns the highlighted HTML
// fragment plus the stylesheet for the configured style.
func (r *Renderer) highlight(lexer chroma.Lexer, content string) (string, string, error) {
	lexer = chroma.Coalesce(lexer)
	style := styles.Get(r.style)

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(r.lineNos),
	)

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return "", "", fmt.Errorf("failed to tokenise: %w", err)
	}

	var body bytes.Buffer
	if err := formatter.Format(&body, style, iterator); err != nil {
		return "", "", fmt.Errorf("failed to format: %w", err)
	}

	var css bytes.Buffer
	if err := formatter.WriteCSS(&css, style); err != nil {
		return "", "", fmt.Errorf("failed to write styles: %w", err)
	}

	return body.String(), css.String(), nil
}

func htmlResult(body []byte) *Result {
	return &Result{ContentType: "text/html; charset=utf-8", Body: body}
}
