package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// htmlConverter is initialized once and reused. The converter
// configuration never changes and goldmark.Markdown is safe to share
// across calls.
var (
	htmlConverter     goldmark.Markdown
	htmlConverterOnce sync.Once
)

func getHTMLConverter() goldmark.Markdown {
	htmlConverterOnce.Do(func() {
		htmlConverter = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("monokai"),
					highlighting.WithFormatOptions(
						chromahtml.TabWidth(2),
						chromahtml.WithClasses(false),
					),
				),
			),
		)
	})
	return htmlConverter
}

var htmlPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.3rem 0.7rem; text-align: left; }
pre { padding: 0.8rem; overflow-x: auto; border-radius: 6px; }
code { font-size: 0.9rem; }
</style>
</head>
<body>
{{.Body}}</body>
</html>
`))

// RenderHTML writes the report as a standalone HTML page. The Markdown
// rendering is converted with goldmark; sample artifact code blocks come
// out syntax highlighted.
func RenderHTML(w io.Writer, r *Report) error {
	var markdown strings.Builder
	if err := RenderMarkdown(&markdown, r); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := getHTMLConverter().Convert([]byte(markdown.String()), &body); err != nil {
		return fmt.Errorf("converting report to HTML: %w", err)
	}

	return htmlPage.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Run Report: " + r.Title,
		Body:  template.HTML(body.String()),
	})
}
