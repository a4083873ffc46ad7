package templates

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/rotisserie/eris"
)

//go:embed index.html.tmpl error.html.tmpl
var files embed.FS

var pages = template.Must(template.ParseFS(files, "*.tmpl"))

// ArticleRow is one rendered row of the article tables.
type ArticleRow struct {
	Newspaper   string
	Language    string
	Title       string
	URL         string
	Snippet     string
	QueryUsed   string
	PublishDate string
}

// FilterValues echoes the active archive filters back into the filter form.
type FilterValues struct {
	Language    string
	Newspaper   string
	PublishDate string
}

// IndexData bundles everything the archive page renders.
type IndexData struct {
	Brand       string
	Flash       string
	NewArticles []ArticleRow
	Articles    []ArticleRow
	Filters     FilterValues
	Newspapers  []string
	Languages   []string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
}

// RenderIndex produces the archive page HTML.
func RenderIndex(data IndexData) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "index.html.tmpl", data); err != nil {
		return nil, eris.Wrap(err, "rendering index template")
	}
	return buf.Bytes(), nil
}

// RenderError produces the error page HTML.
func RenderError(data ErrorPageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "error.html.tmpl", data); err != nil {
		return nil, eris.Wrap(err, "rendering error template")
	}
	return buf.Bytes(), nil
}
