package leads

import (
	"embed"
	"fmt"
	"io"

	template "github.com/goliatone/go-template"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Renderer is the template renderer contract used for HTML fragments.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

// NewTemplateRenderer creates a go-template renderer backed by the embedded templates.
func NewTemplateRenderer() (Renderer, error) {
	return template.NewRenderer(
		template.WithFS(embeddedTemplates),
		template.WithBaseDir("templates"),
		template.WithExtension(".html"),
	)
}

// RenderTable renders the table fragment.
func RenderTable(r Renderer, view TableView, out ...io.Writer) (string, error) {
	if r == nil {
		return "", fmt.Errorf("leads: renderer is nil")
	}
	html, err := r.Render("table", map[string]any{"table": view}, out...)
	if err != nil {
		return "", fmt.Errorf("leads: render table %s: %w", view.Name, err)
	}
	return html, nil
}

// RenderOverview renders the overview fragment.
func RenderOverview(r Renderer, overview Overview, out ...io.Writer) (string, error) {
	if r == nil {
		return "", fmt.Errorf("leads: renderer is nil")
	}
	html, err := r.Render("overview", map[string]any{"overview": overview}, out...)
	if err != nil {
		return "", fmt.Errorf("leads: render overview: %w", err)
	}
	return html, nil
}
