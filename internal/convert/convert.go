// Package convert implements the HTML -> PDF/Markdown side of C6's
// rendering pipeline. PDF and Markdown conversion are external
// collaborators (spec.md §1, §9): this package defines the seam
// (DocumentConverter) and ships minimal, self-contained adapters a
// deployment can swap out without touching the rendering pipeline itself.
package convert

import (
	"context"
	"fmt"

	"github.com/parrisma/gofr-doc/internal/model"
)

// Format names a renderable output.
type Format string

const (
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
)

// MediaType returns the MIME type associated with a format.
func (f Format) MediaType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "text/html"
	}
}

// DocumentConverter turns rendered HTML into another representation.
// Implementations are swapped in at construction time, mirroring how the
// teacher wires a concrete provider behind a factory-selected interface.
type DocumentConverter interface {
	Convert(ctx context.Context, html []byte) ([]byte, error)
}

// Registry holds one converter per non-HTML format.
type Registry struct {
	converters map[Format]DocumentConverter
}

// NewRegistry builds a converter registry from the supplied adapters.
func NewRegistry(pdf, markdown DocumentConverter) *Registry {
	return &Registry{converters: map[Format]DocumentConverter{
		FormatPDF:      pdf,
		FormatMarkdown: markdown,
	}}
}

// Convert dispatches to the converter registered for format, or returns the
// html bytes unchanged for FormatHTML.
func (r *Registry) Convert(ctx context.Context, format Format, html []byte) ([]byte, error) {
	if format == FormatHTML {
		return html, nil
	}
	c, ok := r.converters[format]
	if !ok {
		return nil, model.NewError(model.KindRenderFailed, fmt.Sprintf("no converter registered for format %q", format), "use html, pdf, or md", nil)
	}
	return c.Convert(ctx, html)
}
