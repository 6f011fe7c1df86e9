package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parrisma/gofr-doc/internal/convert"
	"github.com/parrisma/gofr-doc/internal/model"
	"github.com/parrisma/gofr-doc/internal/registry"
	"github.com/parrisma/gofr-doc/internal/session"
	"github.com/parrisma/gofr-doc/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error = %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func newPipeline(t *testing.T) (*Pipeline, *session.Engine) {
	t.Helper()
	root := t.TempDir()
	templatesRoot := filepath.Join(root, "templates")
	fragmentsRoot := filepath.Join(root, "fragments")
	stylesRoot := filepath.Join(root, "styles")

	writeFile(t, filepath.Join(templatesRoot, "acme", "invoice", "template.yaml"), `
template_id: invoice
group: acme
name: Invoice
description: Billing document
global_parameters:
  - name: customer_name
    type: string
    required: true
`)
	writeFile(t, filepath.Join(templatesRoot, "acme", "invoice", "document.html"),
		"<html><body>{{.Global.customer_name}}{{.FragmentsHTML}}<style>{{.StyleCSS}}</style></body></html>")

	writeFile(t, filepath.Join(fragmentsRoot, "acme", "footer", "fragment.yaml"), `
fragment_id: footer
group: acme
name: Footer
description: Page footer
`)
	writeFile(t, filepath.Join(fragmentsRoot, "acme", "footer", "fragment.html"), "<footer>{{.text}}</footer>")

	writeFile(t, filepath.Join(stylesRoot, "acme", "default", "style.yaml"), `
style_id: default
group: acme
name: Default
description: Default stylesheet
`)
	writeFile(t, filepath.Join(stylesRoot, "acme", "default", "style.css"), "body{margin:0}")

	reg := registry.New(templatesRoot, fragmentsRoot, stylesRoot)
	if err := reg.Load(); err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}

	sessions, err := session.New(filepath.Join(root, "sessions"))
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}

	store, err := storage.New(filepath.Join(root, "storage"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}

	converter := convert.NewRegistry(convert.NewPDFConverter(), convert.NewMarkdownConverter())

	return NewPipeline(reg, sessions, store, converter), sessions
}

func TestRenderDocumentNotReadyBeforeGlobalParameters(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "not-ready", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := p.RenderDocument(ctx, "acme", s.SessionID, "html", "", false); err == nil {
		t.Fatalf("RenderDocument() before set_global_parameters want error, got nil")
	}
}

func TestRenderDocumentInlineHTMLWithFragmentMarkers(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "inline-html", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := sessions.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"customer_name": "Acme Corp"}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}
	guid, _, err := sessions.AddFragment(ctx, "acme", s.SessionID, "footer", map[string]any{"text": "page 1"}, "end")
	if err != nil {
		t.Fatalf("AddFragment() error = %v", err)
	}

	result, err := p.RenderDocument(ctx, "acme", s.SessionID, "html", "", false)
	if err != nil {
		t.Fatalf("RenderDocument() error = %v", err)
	}
	html := string(result.Content)
	if !strings.Contains(html, "Acme Corp") {
		t.Errorf("RenderDocument() output missing global parameter: %q", html)
	}
	if !strings.Contains(html, "fragment-instance:"+guid) {
		t.Errorf("RenderDocument() output missing fragment instance marker for %q: %q", guid, html)
	}
	if !strings.Contains(html, "margin:0") {
		t.Errorf("RenderDocument() output missing default style css: %q", html)
	}
}

func TestRenderDocumentProxyPersistsAndRetrieves(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "proxy-persist", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := sessions.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"customer_name": "Acme Corp"}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}

	result, err := p.RenderDocument(ctx, "acme", s.SessionID, "pdf", "", true)
	if err != nil {
		t.Fatalf("RenderDocument() proxy error = %v", err)
	}
	if result.ProxyGUID == "" || result.Content != nil {
		t.Fatalf("RenderDocument() proxy result = %+v, want proxy guid and no inline content", result)
	}

	format, data, err := p.GetProxyDocument(ctx, "acme", result.ProxyGUID)
	if err != nil {
		t.Fatalf("GetProxyDocument() error = %v", err)
	}
	if format != "pdf" {
		t.Errorf("GetProxyDocument() format = %q, want pdf", format)
	}
	if !strings.HasPrefix(string(data), "%PDF-1.4") {
		t.Errorf("GetProxyDocument() data does not look like a PDF: %q", data[:20])
	}
}

func TestGetProxyDocumentWrongGroupNotFound(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "wrong-group", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := sessions.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"customer_name": "Acme Corp"}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}
	result, err := p.RenderDocument(ctx, "acme", s.SessionID, "html", "", true)
	if err != nil {
		t.Fatalf("RenderDocument() proxy error = %v", err)
	}

	_, _, err = p.GetProxyDocument(ctx, "other-group", result.ProxyGUID)
	if err == nil {
		t.Fatalf("GetProxyDocument() wrong group want error, got nil")
	}
	de := model.AsDomainError(err)
	if de.Kind != model.KindNotFound {
		t.Errorf("GetProxyDocument() wrong group error kind = %q, want %q", de.Kind, model.KindNotFound)
	}
}

func TestRenderDocumentRendersTableFragment(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "table-sort", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := sessions.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"customer_name": "Acme Corp"}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}
	params := map[string]any{
		"columns": []any{"item", "amount"},
		"rows": []any{
			[]any{"widget", "10"},
			[]any{"gadget", "5"},
		},
		"sort_by": "amount",
	}
	if _, _, err := sessions.AddFragment(ctx, "acme", s.SessionID, "table", params, "end"); err != nil {
		t.Fatalf("AddFragment(table) error = %v", err)
	}

	result, err := p.RenderDocument(ctx, "acme", s.SessionID, "html", "", false)
	if err != nil {
		t.Fatalf("RenderDocument() error = %v", err)
	}
	htmlOut := string(result.Content)
	if !strings.Contains(htmlOut, "<table") {
		t.Errorf("RenderDocument() output missing table markup: %q", htmlOut)
	}
	gadgetIdx := strings.Index(htmlOut, "gadget")
	widgetIdx := strings.Index(htmlOut, "widget")
	if gadgetIdx == -1 || widgetIdx == -1 || gadgetIdx > widgetIdx {
		t.Errorf("RenderDocument() table rows not sorted by amount: %q", htmlOut)
	}
}

func TestRenderDocumentTableFragmentAppliesNumberFormatAndStyling(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "table-style", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := sessions.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"customer_name": "Acme Corp"}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}
	params := map[string]any{
		"columns":       []any{"item", "amount"},
		"rows":          []any{[]any{"widget", -12.5}},
		"has_header":    false,
		"number_format": map[string]any{"amount": "accounting"},
		"header_color":  "primary",
		"highlight":     map[string]any{"rows": []any{0.0}, "color": "warning"},
	}
	if _, _, err := sessions.AddFragment(ctx, "acme", s.SessionID, "table", params, "end"); err != nil {
		t.Fatalf("AddFragment(table) error = %v", err)
	}

	result, err := p.RenderDocument(ctx, "acme", s.SessionID, "html", "", false)
	if err != nil {
		t.Fatalf("RenderDocument() error = %v", err)
	}
	htmlOut := string(result.Content)
	if strings.Contains(htmlOut, "<thead>") {
		t.Errorf("RenderDocument() emitted a <thead> despite has_header=false: %q", htmlOut)
	}
	if !strings.Contains(htmlOut, "(12.50)") {
		t.Errorf("RenderDocument() did not format -12.5 as accounting: %q", htmlOut)
	}
	if !strings.Contains(htmlOut, "background-color:#e6a817") {
		t.Errorf("RenderDocument() did not apply the highlight color: %q", htmlOut)
	}
}

func TestRenderDocumentMarkdownConversion(t *testing.T) {
	p, sessions := newPipeline(t)
	ctx := context.Background()
	s, err := sessions.CreateSession(ctx, "acme", "markdown-conv", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := sessions.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"customer_name": "Acme Corp"}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}

	result, err := p.RenderDocument(ctx, "acme", s.SessionID, "md", "", false)
	if err != nil {
		t.Fatalf("RenderDocument() md error = %v", err)
	}
	if result.MediaType != "text/markdown" {
		t.Errorf("RenderDocument() media type = %q, want text/markdown", result.MediaType)
	}
}
