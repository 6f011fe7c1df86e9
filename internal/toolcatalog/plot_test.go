package toolcatalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/parrisma/gofr-doc/internal/authsvc"
	"github.com/parrisma/gofr-doc/internal/convert"
	"github.com/parrisma/gofr-doc/internal/model"
	"github.com/parrisma/gofr-doc/internal/registry"
	"github.com/parrisma/gofr-doc/internal/render"
	"github.com/parrisma/gofr-doc/internal/session"
	"github.com/parrisma/gofr-doc/internal/storage"
)

// newDispatcherWithStorage builds the same fixture as newDispatcher but also
// wires Storage, so the catalogue registers the plot tools.
func newDispatcherWithStorage(t *testing.T) *Dispatcher {
	t.Helper()
	root := t.TempDir()
	templatesRoot := filepath.Join(root, "templates")
	fragmentsRoot := filepath.Join(root, "fragments")
	stylesRoot := filepath.Join(root, "styles")

	writeFixture(t, filepath.Join(templatesRoot, testGroup, "invoice", "template.yaml"), `
template_id: invoice
group: acme
name: Invoice
description: Billing document
global_parameters:
  - name: customer_name
    type: string
    required: true
`)
	writeFixture(t, filepath.Join(templatesRoot, testGroup, "invoice", "document.html"),
		"<html><body>{{.Global.customer_name}}{{.FragmentsHTML}}<style>{{.StyleCSS}}</style></body></html>")

	writeFixture(t, filepath.Join(stylesRoot, testGroup, "default", "style.yaml"), `
style_id: default
group: acme
name: Default
description: Default stylesheet
`)
	writeFixture(t, filepath.Join(stylesRoot, testGroup, "default", "style.css"), "body{margin:0}")

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
	pipeline := render.NewPipeline(reg, sessions, store, converter)

	tokens := &fakeTokenStore{rawToken: testToken, record: model.TokenRecord{ID: "tok-1", Group: testGroup, IssuedAt: time.Time{}}}
	auth := authsvc.New(nil, tokens)

	catalogue := New(Deps{Registry: reg, Sessions: sessions, Pipeline: pipeline, Storage: store, ServiceID: "gofr-doc-test"})
	return NewDispatcher(catalogue, auth)
}

func plotArgs() map[string]any {
	return map[string]any{
		"auth_token": testToken,
		"x":          []any{1.0, 2.0, 3.0},
		"y1":         []any{10.0, 20.0, 15.0},
		"kind":       "line",
		"theme":      "dark",
		"format":     "png",
	}
}

func TestRenderGraphInlineReturnsBase64Content(t *testing.T) {
	d := newDispatcherWithStorage(t)
	resp := d.Call(context.Background(), "render_graph", plotArgs(), "")
	if resp.Status != "success" {
		t.Fatalf("render_graph = %+v, want success", resp)
	}
	data := resp.Data.(map[string]any)
	if content, _ := data["content"].(string); content == "" {
		t.Errorf("render_graph content is empty: %+v", data)
	}
	if mediaType, _ := data["media_type"].(string); mediaType != "image/png" {
		t.Errorf("render_graph media_type = %q, want image/png", mediaType)
	}
}

func TestRenderGraphRejectsMismatchedSeriesLength(t *testing.T) {
	d := newDispatcherWithStorage(t)
	args := plotArgs()
	args["y1"] = []any{10.0, 20.0}
	resp := d.Call(context.Background(), "render_graph", args, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindValidationError {
		t.Fatalf("render_graph(mismatched lengths) = %+v, want error/ValidationError", resp)
	}
}

func TestRenderGraphProxyThenGetImageByGUIDAndAlias(t *testing.T) {
	d := newDispatcherWithStorage(t)
	ctx := context.Background()

	args := plotArgs()
	args["proxy"] = true
	args["alias"] = "q1-revenue"
	renderResp := d.Call(ctx, "render_graph", args, "")
	if renderResp.Status != "success" {
		t.Fatalf("render_graph(proxy) = %+v, want success", renderResp)
	}
	guid, _ := renderResp.Data.(map[string]any)["guid"].(string)
	if guid == "" {
		t.Fatalf("render_graph(proxy) returned empty guid: %+v", renderResp.Data)
	}

	byGUID := d.Call(ctx, "get_image", map[string]any{"auth_token": testToken, "identifier": guid}, "")
	if byGUID.Status != "success" {
		t.Fatalf("get_image(guid) = %+v, want success", byGUID)
	}

	byAlias := d.Call(ctx, "get_image", map[string]any{"auth_token": testToken, "identifier": "q1-revenue"}, "")
	if byAlias.Status != "success" {
		t.Fatalf("get_image(alias) = %+v, want success", byAlias)
	}

	listResp := d.Call(ctx, "list_images", map[string]any{"auth_token": testToken}, "")
	if listResp.Status != "success" {
		t.Fatalf("list_images = %+v, want success", listResp)
	}
	blobs, ok := listResp.Data.([]model.BlobMetadata)
	if !ok || len(blobs) != 1 {
		t.Fatalf("list_images data = %#v, want one plot_image blob", listResp.Data)
	}
}

func TestGetImageUnknownIdentifierIsNotFound(t *testing.T) {
	d := newDispatcherWithStorage(t)
	resp := d.Call(context.Background(), "get_image", map[string]any{"auth_token": testToken, "identifier": "does-not-exist"}, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindNotFound {
		t.Fatalf("get_image(unknown) = %+v, want error/NotFound", resp)
	}
}

func TestListThemesAndHandlers(t *testing.T) {
	d := newDispatcherWithStorage(t)
	ctx := context.Background()

	themesResp := d.Call(ctx, "list_themes", nil, "")
	if themesResp.Status != "success" {
		t.Fatalf("list_themes = %+v, want success", themesResp)
	}
	themes, _ := themesResp.Data.(map[string]any)["themes"].([]string)
	if len(themes) != 4 {
		t.Errorf("list_themes themes = %v, want 4 entries", themes)
	}

	handlersResp := d.Call(ctx, "list_handlers", nil, "")
	if handlersResp.Status != "success" {
		t.Fatalf("list_handlers = %+v, want success", handlersResp)
	}
}

func TestAddPlotFragmentRendersInlineIntoSession(t *testing.T) {
	d := newDispatcherWithStorage(t)
	ctx := context.Background()

	createResp := d.Call(ctx, "create_document_session", map[string]any{"auth_token": testToken, "alias": "inline-plot-fragment", "template_id": "invoice"}, "")
	sessionID := createResp.Data.(map[string]any)["session_id"].(string)

	args := plotArgs()
	args["session_id"] = sessionID
	args["title"] = "Revenue"
	resp := d.Call(ctx, "add_plot_fragment", args, "")
	if resp.Status != "success" {
		t.Fatalf("add_plot_fragment = %+v, want success", resp)
	}
	if guid, _ := resp.Data.(map[string]any)["instance_guid"].(string); guid == "" {
		t.Errorf("add_plot_fragment instance_guid is empty: %+v", resp.Data)
	}
}

func TestAddPlotFragmentFromStoredGUID(t *testing.T) {
	d := newDispatcherWithStorage(t)
	ctx := context.Background()

	createResp := d.Call(ctx, "create_document_session", map[string]any{"auth_token": testToken, "alias": "stored-guid-plot-fragment", "template_id": "invoice"}, "")
	sessionID := createResp.Data.(map[string]any)["session_id"].(string)

	proxyArgs := plotArgs()
	proxyArgs["proxy"] = true
	renderResp := d.Call(ctx, "render_graph", proxyArgs, "")
	guid := renderResp.Data.(map[string]any)["guid"].(string)

	resp := d.Call(ctx, "add_plot_fragment", map[string]any{
		"auth_token": testToken,
		"session_id": sessionID,
		"plot_guid":  guid,
	}, "")
	if resp.Status != "success" {
		t.Fatalf("add_plot_fragment(plot_guid) = %+v, want success", resp)
	}
}
