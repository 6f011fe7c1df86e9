package toolcatalog

import (
	"context"
	"os"
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

// fakeTokenStore resolves one fixed raw token to a fixed group, enough to
// exercise the dispatcher's auth step without a real token-issuing backend.
type fakeTokenStore struct {
	rawToken string
	record   model.TokenRecord
}

func (f *fakeTokenStore) Create(ctx context.Context, name, group string, expiresAt *time.Time) (string, model.TokenRecord, error) {
	return f.rawToken, f.record, nil
}

func (f *fakeTokenStore) VerifyHash(ctx context.Context, rawToken string) (model.TokenRecord, error) {
	if rawToken != f.rawToken {
		return model.TokenRecord{}, model.ErrAuthFailed("unknown token")
	}
	return f.record, nil
}

func (f *fakeTokenStore) List(ctx context.Context, group string) ([]model.TokenRecord, error) {
	return []model.TokenRecord{f.record}, nil
}

func (f *fakeTokenStore) Revoke(ctx context.Context, id string) error { return nil }

func (f *fakeTokenStore) Touch(ctx context.Context, id string, at time.Time) error { return nil }

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error = %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

const testGroup = "acme"
const testToken = "opaque-test-token"

func newDispatcher(t *testing.T) *Dispatcher {
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

	writeFixture(t, filepath.Join(fragmentsRoot, testGroup, "footer", "fragment.yaml"), `
fragment_id: footer
group: acme
name: Footer
description: Page footer
parameters:
  - name: text
    type: string
    required: true
`)
	writeFixture(t, filepath.Join(fragmentsRoot, testGroup, "footer", "fragment.html"), "<footer>{{.text}}</footer>")

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

	catalogue := New(Deps{Registry: reg, Sessions: sessions, Pipeline: pipeline, ServiceID: "gofr-doc-test"})
	return NewDispatcher(catalogue, auth)
}

func TestDispatchUnknownToolIsNotFound(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Call(context.Background(), "does_not_exist", nil, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindNotFound {
		t.Fatalf("Call(unknown) = %+v, want error/NotFound", resp)
	}
}

func TestDispatchAuthRequiredToolWithoutCredentialFails(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Call(context.Background(), "create_document_session", map[string]any{"template_id": "invoice"}, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindAuthRequired {
		t.Fatalf("Call(create_document_session, no token) = %+v, want error/AuthRequired", resp)
	}
}

func TestDispatchTokenOptionalToolWithoutCredentialSucceeds(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Call(context.Background(), "ping", nil, "")
	if resp.Status != "success" {
		t.Fatalf("Call(ping) = %+v, want success", resp)
	}
}

func TestCreateDocumentSessionMissingAliasIsInvalidAlias(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Call(context.Background(), "create_document_session", map[string]any{"auth_token": testToken, "template_id": "invoice"}, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindInvalidAlias {
		t.Fatalf("Call(create_document_session, no alias) = %+v, want error/InvalidAlias", resp)
	}
}

func TestDispatchGroupInjectionOverridesClientValue(t *testing.T) {
	d := newDispatcher(t)
	args := map[string]any{"auth_token": testToken, "alias": "group-injection", "template_id": "invoice", "group": "someone-elses-group"}
	resp := d.Call(context.Background(), "create_document_session", args, "")
	if resp.Status != "success" {
		t.Fatalf("Call(create_document_session) = %+v, want success", resp)
	}
	if args["group"] != testGroup {
		t.Errorf("args[group] after dispatch = %v, want %q (dispatcher-resolved group must win)", args["group"], testGroup)
	}
}

func TestCreateSessionSetParametersAddFragmentAndRender(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()

	createResp := d.Call(ctx, "create_document_session", map[string]any{"auth_token": testToken, "alias": "full-lifecycle", "template_id": "invoice"}, "")
	if createResp.Status != "success" {
		t.Fatalf("create_document_session = %+v, want success", createResp)
	}
	data, ok := createResp.Data.(map[string]any)
	if !ok {
		t.Fatalf("create_document_session data = %#v, want map", createResp.Data)
	}
	sessionID, _ := data["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("create_document_session returned empty session_id: %+v", data)
	}

	setResp := d.Call(ctx, "set_global_parameters", map[string]any{
		"auth_token": testToken,
		"session_id": sessionID,
		"parameters": map[string]any{"customer_name": "Acme Corp"},
	}, "")
	if setResp.Status != "success" {
		t.Fatalf("set_global_parameters = %+v, want success", setResp)
	}

	addResp := d.Call(ctx, "add_fragment", map[string]any{
		"auth_token":  testToken,
		"session_id":  sessionID,
		"fragment_id": "footer",
		"parameters":  map[string]any{"text": "page 1"},
		"position":    "end",
	}, "")
	if addResp.Status != "success" {
		t.Fatalf("add_fragment = %+v, want success", addResp)
	}

	renderResp := d.Call(ctx, "get_document", map[string]any{
		"auth_token": testToken,
		"session_id": sessionID,
		"format":     "html",
	}, "")
	if renderResp.Status != "success" {
		t.Fatalf("get_document = %+v, want success", renderResp)
	}
	renderData, ok := renderResp.Data.(map[string]any)
	if !ok {
		t.Fatalf("get_document data = %#v, want map", renderResp.Data)
	}
	content, _ := renderData["content"].(string)
	if content == "" {
		t.Errorf("get_document content is empty: %+v", renderData)
	}
}

func TestAddFragmentUnknownFragmentIsFragmentNotFound(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	createResp := d.Call(ctx, "create_document_session", map[string]any{"auth_token": testToken, "alias": "unknown-fragment", "template_id": "invoice"}, "")
	data := createResp.Data.(map[string]any)
	sessionID := data["session_id"].(string)

	resp := d.Call(ctx, "add_fragment", map[string]any{
		"auth_token":  testToken,
		"session_id":  sessionID,
		"fragment_id": "does-not-exist",
		"parameters":  map[string]any{},
	}, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindFragmentNotFound {
		t.Fatalf("add_fragment(unknown fragment) = %+v, want error/FragmentNotFound", resp)
	}
}

func TestAddFragmentTableRejectsRaggedRows(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	createResp := d.Call(ctx, "create_document_session", map[string]any{"auth_token": testToken, "alias": "ragged-table", "template_id": "invoice"}, "")
	data := createResp.Data.(map[string]any)
	sessionID := data["session_id"].(string)

	resp := d.Call(ctx, "add_fragment", map[string]any{
		"auth_token":  testToken,
		"session_id":  sessionID,
		"fragment_id": "table",
		"parameters": map[string]any{
			"columns": []any{"item", "amount"},
			"rows":    []any{[]any{"widget"}},
		},
	}, "")
	if resp.Status != "error" || resp.ErrorCode != model.KindInvalidFragmentParameters {
		t.Fatalf("add_fragment(table, ragged rows) = %+v, want error/InvalidFragmentParameters", resp)
	}
}

func TestValidateParametersReportsMissingRequired(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Call(context.Background(), "validate_parameters", map[string]any{
		"auth_token":      testToken,
		"template_id":     "invoice",
		"parameters_type": "global",
		"parameters":      map[string]any{},
	}, "")
	if resp.Status != "success" {
		t.Fatalf("validate_parameters = %+v, want success response carrying is_valid=false", resp)
	}
	data := resp.Data.(map[string]any)
	if valid, _ := data["is_valid"].(bool); valid {
		t.Errorf("validate_parameters is_valid = true, want false for missing required customer_name")
	}
}

func TestAbortSessionThenGetStatusIsSessionNotFound(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	createResp := d.Call(ctx, "create_document_session", map[string]any{"auth_token": testToken, "alias": "abort-then-status", "template_id": "invoice"}, "")
	data := createResp.Data.(map[string]any)
	sessionID := data["session_id"].(string)

	abortResp := d.Call(ctx, "abort_document_session", map[string]any{"auth_token": testToken, "session_id": sessionID}, "")
	if abortResp.Status != "success" {
		t.Fatalf("abort_document_session = %+v, want success", abortResp)
	}

	statusResp := d.Call(ctx, "get_session_status", map[string]any{"auth_token": testToken, "session_id": sessionID}, "")
	if statusResp.Status != "error" || statusResp.ErrorCode != model.KindSessionNotFound {
		t.Fatalf("get_session_status after abort = %+v, want error/SessionNotFound", statusResp)
	}
}
