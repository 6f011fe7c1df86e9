package session

import (
	"context"
	"testing"

	"github.com/parrisma/gofr-doc/internal/model"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestCreateAndResolveByAlias(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "acme", "my-invoice", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	resolved, err := e.Resolve("acme", "my-invoice")
	if err != nil {
		t.Fatalf("Resolve() by alias error = %v", err)
	}
	if resolved.SessionID != s.SessionID {
		t.Errorf("Resolve() by alias session id = %q, want %q", resolved.SessionID, s.SessionID)
	}

	byID, err := e.Resolve("acme", s.SessionID)
	if err != nil {
		t.Fatalf("Resolve() by uuid error = %v", err)
	}
	if byID.SessionID != s.SessionID {
		t.Errorf("Resolve() by uuid session id = %q, want %q", byID.SessionID, s.SessionID)
	}
}

func TestAliasUniquePerGroup(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.CreateSession(ctx, "acme", "dup", "invoice"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := e.CreateSession(ctx, "acme", "dup", "invoice"); err == nil {
		t.Fatalf("CreateSession() with duplicate alias in same group want error, got nil")
	}

	if _, err := e.CreateSession(ctx, "other-group", "dup", "invoice"); err != nil {
		t.Fatalf("CreateSession() with same alias in different group error = %v, want nil", err)
	}
}

func TestInvalidAliasRejected(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateSession(context.Background(), "acme", "a", "invoice"); err == nil {
		t.Fatalf("CreateSession() with too-short alias want error, got nil")
	}
}

func TestMissingAliasRejected(t *testing.T) {
	e := newEngine(t)
	if _, err := e.CreateSession(context.Background(), "acme", "", "invoice"); err == nil {
		t.Fatalf("CreateSession() with empty alias want error, got nil")
	} else if de := model.AsDomainError(err); de.Kind != model.KindInvalidAlias {
		t.Errorf("CreateSession() with empty alias error kind = %q, want %q", de.Kind, model.KindInvalidAlias)
	}
}

func TestCrossGroupResolveIsSessionNotFound(t *testing.T) {
	e := newEngine(t)
	s, err := e.CreateSession(context.Background(), "acme", "cross-group", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	_, err = e.Resolve("other-group", s.SessionID)
	if err == nil {
		t.Fatalf("Resolve() cross-group want error, got nil")
	}
	de := model.AsDomainError(err)
	if de.Kind != model.KindSessionNotFound {
		t.Errorf("Resolve() cross-group error kind = %q, want %q", de.Kind, model.KindSessionNotFound)
	}
}

func TestRenderReadyIsStickyAfterFirstSet(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s, err := e.CreateSession(ctx, "acme", "render-ready", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := e.ValidateSessionForRender("acme", s.SessionID); err == nil {
		t.Fatalf("ValidateSessionForRender() before any params set want error, got nil")
	}

	if _, err := e.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{"a": 1}); err != nil {
		t.Fatalf("SetGlobalParameters() error = %v", err)
	}

	if _, err := e.ValidateSessionForRender("acme", s.SessionID); err != nil {
		t.Fatalf("ValidateSessionForRender() after params set error = %v", err)
	}

	if _, err := e.SetGlobalParameters(ctx, "acme", s.SessionID, map[string]any{}); err != nil {
		t.Fatalf("SetGlobalParameters() second call error = %v", err)
	}
	if _, err := e.ValidateSessionForRender("acme", s.SessionID); err != nil {
		t.Fatalf("ValidateSessionForRender() stays ready error = %v", err)
	}
}

func TestAddFragmentPositionGrammar(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s, err := e.CreateSession(ctx, "acme", "position-grammar", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	first, _, err := e.AddFragment(ctx, "acme", s.SessionID, "header", nil, "end")
	if err != nil {
		t.Fatalf("AddFragment() error = %v", err)
	}
	second, _, err := e.AddFragment(ctx, "acme", s.SessionID, "footer", nil, "end")
	if err != nil {
		t.Fatalf("AddFragment() error = %v", err)
	}
	third, session, err := e.AddFragment(ctx, "acme", s.SessionID, "middle", nil, "before:"+second)
	if err != nil {
		t.Fatalf("AddFragment() with before: position error = %v", err)
	}

	order := []string{session.Fragments[0].InstanceGUID, session.Fragments[1].InstanceGUID, session.Fragments[2].InstanceGUID}
	want := []string{first, third, second}
	for i := range order {
		if order[i] != want[i] {
			t.Fatalf("fragment order = %v, want %v", order, want)
		}
	}
}

func TestAddFragmentInvalidPositionReferenceRejected(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s, err := e.CreateSession(ctx, "acme", "invalid-position-ref", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, _, err := e.AddFragment(ctx, "acme", s.SessionID, "header", nil, "after:does-not-exist"); err == nil {
		t.Fatalf("AddFragment() with unknown reference guid want error, got nil")
	}
}

func TestRemoveFragmentGUIDNeverReused(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s, err := e.CreateSession(ctx, "acme", "guid-reuse", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	guid, _, err := e.AddFragment(ctx, "acme", s.SessionID, "header", nil, "end")
	if err != nil {
		t.Fatalf("AddFragment() error = %v", err)
	}
	if _, err := e.RemoveFragment(ctx, "acme", s.SessionID, guid); err != nil {
		t.Fatalf("RemoveFragment() error = %v", err)
	}
	if _, err := e.RemoveFragment(ctx, "acme", s.SessionID, guid); err == nil {
		t.Fatalf("RemoveFragment() on already-removed guid want error, got nil")
	}
}

func TestAbortSessionRemovesFromDiskAndMemory(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s, err := e.CreateSession(ctx, "acme", "abort-me", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := e.AbortSession("acme", s.SessionID); err != nil {
		t.Fatalf("AbortSession() error = %v", err)
	}

	if _, err := e.Resolve("acme", s.SessionID); err == nil {
		t.Fatalf("Resolve() after abort want error, got nil")
	}
	if _, err := e.Resolve("acme", "abort-me"); err == nil {
		t.Fatalf("Resolve() by alias after abort want error, got nil")
	}
}

func TestListActiveSessionsScopedToGroup(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	if _, err := e.CreateSession(ctx, "acme", "active-acme", "invoice"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := e.CreateSession(ctx, "other-group", "active-other", "invoice"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	active := e.ListActiveSessions("acme")
	if len(active) != 1 {
		t.Fatalf("ListActiveSessions() = %d sessions, want 1", len(active))
	}
}

func TestSessionsReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	e1, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s, err := e1.CreateSession(context.Background(), "acme", "persisted", "invoice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	e2, err := New(dir)
	if err != nil {
		t.Fatalf("New() reload error = %v", err)
	}
	resolved, err := e2.Resolve("acme", "persisted")
	if err != nil {
		t.Fatalf("Resolve() after reload error = %v", err)
	}
	if resolved.SessionID != s.SessionID {
		t.Errorf("Resolve() after reload session id = %q, want %q", resolved.SessionID, s.SessionID)
	}
}
