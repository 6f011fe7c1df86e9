package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/parrisma/gofr-doc/internal/model"
)

func TestParametersMissingRequired(t *testing.T) {
	schemas := []model.ParameterSchema{{Name: "customer_name", Kind: model.KindString, Required: true}}

	issues := Parameters(schemas, map[string]any{})
	if len(issues) != 1 {
		t.Fatalf("Parameters() issues = %+v, want 1 missing-required issue", issues)
	}
	if issues[0].ParameterName != "customer_name" {
		t.Errorf("issue parameter = %q, want %q", issues[0].ParameterName, "customer_name")
	}
}

func TestParametersUnknownKeyIsHardError(t *testing.T) {
	schemas := []model.ParameterSchema{{Name: "customer_name", Kind: model.KindString}}

	issues := Parameters(schemas, map[string]any{"unexpected": "value"})
	if len(issues) != 1 {
		t.Fatalf("Parameters() issues = %+v, want 1 unknown-key issue", issues)
	}
}

func TestParametersNoSilentCoercion(t *testing.T) {
	schemas := []model.ParameterSchema{{Name: "count", Kind: model.KindInteger}}

	issues := Parameters(schemas, map[string]any{"count": "3"})
	if len(issues) != 1 {
		t.Fatalf("Parameters() issues = %+v, want 1 type-mismatch issue for string-as-integer", issues)
	}
	if issues[0].ReceivedType != "string" {
		t.Errorf("ReceivedType = %q, want %q", issues[0].ReceivedType, "string")
	}
}

func TestParametersValidPasses(t *testing.T) {
	schemas := []model.ParameterSchema{
		{Name: "customer_name", Kind: model.KindString, Required: true},
		{Name: "amount", Kind: model.KindNumber},
	}

	issues := Parameters(schemas, map[string]any{"customer_name": "Acme", "amount": 42.5})
	if len(issues) != 0 {
		t.Fatalf("Parameters() issues = %+v, want none", issues)
	}
}

func TestParametersArrayItemsRecurse(t *testing.T) {
	schemas := []model.ParameterSchema{
		{Name: "tags", Kind: model.KindArray, Items: &model.ParameterSchema{Name: "tag", Kind: model.KindString}},
	}

	issues := Parameters(schemas, map[string]any{"tags": []any{"a", 2, "c"}})
	if len(issues) != 1 {
		t.Fatalf("Parameters() issues = %+v, want 1 issue for non-string array element", issues)
	}
}

func TestTableFragmentRowWidthMismatch(t *testing.T) {
	params := map[string]any{
		"columns": []any{"name", "amount"},
		"rows":    []any{[]any{"Widget", 10.0}, []any{"Gadget"}},
	}

	issues := TableFragment(params)
	if len(issues) != 1 {
		t.Fatalf("TableFragment() issues = %+v, want 1 row-width issue", issues)
	}
}

func TestTableFragmentUnknownAlignmentColumn(t *testing.T) {
	params := map[string]any{
		"columns":   []any{"name"},
		"rows":      []any{[]any{"Widget"}},
		"alignment": map[string]any{"amount": "left"},
	}

	issues := TableFragment(params)
	if len(issues) != 1 {
		t.Fatalf("TableFragment() issues = %+v, want 1 unknown-column alignment issue", issues)
	}
}

func TestTableFragmentValidPasses(t *testing.T) {
	params := map[string]any{
		"columns":   []any{"name", "amount"},
		"rows":      []any{[]any{"Widget", 10.0}},
		"alignment": map[string]any{"amount": "right"},
		"sort_by":   "name",
	}

	issues := TableFragment(params)
	if len(issues) != 0 {
		t.Fatalf("TableFragment() issues = %+v, want none", issues)
	}
}

type stubImageChecker struct{ err error }

func (s stubImageChecker) CheckURL(ctx context.Context, url string) error { return s.err }

func TestImageFragmentMissingURL(t *testing.T) {
	issues := ImageFragment(context.Background(), stubImageChecker{}, map[string]any{})
	if len(issues) != 1 {
		t.Fatalf("ImageFragment() issues = %+v, want 1 missing-url issue", issues)
	}
}

func TestImageFragmentDelegatesToChecker(t *testing.T) {
	checkerErr := model.NewError(model.KindImageURLNotAccessible, "not reachable", "check the url", nil)
	issues := ImageFragment(context.Background(), stubImageChecker{err: checkerErr}, map[string]any{"url": "https://example.com/a.png"})
	if len(issues) != 1 {
		t.Fatalf("ImageFragment() issues = %+v, want 1 checker-delegated issue", issues)
	}
}

func TestImageFragmentValidURLPasses(t *testing.T) {
	issues := ImageFragment(context.Background(), stubImageChecker{}, map[string]any{"url": "https://example.com/a.png"})
	if len(issues) != 0 {
		t.Fatalf("ImageFragment() issues = %+v, want none", issues)
	}
}

func TestAsErrorNilWhenNoIssues(t *testing.T) {
	if err := AsError(model.KindInvalidFragmentParameters, nil); err != nil {
		t.Errorf("AsError() = %v, want nil", err)
	}
}

func TestAsErrorWrapsIssues(t *testing.T) {
	err := AsError(model.KindInvalidFragmentParameters, []model.ValidationIssue{{ParameterName: "x", Message: "bad"}})
	if err == nil {
		t.Fatalf("AsError() = nil, want error")
	}
	var de *model.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("AsError() type = %T, want *model.DomainError", err)
	}
	if de.Kind != model.KindInvalidFragmentParameters {
		t.Errorf("AsError() kind = %q, want %q", de.Kind, model.KindInvalidFragmentParameters)
	}
}
