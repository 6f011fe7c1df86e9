// Package validate implements C4: typed parameter validation against
// ParameterSchema declarations, plus the structural rules for table and
// image fragments. It never coerces a supplied value to the expected
// type — a mismatch is always reported, never silently repaired.
package validate

import (
	"fmt"

	"github.com/parrisma/gofr-doc/internal/model"
)

// Parameters validates a map of supplied values against a parameter
// schema list: unknown keys and missing required keys are hard errors,
// as is any type mismatch on a key that is present.
func Parameters(schemas []model.ParameterSchema, values map[string]any) []model.ValidationIssue {
	var issues []model.ValidationIssue

	known := make(map[string]model.ParameterSchema, len(schemas))
	for _, s := range schemas {
		known[s.Name] = s
	}

	for name, value := range values {
		schema, ok := known[name]
		if !ok {
			issues = append(issues, model.ValidationIssue{
				ParameterName: name,
				Message:       fmt.Sprintf("parameter %q is not declared by this template or fragment", name),
			})
			continue
		}
		issues = append(issues, checkValue(schema, value)...)
	}

	for _, schema := range schemas {
		if !schema.Required {
			continue
		}
		if _, ok := values[schema.Name]; !ok {
			issues = append(issues, model.ValidationIssue{
				ParameterName: schema.Name,
				ExpectedType:  string(schema.Kind),
				Message:       fmt.Sprintf("required parameter %q is missing", schema.Name),
				Suggested:     schema.Examples,
			})
		}
	}

	return issues
}

func checkValue(schema model.ParameterSchema, value any) []model.ValidationIssue {
	if value == nil {
		return nil
	}

	switch schema.Kind {
	case model.KindString:
		if _, ok := value.(string); !ok {
			return []model.ValidationIssue{typeMismatch(schema, value)}
		}
	case model.KindInteger:
		if !isInteger(value) {
			return []model.ValidationIssue{typeMismatch(schema, value)}
		}
	case model.KindNumber:
		if !isNumber(value) {
			return []model.ValidationIssue{typeMismatch(schema, value)}
		}
	case model.KindBoolean:
		if _, ok := value.(bool); !ok {
			return []model.ValidationIssue{typeMismatch(schema, value)}
		}
	case model.KindArray:
		items, ok := value.([]any)
		if !ok {
			return []model.ValidationIssue{typeMismatch(schema, value)}
		}
		if schema.Items == nil {
			return nil
		}
		var issues []model.ValidationIssue
		for _, item := range items {
			issues = append(issues, checkValue(*schema.Items, item)...)
		}
		return issues
	case model.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return []model.ValidationIssue{typeMismatch(schema, value)}
		}
		if schema.Properties == nil {
			return nil
		}
		return Parameters(schema.Properties, obj)
	}

	return nil
}

func typeMismatch(schema model.ParameterSchema, value any) model.ValidationIssue {
	return model.ValidationIssue{
		ParameterName: schema.Name,
		ExpectedType:  string(schema.Kind),
		ReceivedType:  goType(value),
		Message:       fmt.Sprintf("parameter %q expected type %q but received %s", schema.Name, schema.Kind, goType(value)),
		Suggested:     schema.Examples,
	}
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int64(v))
	default:
		return false
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func goType(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// AsError converts a non-empty issue list into a *model.DomainError with
// the given kind, or returns nil if there were no issues.
func AsError(kind model.Kind, issues []model.ValidationIssue) error {
	if len(issues) == 0 {
		return nil
	}
	details := make(map[string]any, 1)
	details["issues"] = issues
	return model.NewError(kind, fmt.Sprintf("%d validation issue(s)", len(issues)), "fix the reported parameters and retry", details)
}
