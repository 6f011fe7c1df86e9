package validate

import (
	"fmt"
	"regexp"

	"github.com/parrisma/gofr-doc/internal/model"
)

var validAlignments = map[string]bool{"left": true, "center": true, "right": true}

// namedColors is the fixed palette table/header colors may reference by
// name instead of a literal hex code. Table styling has no style-registry
// counterpart (stylesheets are plain CSS, not named palettes), so this is
// its own small vocabulary rather than a lookup into C3's style registry.
var namedColors = map[string]bool{
	"primary": true, "secondary": true, "accent": true,
	"success": true, "warning": true, "danger": true, "muted": true,
}

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var numberFormatPattern = regexp.MustCompile(`^(currency:[A-Z]{3}|percent|integer|accounting|decimal:[0-9]+)$`)

func validColor(s string) bool {
	return namedColors[s] || hexColorPattern.MatchString(s)
}

// TableFragment checks the structural constraints a table fragment's
// parameters must satisfy beyond plain type checking: column/row
// rectangularity, has_header/alignment/number_format enum membership,
// header_color/highlight colors against the named palette or a hex code,
// highlight row/col indices within range, column_widths percentages
// summing to at most 100, and sort_by requiring a header row.
func TableFragment(params map[string]any) []model.ValidationIssue {
	var issues []model.ValidationIssue

	columns, ok := asStringSlice(params["columns"])
	if !ok {
		issues = append(issues, model.ValidationIssue{
			ParameterName: "columns",
			ExpectedType:  "array",
			Message:       "columns must be an array of column names",
		})
		return issues
	}
	columnSet := make(map[string]bool, len(columns))
	for _, c := range columns {
		columnSet[c] = true
	}

	rows, ok := params["rows"].([]any)
	if !ok {
		issues = append(issues, model.ValidationIssue{
			ParameterName: "rows",
			ExpectedType:  "array",
			Message:       "rows must be an array of row arrays",
		})
	} else {
		for i, r := range rows {
			row, ok := r.([]any)
			if !ok {
				issues = append(issues, model.ValidationIssue{
					ParameterName: fmt.Sprintf("rows[%d]", i),
					Message:       "each row must be an array",
				})
				continue
			}
			if len(row) != len(columns) {
				issues = append(issues, model.ValidationIssue{
					ParameterName: fmt.Sprintf("rows[%d]", i),
					Message:       fmt.Sprintf("row has %d cells, expected %d to match columns", len(row), len(columns)),
				})
			}
		}
	}

	if alignment, present := params["alignment"]; present {
		alignMap, ok := alignment.(map[string]any)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "alignment", Message: "alignment must be an object mapping column name to left|center|right"})
		} else {
			for col, val := range alignMap {
				if !columnSet[col] {
					issues = append(issues, model.ValidationIssue{ParameterName: "alignment", Message: fmt.Sprintf("alignment references unknown column %q", col)})
					continue
				}
				s, ok := val.(string)
				if !ok || !validAlignments[s] {
					issues = append(issues, model.ValidationIssue{ParameterName: "alignment", Message: fmt.Sprintf("alignment for column %q must be one of left, center, right", col)})
				}
			}
		}
	}

	hasHeader := true
	if raw, present := params["has_header"]; present {
		b, ok := raw.(bool)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "has_header", ExpectedType: "bool", Message: "has_header must be a boolean"})
		} else {
			hasHeader = b
		}
	}

	if sortBy, present := params["sort_by"]; present {
		s, ok := sortBy.(string)
		if !ok || !columnSet[s] {
			issues = append(issues, model.ValidationIssue{ParameterName: "sort_by", Message: "sort_by must name an existing column"})
		} else if !hasHeader {
			issues = append(issues, model.ValidationIssue{ParameterName: "sort_by", Message: "sort_by requires has_header to be true"})
		}
	}

	if widths, present := params["column_widths"]; present {
		widthMap, ok := widths.(map[string]any)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "column_widths", Message: "column_widths must be an object mapping column name to a percentage width"})
		} else {
			var total float64
			for col, val := range widthMap {
				if !columnSet[col] {
					issues = append(issues, model.ValidationIssue{ParameterName: "column_widths", Message: fmt.Sprintf("column_widths references unknown column %q", col)})
					continue
				}
				n, ok := val.(float64)
				if !ok {
					issues = append(issues, model.ValidationIssue{ParameterName: "column_widths", Message: fmt.Sprintf("column_widths[%q] must be a number", col)})
					continue
				}
				total += n
			}
			if total > 100 {
				issues = append(issues, model.ValidationIssue{ParameterName: "column_widths", Message: fmt.Sprintf("column_widths sum to %g%%, must not exceed 100%%", total)})
			}
		}
	}

	if numberFormat, present := params["number_format"]; present {
		formatMap, ok := numberFormat.(map[string]any)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "number_format", Message: "number_format must be an object mapping column name to a format string"})
		} else {
			for col, val := range formatMap {
				if !columnSet[col] {
					issues = append(issues, model.ValidationIssue{ParameterName: "number_format", Message: fmt.Sprintf("number_format references unknown column %q", col)})
					continue
				}
				s, ok := val.(string)
				if !ok || !numberFormatPattern.MatchString(s) {
					issues = append(issues, model.ValidationIssue{
						ParameterName: "number_format",
						Message:       fmt.Sprintf("number_format[%q] must be one of currency:ISO4217, percent, decimal:N, integer, accounting", col),
					})
				}
			}
		}
	}

	if color, present := params["color"]; present {
		colorMap, ok := color.(map[string]any)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "color", Message: "color must be an object mapping column name to a CSS color"})
		} else {
			for col, val := range colorMap {
				if !columnSet[col] {
					issues = append(issues, model.ValidationIssue{ParameterName: "color", Message: fmt.Sprintf("color references unknown column %q", col)})
					continue
				}
				s, ok := val.(string)
				if !ok || !validColor(s) {
					issues = append(issues, model.ValidationIssue{ParameterName: "color", Message: fmt.Sprintf("color[%q] must be a theme palette name or #RRGGBB hex value", col)})
				}
			}
		}
	}

	if headerColor, present := params["header_color"]; present {
		s, ok := headerColor.(string)
		if !ok || !validColor(s) {
			issues = append(issues, model.ValidationIssue{ParameterName: "header_color", Message: "header_color must be a theme palette name or #RRGGBB hex value"})
		}
	}

	if highlight, present := params["highlight"]; present {
		issues = append(issues, validateHighlight(highlight, columnSet, len(rows))...)
	}

	return issues
}

// validateHighlight checks highlight's optional rows/columns/color keys:
// row indices within the row matrix's bounds, column names that exist,
// and a color from the same palette-or-hex vocabulary as color/header_color.
func validateHighlight(raw any, columnSet map[string]bool, rowCount int) []model.ValidationIssue {
	var issues []model.ValidationIssue

	h, ok := raw.(map[string]any)
	if !ok {
		return []model.ValidationIssue{{ParameterName: "highlight", Message: "highlight must be an object with optional rows, columns, and color"}}
	}

	if rawRows, present := h["rows"]; present {
		indices, ok := rawRows.([]any)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "highlight.rows", Message: "highlight.rows must be an array of row indices"})
		} else {
			for _, item := range indices {
				n, ok := item.(float64)
				if !ok || n < 0 || int(n) >= rowCount {
					issues = append(issues, model.ValidationIssue{ParameterName: "highlight.rows", Message: fmt.Sprintf("highlight.rows index %v out of range for %d rows", item, rowCount)})
				}
			}
		}
	}

	if rawCols, present := h["columns"]; present {
		cols, ok := asStringSlice(rawCols)
		if !ok {
			issues = append(issues, model.ValidationIssue{ParameterName: "highlight.columns", Message: "highlight.columns must be an array of column names"})
		} else {
			for _, c := range cols {
				if !columnSet[c] {
					issues = append(issues, model.ValidationIssue{ParameterName: "highlight.columns", Message: fmt.Sprintf("highlight.columns references unknown column %q", c)})
				}
			}
		}
	}

	if rawColor, present := h["color"]; present {
		s, ok := rawColor.(string)
		if !ok || !validColor(s) {
			issues = append(issues, model.ValidationIssue{ParameterName: "highlight.color", Message: "highlight.color must be a theme palette name or #RRGGBB hex value"})
		}
	}

	return issues
}

func asStringSlice(value any) ([]string, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
