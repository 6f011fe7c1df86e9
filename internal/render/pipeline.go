package render

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/parrisma/gofr-doc/internal/convert"
	"github.com/parrisma/gofr-doc/internal/model"
	"github.com/parrisma/gofr-doc/internal/registry"
	"github.com/parrisma/gofr-doc/internal/session"
	"github.com/parrisma/gofr-doc/internal/storage"
)

const proxyArtifactType = "document_proxy"

// tableFragmentID is the reserved fragment_id add_fragment recognizes
// for structured table content; it has no on-disk registry definition
// since its shape is fixed by validate.TableFragment rather than
// authored per group.
const tableFragmentID = "table"

// imageFragmentTemplate renders any fragment instance carrying an
// embedded data URI (image_from_url fragments, and the plot-to-document
// bridge) without a registry lookup, since these instances are
// constructed directly by the dispatcher rather than authored on disk.
const imageFragmentTemplate = `<div class="image-fragment"{{if .alignment}} style="text-align:{{.alignment}}"{{end}}><img src="{{.embedded_data_uri}}" alt="{{.alt_text}}"{{if .width}} width="{{.width}}"{{end}}{{if .height}} height="{{.height}}"{{end}}>{{if .title}}<div class="image-title">{{.title}}</div>{{end}}</div>`

// Pipeline composes a session's template, ordered fragments, and a style
// into HTML, then optionally converts it to PDF or Markdown (C6). It reads
// session state but never mutates it; the session engine is the only
// mutator of durable session data (spec.md §3).
type Pipeline struct {
	registry  *registry.Registry
	sessions  *session.Engine
	storage   *storage.Store
	converter *convert.Registry
}

func NewPipeline(reg *registry.Registry, sessions *session.Engine, store *storage.Store, converter *convert.Registry) *Pipeline {
	return &Pipeline{registry: reg, sessions: sessions, storage: store, converter: converter}
}

// Result is what get_document returns: either inline content or a proxy
// handle, never both.
type Result struct {
	Format      string
	MediaType   string
	Content     []byte
	Size        int
	ProxyGUID   string
	DownloadURL string
}

// RenderDocument implements spec.md §4.6's five-step pipeline: load the
// document template, resolve and render each fragment instance in order,
// inject globals/fragments/style into the document text, convert to the
// requested format, and either return inline bytes or persist a proxy.
func (p *Pipeline) RenderDocument(ctx context.Context, group, identifier, format, styleID string, proxy bool) (*Result, error) {
	s, err := p.sessions.ValidateSessionForRender(group, identifier)
	if err != nil {
		return nil, err
	}

	tmpl, err := p.registry.GetTemplate(group, s.TemplateID)
	if err != nil {
		return nil, err
	}

	fragmentsHTML, err := p.renderFragments(group, s)
	if err != nil {
		return nil, err
	}

	css, err := p.resolveStyleCSS(group, styleID)
	if err != nil {
		return nil, err
	}

	documentText, err := p.registry.GetJinjaDocument(group, tmpl.TemplateID)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"Global":        s.GlobalParameters,
		"FragmentsHTML": fragmentsHTML,
		"StyleCSS":      css,
	}

	html, err := ExecuteWithFuncs(documentText, data, nil)
	if err != nil {
		return nil, model.NewError(model.KindRenderFailed, fmt.Sprintf("document render failed: %v", err), "check the template's syntax and parameter references", nil)
	}

	converted, err := p.converter.Convert(ctx, convert.Format(format), html)
	if err != nil {
		return nil, err
	}

	mediaType := convert.Format(format).MediaType()

	if !proxy {
		return &Result{Format: format, MediaType: mediaType, Content: converted, Size: len(converted)}, nil
	}

	guid, err := p.storage.Save(ctx, group, format, converted, map[string]any{"artifact_type": proxyArtifactType})
	if err != nil {
		return nil, err
	}
	return &Result{Format: format, MediaType: mediaType, ProxyGUID: guid, DownloadURL: "/proxy/" + guid}, nil
}

// renderFragments resolves and renders each fragment instance in session
// order, wrapping each block in an HTML comment marker carrying its
// instance guid so round-trip checks can confirm ordering and presence.
func (p *Pipeline) renderFragments(group string, s *model.Session) (string, error) {
	var b strings.Builder
	for _, instance := range s.Fragments {
		rendered, err := p.renderOneFragment(group, instance)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "<!-- fragment-instance:%s -->\n%s\n", instance.InstanceGUID, rendered)
	}
	return b.String(), nil
}

func (p *Pipeline) renderOneFragment(group string, instance model.FragmentInstance) ([]byte, error) {
	if instance.EmbeddedDataURI != "" {
		merged := make(map[string]any, len(instance.Parameters)+1)
		for k, v := range instance.Parameters {
			merged[k] = v
		}
		merged["embedded_data_uri"] = instance.EmbeddedDataURI

		rendered, err := ExecuteWithFuncs(imageFragmentTemplate, merged, nil)
		if err != nil {
			return nil, model.NewError(model.KindRenderFailed, fmt.Sprintf("image fragment render failed: %v", err), "check the image fragment's parameters", nil)
		}
		return rendered, nil
	}

	if instance.FragmentID == tableFragmentID {
		return renderTableFragment(instance.Parameters), nil
	}

	fragment, err := p.registry.GetFragmentDetails(group, instance.FragmentID)
	if err != nil {
		return nil, err
	}
	content, err := p.registry.GetJinjaFragment(group, fragment.FragmentID)
	if err != nil {
		return nil, err
	}

	rendered, err := ExecuteWithFuncs(content, instance.Parameters, nil)
	if err != nil {
		return nil, model.NewError(model.KindRenderFailed, fmt.Sprintf("fragment %q render failed: %v", fragment.FragmentID, err), "check the fragment's syntax and parameter references", nil)
	}
	return rendered, nil
}

// paletteColors maps the table fragment's named palette (validated in
// validate.TableFragment's color/header_color/highlight checks) to actual
// CSS colors; a literal #RRGGBB value in those same parameters is passed
// through unchanged.
var paletteColors = map[string]string{
	"primary": "#1f77b4", "secondary": "#6c757d", "accent": "#ff7f0e",
	"success": "#2ca02c", "warning": "#e6a817", "danger": "#d62728", "muted": "#9e9e9e",
}

func resolveColor(name string) string {
	if hex, ok := paletteColors[name]; ok {
		return hex
	}
	return name
}

// renderTableFragment builds an HTML table from already-validated table
// fragment parameters (validate.TableFragment enforces rectangularity, that
// styling keys only reference declared columns, and every enum/color/range
// constraint before this ever runs): has_header controls whether a <thead>
// is emitted, number_format formats each column's cells, color/header_color/
// highlight set background colors, and alignment/column_widths set layout.
func renderTableFragment(params map[string]any) []byte {
	columns := stringSliceParam(params, "columns")
	rows := rowsParam(params)
	alignment, _ := params["alignment"].(map[string]any)
	widths, _ := params["column_widths"].(map[string]any)
	numberFormat, _ := params["number_format"].(map[string]any)
	color, _ := params["color"].(map[string]any)
	headerColor, _ := params["header_color"].(string)
	hasHeader := true
	if v, ok := params["has_header"].(bool); ok {
		hasHeader = v
	}
	highlightRows, highlightCols, highlightColor := parseHighlight(params["highlight"])

	if sortBy, ok := params["sort_by"].(string); ok {
		sortRowsByColumn(columns, rows, sortBy)
	}

	var b strings.Builder
	b.WriteString(`<table class="fragment-table">`)
	if hasHeader {
		b.WriteString("<thead><tr>")
		for _, col := range columns {
			style := columnStyle(col, alignment, widths, resolveColor(headerColor))
			fmt.Fprintf(&b, "<th%s>%s</th>", style, html.EscapeString(col))
		}
		b.WriteString("</tr></thead>")
	}
	b.WriteString("<tbody>")
	for ri, row := range rows {
		b.WriteString("<tr>")
		for i, cell := range row {
			col := ""
			if i < len(columns) {
				col = columns[i]
			}
			bg := ""
			if c, ok := color[col].(string); ok {
				bg = resolveColor(c)
			}
			if highlightRows[ri] || highlightCols[col] {
				bg = highlightColor
			}
			style := columnStyle(col, alignment, nil, bg)
			fmt.Fprintf(&b, "<td%s>%s</td>", style, html.EscapeString(formatCell(cell, stringOfMap(numberFormat, col))))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return []byte(b.String())
}

func columnStyle(col string, alignment, widths map[string]any, bgColor string) string {
	var decls []string
	if alignment != nil {
		if a, ok := alignment[col].(string); ok {
			decls = append(decls, "text-align:"+a)
		}
	}
	if widths != nil {
		if w, ok := widths[col]; ok {
			decls = append(decls, fmt.Sprintf("width:%v%%", w))
		}
	}
	if bgColor != "" {
		decls = append(decls, "background-color:"+bgColor)
	}
	if len(decls) == 0 {
		return ""
	}
	return ` style="` + strings.Join(decls, ";") + `"`
}

func stringOfMap(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// parseHighlight turns the highlight parameter into lookup sets for the
// row indices and column names it covers, plus the color to apply.
func parseHighlight(raw any) (rows map[int]bool, cols map[string]bool, color string) {
	rows, cols = map[int]bool{}, map[string]bool{}
	h, ok := raw.(map[string]any)
	if !ok {
		return rows, cols, ""
	}
	if rawRows, ok := h["rows"].([]any); ok {
		for _, item := range rawRows {
			if n, ok := item.(float64); ok {
				rows[int(n)] = true
			}
		}
	}
	if rawCols, ok := h["columns"].([]any); ok {
		for _, item := range rawCols {
			if s, ok := item.(string); ok {
				cols[s] = true
			}
		}
	}
	color = resolveColor(stringOfMap(h, "color"))
	return rows, cols, color
}

// formatCell applies a validate.TableFragment-checked number_format
// (currency:ISO4217, percent, decimal:N, integer, accounting) to a numeric
// cell; non-numeric cells and an empty format pass through unchanged.
func formatCell(cell any, format string) string {
	if format == "" {
		return fmt.Sprint(cell)
	}
	n, ok := toFloat(cell)
	if !ok {
		return fmt.Sprint(cell)
	}
	switch {
	case format == "percent":
		return strconv.FormatFloat(n, 'f', 1, 64) + "%"
	case format == "integer":
		return strconv.FormatFloat(n, 'f', 0, 64)
	case format == "accounting":
		if n < 0 {
			return "(" + strconv.FormatFloat(-n, 'f', 2, 64) + ")"
		}
		return strconv.FormatFloat(n, 'f', 2, 64)
	case strings.HasPrefix(format, "currency:"):
		return strings.TrimPrefix(format, "currency:") + " " + strconv.FormatFloat(n, 'f', 2, 64)
	case strings.HasPrefix(format, "decimal:"):
		precision, err := strconv.Atoi(strings.TrimPrefix(format, "decimal:"))
		if err != nil {
			return fmt.Sprint(cell)
		}
		return strconv.FormatFloat(n, 'f', precision, 64)
	default:
		return fmt.Sprint(cell)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringSliceParam(params map[string]any, key string) []string {
	items, _ := params[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func rowsParam(params map[string]any) [][]any {
	raw, _ := params["rows"].([]any)
	out := make([][]any, 0, len(raw))
	for _, r := range raw {
		row, ok := r.([]any)
		if !ok {
			continue
		}
		out = append(out, row)
	}
	return out
}

func sortRowsByColumn(columns []string, rows [][]any, sortBy string) {
	idx := -1
	for i, c := range columns {
		if c == sortBy {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := fmt.Sprint(rows[i][idx]), fmt.Sprint(rows[j][idx])
		x, errA := strconv.ParseFloat(a, 64)
		y, errB := strconv.ParseFloat(b, 64)
		if errA == nil && errB == nil {
			return x < y
		}
		return a < b
	})
}

// resolveStyleCSS returns the named style's CSS, or the group's first
// loaded style if styleID is empty (spec.md §2: "one default per group,
// the first successfully loaded").
func (p *Pipeline) resolveStyleCSS(group, styleID string) (string, error) {
	if styleID == "" {
		summaries := p.registry.ListStyles(group)
		if len(summaries) == 0 {
			return "", nil
		}
		styleID = summaries[0].ID
	}
	style, err := p.registry.GetStyle(group, styleID)
	if err != nil {
		return "", err
	}
	return style.CSS, nil
}

// GetProxyDocument retrieves a previously persisted proxy artefact,
// enforcing group match (NotFound on mismatch, no enumeration leak, I9).
func (p *Pipeline) GetProxyDocument(ctx context.Context, group, proxyGUID string) (string, []byte, error) {
	data, format, _, err := p.storage.Get(ctx, proxyGUID, group)
	if err != nil {
		return "", nil, err
	}
	return format, data, nil
}
