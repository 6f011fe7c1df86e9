// Package plot implements C10 (optional): rendering typed line/scatter/bar
// series to a chart image. No charting library appears anywhere in the
// example pack, so the renderer draws axes and series directly against
// image.RGBA with the standard library, the smallest faithful
// implementation of the line/scatter/bar contract.
package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/parrisma/gofr-doc/internal/model"
)

const (
	defaultWidth  = 640
	defaultHeight = 400
	marginLeft    = 56
	marginRight   = 24
	marginTop     = 32
	marginBottom  = 40
)

// Theme names accepted by Params.Theme.
const (
	ThemeLight    = "light"
	ThemeDark     = "dark"
	ThemeBizLight = "bizlight"
	ThemeBizDark  = "bizdark"
)

var themes = map[string]palette{
	ThemeLight:    {background: rgb(0xff, 0xff, 0xff), axis: rgb(0x33, 0x33, 0x33), grid: rgb(0xe0, 0xe0, 0xe0), text: rgb(0x22, 0x22, 0x22)},
	ThemeDark:     {background: rgb(0x1e, 0x1e, 0x1e), axis: rgb(0xcc, 0xcc, 0xcc), grid: rgb(0x3a, 0x3a, 0x3a), text: rgb(0xee, 0xee, 0xee)},
	ThemeBizLight: {background: rgb(0xf7, 0xf7, 0xf2), axis: rgb(0x2b, 0x3a, 0x55), grid: rgb(0xdc, 0xdc, 0xd0), text: rgb(0x2b, 0x3a, 0x55)},
	ThemeBizDark:  {background: rgb(0x16, 0x22, 0x33), axis: rgb(0xc9, 0xd6, 0xe8), grid: rgb(0x28, 0x38, 0x4c), text: rgb(0xc9, 0xd6, 0xe8)},
}

var seriesColors = []color.RGBA{
	rgb(0x1f, 0x77, 0xb4),
	rgb(0xd6, 0x27, 0x28),
	rgb(0x2c, 0xa0, 0x2c),
	rgb(0xff, 0x7f, 0x0e),
	rgb(0x94, 0x67, 0xbd),
}

type palette struct {
	background color.RGBA
	axis       color.RGBA
	grid       color.RGBA
	text       color.RGBA
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xff} }

// Series is one named line/scatter/bar trace.
type Series struct {
	Label  string
	Values []float64
}

// Params is the typed, already-validated chart request.
type Params struct {
	Title  string
	Kind   string // line | scatter | bar
	X      []float64
	Series []Series
	Theme  string
	Format string // png | jpg | svg | pdf
	Width  int
	Height int
	YMin   *float64
	YMax   *float64
}

// Result is a rendered chart's bytes and media type.
type Result struct {
	Data      []byte
	MediaType string
}

// Validate checks the raw tool-call parameters structurally, mirroring
// validate.TableFragment's style: required arrays present, equal length,
// numeric, non-empty, theme/format/kind within their enums.
func Validate(params map[string]any) []model.ValidationIssue {
	var issues []model.ValidationIssue

	x, xIssues := numberSlice(params, "x")
	issues = append(issues, xIssues...)

	seriesCount := 0
	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("y%d", i)
		raw, present := params[key]
		if !present {
			continue
		}
		seriesCount++
		values, vIssues := numberSliceValue(key, raw)
		issues = append(issues, vIssues...)
		if len(x) > 0 && len(values) > 0 && len(values) != len(x) {
			issues = append(issues, model.ValidationIssue{ParameterName: key, Message: fmt.Sprintf("%s has %d values, want %d to match x", key, len(values), len(x))})
		}
	}
	if seriesCount == 0 {
		issues = append(issues, model.ValidationIssue{ParameterName: "y1", Message: "at least one of y1..y5 is required"})
	}

	if kind, ok := params["kind"].(string); ok && kind != "" {
		switch kind {
		case "line", "scatter", "bar":
		default:
			issues = append(issues, model.ValidationIssue{ParameterName: "kind", Message: "kind must be one of line, scatter, bar"})
		}
	}

	if theme, ok := params["theme"].(string); ok && theme != "" {
		if _, known := themes[theme]; !known {
			issues = append(issues, model.ValidationIssue{ParameterName: "theme", Message: "theme must be one of light, dark, bizlight, bizdark"})
		}
	}

	if format, ok := params["format"].(string); ok && format != "" {
		switch format {
		case "png", "jpg", "svg", "pdf":
		default:
			issues = append(issues, model.ValidationIssue{ParameterName: "format", Message: "format must be one of png, jpg, svg, pdf"})
		}
	}

	return issues
}

func numberSlice(params map[string]any, key string) ([]float64, []model.ValidationIssue) {
	raw, ok := params[key]
	if !ok {
		return nil, []model.ValidationIssue{{ParameterName: key, Message: key + " is required"}}
	}
	return numberSliceValue(key, raw)
}

func numberSliceValue(key string, raw any) ([]float64, []model.ValidationIssue) {
	items, ok := raw.([]any)
	if !ok {
		return nil, []model.ValidationIssue{{ParameterName: key, Message: key + " must be an array of numbers"}}
	}
	if len(items) == 0 {
		return nil, []model.ValidationIssue{{ParameterName: key, Message: key + " must not be empty"}}
	}
	values := make([]float64, 0, len(items))
	for i, item := range items {
		n, ok := item.(float64)
		if !ok {
			return nil, []model.ValidationIssue{{ParameterName: fmt.Sprintf("%s[%d]", key, i), Message: "value must be numeric"}}
		}
		values = append(values, n)
	}
	return values, nil
}

// ParamsFromArgs builds Params from raw tool-call arguments, assumed
// already passed through Validate.
func ParamsFromArgs(args map[string]any) Params {
	p := Params{
		Title:  stringOf(args, "title"),
		Kind:   orDefault(stringOf(args, "kind"), "line"),
		Theme:  orDefault(stringOf(args, "theme"), ThemeLight),
		Format: orDefault(stringOf(args, "format"), "png"),
		Width:  defaultWidth,
		Height: defaultHeight,
	}
	p.X, _ = numberSliceValue("x", args["x"])
	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("y%d", i)
		raw, present := args[key]
		if !present {
			continue
		}
		values, _ := numberSliceValue(key, raw)
		label := stringOf(args, key+"_label")
		if label == "" {
			label = key
		}
		p.Series = append(p.Series, Series{Label: label, Values: values})
	}
	return p
}

func stringOf(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Render draws the chart and encodes it per Params.Format.
func Render(p Params) (Result, error) {
	pal, ok := themes[p.Theme]
	if !ok {
		pal = themes[ThemeLight]
	}
	if p.Width == 0 {
		p.Width = defaultWidth
	}
	if p.Height == 0 {
		p.Height = defaultHeight
	}

	if p.Format == "svg" {
		return Result{Data: []byte(renderSVG(p, pal)), MediaType: "image/svg+xml"}, nil
	}

	img := rasterize(p, pal)

	switch p.Format {
	case "", "png":
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return Result{}, fmt.Errorf("encode plot png: %w", err)
		}
		return Result{Data: buf.Bytes(), MediaType: "image/png"}, nil
	case "jpg":
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return Result{}, fmt.Errorf("encode plot jpeg: %w", err)
		}
		return Result{Data: buf.Bytes(), MediaType: "image/jpeg"}, nil
	case "pdf":
		var jbuf bytes.Buffer
		if err := jpeg.Encode(&jbuf, img, &jpeg.Options{Quality: 90}); err != nil {
			return Result{}, fmt.Errorf("encode plot jpeg for pdf: %w", err)
		}
		return Result{Data: wrapJPEGInPDF(jbuf.Bytes(), p.Width, p.Height), MediaType: "application/pdf"}, nil
	default:
		return Result{}, fmt.Errorf("unsupported plot format %q", p.Format)
	}
}

func rasterize(p Params, pal palette) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: pal.background}, image.Point{}, draw.Src)

	plotRect := image.Rect(marginLeft, marginTop, p.Width-marginRight, p.Height-marginBottom)
	yMin, yMax := yRange(p)

	for i := 0; i <= 4; i++ {
		y := plotRect.Min.Y + i*plotRect.Dy()/4
		drawHLine(img, plotRect.Min.X, plotRect.Max.X, y, pal.grid)
	}
	drawHLine(img, plotRect.Min.X, plotRect.Max.X, plotRect.Max.Y, pal.axis)
	drawVLine(img, plotRect.Min.X, plotRect.Min.Y, plotRect.Max.Y, pal.axis)

	for si, s := range p.Series {
		col := seriesColors[si%len(seriesColors)]
		points := make([]image.Point, 0, len(s.Values))
		for i, v := range s.Values {
			px := plotRect.Min.X
			if len(p.X) > 1 {
				px += int(float64(i) / float64(len(p.X)-1) * float64(plotRect.Dx()))
			}
			py := plotRect.Max.Y - int((v-yMin)/(yMax-yMin)*float64(plotRect.Dy()))
			points = append(points, image.Point{X: px, Y: py})
		}

		switch p.Kind {
		case "bar":
			barWidth := plotRect.Dx() / max(len(points), 1) / max(len(p.Series), 1)
			for i, pt := range points {
				x0 := plotRect.Min.X + i*plotRect.Dx()/max(len(points), 1) + si*barWidth
				drawFilledRect(img, x0, pt.Y, x0+barWidth, plotRect.Max.Y, col)
			}
		case "scatter":
			for _, pt := range points {
				drawFilledRect(img, pt.X-2, pt.Y-2, pt.X+2, pt.Y+2, col)
			}
		default: // line
			for i := 1; i < len(points); i++ {
				drawLine(img, points[i-1], points[i], col)
			}
		}
	}

	return img
}

func yRange(p Params) (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, s := range p.Series {
		for _, v := range s.Values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	if p.YMin != nil {
		min = *p.YMin
	}
	if p.YMax != nil {
		max = *p.YMax
	}
	if min == max {
		max = min + 1
	}
	return min, max
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func drawVLine(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

func drawFilledRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawLine is a plain Bresenham rasterizer, enough fidelity for a chart
// trace at this resolution.
func drawLine(img *image.RGBA, p0, p1 image.Point, c color.RGBA) {
	dx := abs(p1.X - p0.X)
	dy := -abs(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	err := dx + dy
	x, y := p0.X, p0.Y
	for {
		img.SetRGBA(x, y, c)
		if x == p1.X && y == p1.Y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// renderSVG builds a vector chart by templating coordinates directly,
// reusing the project's plain-string-template idiom rather than a new
// dependency.
func renderSVG(p Params, pal palette) string {
	yMin, yMax := yRange(p)
	plotW, plotH := p.Width-marginLeft-marginRight, p.Height-marginTop-marginBottom

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, p.Width, p.Height, p.Width, p.Height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="%s"/>`, p.Width, p.Height, hexOf(pal.background))
	if p.Title != "" {
		fmt.Fprintf(&b, `<text x="%d" y="20" fill="%s" font-size="14">%s</text>`, marginLeft, hexOf(pal.text), escapeXML(p.Title))
	}
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s"/>`, marginLeft, p.Height-marginBottom, p.Width-marginRight, p.Height-marginBottom, hexOf(pal.axis))
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s"/>`, marginLeft, marginTop, marginLeft, p.Height-marginBottom, hexOf(pal.axis))

	for si, s := range p.Series {
		col := seriesColors[si%len(seriesColors)]
		switch p.Kind {
		case "bar":
			barWidth := plotW / max(len(s.Values), 1) / max(len(p.Series), 1)
			for i, v := range s.Values {
				x0 := marginLeft + i*plotW/max(len(s.Values), 1) + si*barWidth
				y0 := p.Height - marginBottom - int((v-yMin)/(yMax-yMin)*float64(plotH))
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x0, y0, barWidth, p.Height-marginBottom-y0, hexOf(col))
			}
		case "scatter":
			for i, v := range s.Values {
				x := marginLeft + i*plotW/max(len(s.Values)-1, 1)
				y := p.Height - marginBottom - int((v-yMin)/(yMax-yMin)*float64(plotH))
				fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="3" fill="%s"/>`, x, y, hexOf(col))
			}
		default:
			b.WriteString(`<polyline fill="none" stroke="` + hexOf(col) + `" points="`)
			for i, v := range s.Values {
				x := marginLeft + i*plotW/max(len(s.Values)-1, 1)
				y := p.Height - marginBottom - int((v-yMin)/(yMax-yMin)*float64(plotH))
				fmt.Fprintf(&b, "%d,%d ", x, y)
			}
			b.WriteString(`"/>`)
		}
	}

	b.WriteString(`</svg>`)
	return b.String()
}

func hexOf(c color.RGBA) string {
	return "#" + strconv.FormatUint(uint64(c.R), 16) + strconv.FormatUint(uint64(c.G), 16) + strconv.FormatUint(uint64(c.B), 16)
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}

// wrapJPEGInPDF builds a minimal single-page PDF embedding jpegData as a
// DCTDecode image XObject, the same hand-rolled-PDF idiom convert.PDFConverter
// uses for its text-only output.
func wrapJPEGInPDF(jpegData []byte, width, height int) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 6)

	buf.WriteString("%PDF-1.4\n")

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = buf.Len()
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 5 0 R >> >> /MediaBox [0 0 %d %d] /Contents 4 0 R >>\nendobj\n", width, height)

	content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", width, height)
	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)

	offsets[5] = buf.Len()
	fmt.Fprintf(&buf, "5 0 obj\n<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n", width, height, len(jpegData))
	buf.Write(jpegData)
	buf.WriteString("\nendstream\nendobj\n")

	xrefStart := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", xrefStart)

	return buf.Bytes()
}
