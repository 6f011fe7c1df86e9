package plot

import (
	"bytes"
	"image/png"
	"testing"
)

func TestValidateRequiresAtLeastOneSeries(t *testing.T) {
	issues := Validate(map[string]any{"x": []any{1.0, 2.0}})
	if len(issues) == 0 {
		t.Fatal("Validate() = no issues, want at least one for missing y series")
	}
}

func TestValidateRejectsMismatchedLengths(t *testing.T) {
	issues := Validate(map[string]any{
		"x":  []any{1.0, 2.0, 3.0},
		"y1": []any{1.0, 2.0},
	})
	if len(issues) == 0 {
		t.Fatal("Validate() = no issues, want a length-mismatch issue")
	}
}

func TestValidateAcceptsWellFormedLineSeries(t *testing.T) {
	issues := Validate(map[string]any{
		"x":     []any{1.0, 2.0, 3.0},
		"y1":    []any{10.0, 20.0, 15.0},
		"kind":  "line",
		"theme": "dark",
		"format": "png",
	})
	if len(issues) != 0 {
		t.Fatalf("Validate() = %+v, want none", issues)
	}
}

func TestValidateRejectsUnknownTheme(t *testing.T) {
	issues := Validate(map[string]any{
		"x":     []any{1.0},
		"y1":    []any{1.0},
		"theme": "neon",
	})
	if len(issues) == 0 {
		t.Fatal("Validate() = no issues, want one for unknown theme")
	}
}

func TestRenderPNGProducesDecodableImage(t *testing.T) {
	p := ParamsFromArgs(map[string]any{
		"x":  []any{1.0, 2.0, 3.0},
		"y1": []any{10.0, 30.0, 20.0},
		"y2": []any{5.0, 15.0, 25.0},
	})
	result, err := Render(p)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.MediaType != "image/png" {
		t.Fatalf("MediaType = %q, want image/png", result.MediaType)
	}
	if _, err := png.Decode(bytes.NewReader(result.Data)); err != nil {
		t.Fatalf("decode rendered png: %v", err)
	}
}

func TestRenderSVGProducesVectorMarkup(t *testing.T) {
	p := ParamsFromArgs(map[string]any{
		"x":      []any{1.0, 2.0},
		"y1":     []any{10.0, 20.0},
		"format": "svg",
		"kind":   "bar",
	})
	result, err := Render(p)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.MediaType != "image/svg+xml" {
		t.Fatalf("MediaType = %q, want image/svg+xml", result.MediaType)
	}
	if !bytes.Contains(result.Data, []byte("<svg")) {
		t.Errorf("svg output missing <svg> root element: %s", result.Data)
	}
}

func TestRenderPDFEmbedsJPEGXObject(t *testing.T) {
	p := ParamsFromArgs(map[string]any{
		"x":      []any{1.0, 2.0, 3.0},
		"y1":     []any{1.0, 2.0, 3.0},
		"format": "pdf",
		"kind":   "scatter",
	})
	result, err := Render(p)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.MediaType != "application/pdf" {
		t.Fatalf("MediaType = %q, want application/pdf", result.MediaType)
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF-1.4")) {
		t.Errorf("pdf output missing header: %s", result.Data[:20])
	}
	if !bytes.Contains(result.Data, []byte("/Filter /DCTDecode")) {
		t.Error("pdf output missing DCTDecode image XObject")
	}
}
