package toolcatalog

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/parrisma/gofr-doc/internal/model"
	"github.com/parrisma/gofr-doc/internal/plot"
	"github.com/parrisma/gofr-doc/internal/validate"
)

const plotImageArtifactType = "plot_image"

// registerPlotTools wires the optional C10 plot surface: render_graph,
// get_image, list_images, list_themes, list_handlers, add_plot_fragment.
// Only called when deps.Storage is non-nil.
func registerPlotTools(c *Catalogue, deps Deps) {
	c.Register(Spec{
		Name:        "render_graph",
		Description: "Renders a line/scatter/bar chart from typed series data, inline or as a proxied plot_image blob.",
		InputSchema: obj(map[string]any{
			"title":  str(),
			"kind":   str(),
			"theme":  str(),
			"format": str(),
			"x":      anyT(),
			"y1":     anyT(),
			"y2":     anyT(),
			"y3":     anyT(),
			"y4":     anyT(),
			"y5":     anyT(),
			"proxy":  boolT(),
			"alias":  str(),
		}, "x", "y1"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return handleRenderGraph(ctx, deps, group, args)
	})

	c.Register(Spec{
		Name:         "get_image",
		Description:  "Fetches a previously rendered plot image by guid or alias.",
		InputSchema:  obj(map[string]any{"identifier": str()}, "identifier"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		data, mediaType, err := resolvePlotImage(ctx, deps, group, stringOf(args, "identifier"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"content": base64.StdEncoding.EncodeToString(data), "media_type": mediaType}, nil
	})

	c.Register(Spec{
		Name:         "list_images",
		Description:  "Lists every stored plot image in the caller's group.",
		InputSchema:  obj(nil),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		blobs, err := deps.Storage.List(ctx, group, isPlotImage)
		if err != nil {
			return nil, err
		}
		return blobs, nil
	})

	c.Register(Spec{
		Name:        "list_themes",
		Description: "Lists the chart themes render_graph accepts.",
		InputSchema: obj(nil),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return map[string]any{"themes": []string{plot.ThemeLight, plot.ThemeDark, plot.ThemeBizLight, plot.ThemeBizDark}}, nil
	})

	c.Register(Spec{
		Name:        "list_handlers",
		Description: "Lists the chart kinds and output formats render_graph accepts.",
		InputSchema: obj(nil),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return map[string]any{
			"kinds":   []string{"line", "scatter", "bar"},
			"formats": []string{"png", "jpg", "svg", "pdf"},
		}, nil
	})

	c.Register(Spec{
		Name:        "add_plot_fragment",
		Description: "Adds a chart to a session, either rendering it inline or fetching a previously stored plot_image, as a self-contained fragment instance.",
		InputSchema: obj(map[string]any{
			"session_id": str(),
			"plot_guid":  str(),
			"title":      str(),
			"kind":       str(),
			"theme":      str(),
			"format":     str(),
			"x":          anyT(),
			"y1":         anyT(),
			"position":   str(),
		}, "session_id"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return handleAddPlotFragment(ctx, deps, group, args)
	})
}

func handleRenderGraph(ctx context.Context, deps Deps, group string, args map[string]any) (any, error) {
	if issues := plot.Validate(args); len(issues) > 0 {
		return nil, validate.AsError(model.KindValidationError, issues)
	}

	params := plot.ParamsFromArgs(args)
	result, err := plot.Render(params)
	if err != nil {
		return nil, model.NewError(model.KindRenderFailed, err.Error(), "check chart parameters and retry", nil)
	}

	proxy, _ := args["proxy"].(bool)
	if !proxy {
		return map[string]any{"content": base64.StdEncoding.EncodeToString(result.Data), "media_type": result.MediaType}, nil
	}

	extra := map[string]any{"artifact_type": plotImageArtifactType}
	if alias := stringOf(args, "alias"); alias != "" {
		extra["alias"] = alias
	}
	guid, err := deps.Storage.Save(ctx, group, params.Format, result.Data, extra)
	if err != nil {
		return nil, err
	}
	return map[string]any{"guid": guid, "media_type": result.MediaType}, nil
}

func handleAddPlotFragment(ctx context.Context, deps Deps, group string, args map[string]any) (any, error) {
	var data []byte
	var mediaType string
	var err error

	if guid := stringOf(args, "plot_guid"); guid != "" {
		data, mediaType, err = resolvePlotImage(ctx, deps, group, guid)
		if err != nil {
			return nil, err
		}
	} else {
		if issues := plot.Validate(args); len(issues) > 0 {
			return nil, validate.AsError(model.KindValidationError, issues)
		}
		result, renderErr := plot.Render(plot.ParamsFromArgs(args))
		if renderErr != nil {
			return nil, model.NewError(model.KindRenderFailed, renderErr.Error(), "check chart parameters and retry", nil)
		}
		data, mediaType = result.Data, result.MediaType
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
	params := map[string]any{"title": stringOf(args, "title"), "alt_text": "chart"}

	guid, _, err := deps.Sessions.AddImageFragment(ctx, group, stringOf(args, "session_id"), "image_from_url", params, stringOf(args, "position"), dataURI)
	if err != nil {
		return nil, err
	}
	return map[string]any{"instance_guid": guid}, nil
}

// resolvePlotImage fetches a plot_image blob by guid directly, or by
// scanning the group's index for a matching alias when the identifier
// isn't a known guid.
func resolvePlotImage(ctx context.Context, deps Deps, group, identifier string) ([]byte, string, error) {
	if data, format, _, err := deps.Storage.Get(ctx, identifier, group); err == nil {
		return data, mediaTypeForFormat(format), nil
	}

	blobs, err := deps.Storage.List(ctx, group, isPlotImage)
	if err != nil {
		return nil, "", err
	}
	for _, b := range blobs {
		if alias, _ := b.Extra["alias"].(string); alias == identifier {
			data, format, _, getErr := deps.Storage.Get(ctx, b.GUID, group)
			if getErr != nil {
				return nil, "", getErr
			}
			return data, mediaTypeForFormat(format), nil
		}
	}
	return nil, "", model.ErrNotFound(model.KindNotFound, fmt.Sprintf("plot image %q not found", identifier))
}

func isPlotImage(m model.BlobMetadata) bool {
	artifactType, _ := m.Extra["artifact_type"].(string)
	return artifactType == plotImageArtifactType
}

func mediaTypeForFormat(format string) string {
	switch format {
	case "jpg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	case "pdf":
		return "application/pdf"
	default:
		return "image/png"
	}
}
