package toolcatalog

import (
	"context"

	"github.com/parrisma/gofr-doc/internal/imagevalidate"
	"github.com/parrisma/gofr-doc/internal/model"
	"github.com/parrisma/gofr-doc/internal/registry"
	"github.com/parrisma/gofr-doc/internal/render"
	"github.com/parrisma/gofr-doc/internal/session"
	"github.com/parrisma/gofr-doc/internal/storage"
	"github.com/parrisma/gofr-doc/internal/validate"
)

// Deps bundles every component the tool handlers call into. Storage is
// optional: when nil, the plot tools (C10) are not registered, since
// render_graph/get_image/add_plot_fragment all need somewhere to persist
// or fetch a plot_image blob.
type Deps struct {
	Registry  *registry.Registry
	Sessions  *session.Engine
	Images    *imagevalidate.Validator
	Pipeline  *render.Pipeline
	Storage   *storage.Store
	ServiceID string
}

// New builds the catalogue of discovery, session-lifecycle, validation,
// content-building, rendering, and (when Storage is wired) plot tools
// (spec.md §4.7's ≈25-entry catalogue).
func New(deps Deps) *Catalogue {
	c := NewCatalogue()

	registerDiscoveryTools(c, deps)
	registerSessionTools(c, deps)
	registerValidationTools(c, deps)
	registerContentTools(c, deps)
	registerRenderTools(c, deps)
	if deps.Storage != nil {
		registerPlotTools(c, deps)
	}

	return c
}

func obj(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str() map[string]any   { return map[string]any{"type": "string"} }
func boolT() map[string]any { return map[string]any{"type": "boolean"} }
func anyT() map[string]any  { return map[string]any{} }

func registerDiscoveryTools(c *Catalogue, deps Deps) {
	c.Register(Spec{
		Name:        "ping",
		Description: "Liveness check.",
		InputSchema: obj(nil),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return map[string]any{"status": "ok", "service": deps.ServiceID}, nil
	})

	c.Register(Spec{
		Name:        "help",
		Description: "Returns a workflow guide for assembling documents with this service.",
		InputSchema: obj(nil),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return map[string]any{
			"workflow": []string{
				"create_document_session(template_id, alias)",
				"set_global_parameters(session_id, parameters)",
				"add_fragment / add_image_fragment(session_id, ...)",
				"get_document(session_id, format, proxy?)",
			},
		}, nil
	})

	c.Register(Spec{
		Name:        "list_templates",
		Description: "Lists available document templates in the caller's group.",
		InputSchema: obj(nil),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Registry.ListTemplates(groupOrArg(group, args)), nil
	})

	c.Register(Spec{
		Name:        "get_template_details",
		Description: "Returns a template's schema: global parameters and embedded fragment list.",
		InputSchema: obj(map[string]any{"template_id": str()}, "template_id"),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		tmpl, err := deps.Registry.GetTemplate(groupOrArg(group, args), stringOf(args, "template_id"))
		if err != nil {
			return nil, err
		}
		return tmpl, nil
	})

	c.Register(Spec{
		Name:        "list_template_fragments",
		Description: "Lists the embedded fragment definitions a template declares.",
		InputSchema: obj(map[string]any{"template_id": str()}, "template_id"),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Registry.ListTemplateFragments(groupOrArg(group, args), stringOf(args, "template_id"))
	})

	c.Register(Spec{
		Name:        "get_fragment_details",
		Description: "Returns a fragment's schema, searching the standalone catalogue then any template's embedded fragments.",
		InputSchema: obj(map[string]any{"fragment_id": str()}, "fragment_id"),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Registry.GetFragmentDetails(groupOrArg(group, args), stringOf(args, "fragment_id"))
	})

	c.Register(Spec{
		Name:        "list_styles",
		Description: "Lists available stylesheets in the caller's group.",
		InputSchema: obj(nil),
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Registry.ListStyles(groupOrArg(group, args)), nil
	})
}

func registerSessionTools(c *Catalogue, deps Deps) {
	c.Register(Spec{
		Name:         "create_document_session",
		Description:  "Starts a new document-assembly session for a template.",
		InputSchema:  obj(map[string]any{"template_id": str(), "alias": str()}, "template_id", "alias"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		s, err := deps.Sessions.CreateSession(ctx, group, stringOf(args, "alias"), stringOf(args, "template_id"))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"session_id":  s.SessionID,
			"alias":       s.Alias,
			"template_id": s.TemplateID,
			"created_at":  s.CreatedAt,
		}, nil
	})

	c.Register(Spec{
		Name:         "get_session_status",
		Description:  "Returns a session's current status record.",
		InputSchema:  obj(map[string]any{"session_id": str()}, "session_id"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Sessions.GetSessionStatus(group, stringOf(args, "session_id"))
	})

	c.Register(Spec{
		Name:         "list_active_sessions",
		Description:  "Lists every active session in the caller's group.",
		InputSchema:  obj(nil),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Sessions.ListActiveSessions(group), nil
	})

	c.Register(Spec{
		Name:         "abort_document_session",
		Description:  "Discards a session and all of its in-progress state.",
		InputSchema:  obj(map[string]any{"session_id": str()}, "session_id"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		if err := deps.Sessions.AbortSession(group, stringOf(args, "session_id")); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	})
}

func registerValidationTools(c *Catalogue, deps Deps) {
	c.Register(Spec{
		Name:        "validate_parameters",
		Description: "Validates a parameter set against a template's global or fragment schema without mutating any session.",
		InputSchema: obj(map[string]any{
			"template_id":     str(),
			"parameters_type": str(),
			"fragment_id":     str(),
			"parameters":      anyT(),
		}, "template_id", "parameters_type", "parameters"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		tmpl, err := deps.Registry.GetTemplate(group, stringOf(args, "template_id"))
		if err != nil {
			return nil, err
		}

		var schemas []model.ParameterSchema
		switch stringOf(args, "parameters_type") {
		case "global":
			schemas = tmpl.GlobalParams
		case "fragment":
			frag, err := deps.Registry.GetFragmentDetails(group, stringOf(args, "fragment_id"))
			if err != nil {
				return nil, err
			}
			schemas = frag.Parameters
		default:
			return nil, model.NewError(model.KindInvalidArguments, "parameters_type must be \"global\" or \"fragment\"", "supply a valid parameters_type", nil)
		}

		params, _ := args["parameters"].(map[string]any)
		issues := validate.Parameters(schemas, params)
		return map[string]any{"is_valid": len(issues) == 0, "errors": issues}, nil
	})
}

func registerContentTools(c *Catalogue, deps Deps) {
	c.Register(Spec{
		Name:         "set_global_parameters",
		Description:  "Merges global parameters into a session and marks it render-ready.",
		InputSchema:  obj(map[string]any{"session_id": str(), "parameters": anyT()}, "session_id", "parameters"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		s, err := deps.Sessions.Resolve(group, stringOf(args, "session_id"))
		if err != nil {
			return nil, err
		}
		tmpl, err := deps.Registry.GetTemplate(group, s.TemplateID)
		if err != nil {
			return nil, err
		}
		params, _ := args["parameters"].(map[string]any)
		if issues := validate.Parameters(tmpl.GlobalParams, params); len(issues) > 0 {
			return nil, validate.AsError(model.KindInvalidGlobalParameters, issues)
		}

		updated, err := deps.Sessions.SetGlobalParameters(ctx, group, s.SessionID, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"session_id": updated.SessionID,
			"parameters": updated.GlobalParameters,
			"updated_at": updated.UpdatedAt,
		}, nil
	})

	c.Register(Spec{
		Name:        "add_fragment",
		Description: "Adds a fragment instance to a session at the given position.",
		InputSchema: obj(map[string]any{
			"session_id":  str(),
			"fragment_id": str(),
			"parameters":  anyT(),
			"position":    str(),
		}, "session_id", "fragment_id"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return handleAddFragment(ctx, deps, group, args)
	})

	c.Register(Spec{
		Name:        "add_image_fragment",
		Description: "Validates and downloads a remote image, embedding it as a self-contained fragment instance.",
		InputSchema: obj(map[string]any{
			"session_id":    str(),
			"image_url":     str(),
			"title":         str(),
			"width":         str(),
			"height":        str(),
			"alt_text":      str(),
			"alignment":     str(),
			"require_https": boolT(),
			"position":      str(),
		}, "session_id", "image_url"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return handleAddImageFragment(ctx, deps, group, args)
	})

	c.Register(Spec{
		Name:         "remove_fragment",
		Description:  "Removes a fragment instance from a session by its instance guid; the guid is never reused.",
		InputSchema:  obj(map[string]any{"session_id": str(), "instance_guid": str()}, "session_id", "instance_guid"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		if _, err := deps.Sessions.RemoveFragment(ctx, group, stringOf(args, "session_id"), stringOf(args, "instance_guid")); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	})

	c.Register(Spec{
		Name:         "list_session_fragments",
		Description:  "Lists a session's fragment instances in insertion order.",
		InputSchema:  obj(map[string]any{"session_id": str()}, "session_id"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		return deps.Sessions.ListSessionFragments(group, stringOf(args, "session_id"))
	})
}

func handleAddFragment(ctx context.Context, deps Deps, group string, args map[string]any) (any, error) {
	sessionID := stringOf(args, "session_id")
	fragmentID := stringOf(args, "fragment_id")
	params, _ := args["parameters"].(map[string]any)
	position := stringOf(args, "position")

	switch fragmentID {
	case "table":
		if issues := validate.TableFragment(params); len(issues) > 0 {
			return nil, validate.AsError(model.KindInvalidFragmentParameters, issues)
		}
	default:
		frag, err := deps.Registry.GetFragmentDetails(group, fragmentID)
		if err != nil {
			return nil, err
		}
		if issues := validate.Parameters(frag.Parameters, params); len(issues) > 0 {
			return nil, validate.AsError(model.KindInvalidFragmentParameters, issues)
		}
	}

	guid, _, err := deps.Sessions.AddFragment(ctx, group, sessionID, fragmentID, params, position)
	if err != nil {
		return nil, err
	}
	return map[string]any{"instance_guid": guid}, nil
}

func handleAddImageFragment(ctx context.Context, deps Deps, group string, args map[string]any) (any, error) {
	sessionID := stringOf(args, "session_id")
	imageURL := stringOf(args, "image_url")

	if issues := validate.ImageFragment(ctx, deps.Images, map[string]any{"url": imageURL}); len(issues) > 0 {
		return nil, validate.AsError(model.KindInvalidImageURL, issues)
	}

	dataURI, err := deps.Images.FetchAsDataURI(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	params := map[string]any{
		"title":     stringOf(args, "title"),
		"width":     stringOf(args, "width"),
		"height":    stringOf(args, "height"),
		"alt_text":  stringOf(args, "alt_text"),
		"alignment": stringOf(args, "alignment"),
	}

	guid, _, err := deps.Sessions.AddImageFragment(ctx, group, sessionID, "image_from_url", params, stringOf(args, "position"), dataURI)
	if err != nil {
		return nil, err
	}
	return map[string]any{"instance_guid": guid}, nil
}

func registerRenderTools(c *Catalogue, deps Deps) {
	c.Register(Spec{
		Name:        "get_document",
		Description: "Renders a session's template, fragments, and style to HTML, PDF, or Markdown, inline or as a proxy artefact.",
		InputSchema: obj(map[string]any{
			"session_id": str(),
			"format":     str(),
			"style_id":   str(),
			"proxy":      boolT(),
		}, "session_id", "format"),
		RequiresAuth: true,
	}, func(ctx context.Context, group string, args map[string]any) (any, error) {
		proxy, _ := args["proxy"].(bool)
		result, err := deps.Pipeline.RenderDocument(ctx, group, stringOf(args, "session_id"), stringOf(args, "format"), stringOf(args, "style_id"), proxy)
		if err != nil {
			return nil, err
		}
		if result.ProxyGUID != "" {
			return map[string]any{"proxy_guid": result.ProxyGUID, "download_url": result.DownloadURL, "format": result.Format, "content": ""}, nil
		}
		return map[string]any{"format": result.Format, "content": string(result.Content), "media_type": result.MediaType, "size": result.Size}, nil
	})
}

// groupOrArg lets unauthenticated discovery tools browse a specific
// group's public catalogue: the dispatcher only injects a group when a
// credential resolved, so these tools fall back to a client-supplied
// group argument, then to the "public" group the registry migrates
// ungrouped content into.
func groupOrArg(group string, args map[string]any) string {
	if group != "" {
		return group
	}
	if g := stringOf(args, "group"); g != "" {
		return g
	}
	return "public"
}

func stringOf(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
