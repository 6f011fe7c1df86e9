package httpapi

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "ping", nil)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "help", nil)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_templates", nil)
}

func (s *Server) handleGetTemplateDetails(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "get_template_details", map[string]any{"template_id": r.PathValue("id")})
}

func (s *Server) handleListTemplateFragments(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_template_fragments", map[string]any{"template_id": r.PathValue("id")})
}

func (s *Server) handleGetFragmentDetails(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "get_fragment_details", map[string]any{"fragment_id": r.PathValue("fid")})
}

func (s *Server) handleListStyles(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_styles", nil)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID string `json:"template_id"`
		Alias      string `json:"alias"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "create_document_session", map[string]any{"template_id": body.TemplateID, "alias": body.Alias})
}

func (s *Server) handleListActiveSessions(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_active_sessions", nil)
}

func (s *Server) handleGetSessionStatus(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "get_session_status", map[string]any{"session_id": r.PathValue("id")})
}

func (s *Server) handleAbortSession(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "abort_document_session", map[string]any{"session_id": r.PathValue("id")})
}

func (s *Server) handleSetGlobalParameters(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Parameters map[string]any `json:"parameters"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "set_global_parameters", map[string]any{
		"session_id": r.PathValue("id"),
		"parameters": body.Parameters,
	})
}

func (s *Server) handleAddFragment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FragmentID string         `json:"fragment_id"`
		Parameters map[string]any `json:"parameters"`
		Position   string         `json:"position"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "add_fragment", map[string]any{
		"session_id":  r.PathValue("id"),
		"fragment_id": body.FragmentID,
		"parameters":  body.Parameters,
		"position":    body.Position,
	})
}

func (s *Server) handleAddImageFragment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageURL     string `json:"image_url"`
		Title        string `json:"title"`
		Width        string `json:"width"`
		Height       string `json:"height"`
		AltText      string `json:"alt_text"`
		Alignment    string `json:"alignment"`
		RequireHTTPS bool   `json:"require_https"`
		Position     string `json:"position"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "add_image_fragment", map[string]any{
		"session_id":    r.PathValue("id"),
		"image_url":     body.ImageURL,
		"title":         body.Title,
		"width":         body.Width,
		"height":        body.Height,
		"alt_text":      body.AltText,
		"alignment":     body.Alignment,
		"require_https": body.RequireHTTPS,
		"position":      body.Position,
	})
}

func (s *Server) handleRemoveFragment(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "remove_fragment", map[string]any{
		"session_id":    r.PathValue("id"),
		"instance_guid": r.PathValue("guid"),
	})
}

func (s *Server) handleListSessionFragments(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_session_fragments", map[string]any{"session_id": r.PathValue("id")})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Format  string `json:"format"`
		StyleID string `json:"style_id"`
		Proxy   bool   `json:"proxy"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "get_document", map[string]any{
		"session_id": r.PathValue("id"),
		"format":     body.Format,
		"style_id":   body.StyleID,
		"proxy":      body.Proxy,
	})
}

func (s *Server) handleValidateParameters(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID     string         `json:"template_id"`
		ParametersType string         `json:"parameters_type"`
		FragmentID     string         `json:"fragment_id"`
		Parameters     map[string]any `json:"parameters"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "validate_parameters", map[string]any{
		"template_id":     body.TemplateID,
		"parameters_type": body.ParametersType,
		"fragment_id":     body.FragmentID,
		"parameters":      body.Parameters,
	})
}

// decodeBody decodes a JSON request body, writing a 400 response and
// returning false on failure. An empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
