package httpapi

import "net/http"

func (s *Server) handleRenderGraph(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title  string `json:"title"`
		Kind   string `json:"kind"`
		Theme  string `json:"theme"`
		Format string `json:"format"`
		X      any    `json:"x"`
		Y1     any    `json:"y1"`
		Y2     any    `json:"y2"`
		Y3     any    `json:"y3"`
		Y4     any    `json:"y4"`
		Y5     any    `json:"y5"`
		Proxy  bool   `json:"proxy"`
		Alias  string `json:"alias"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "render_graph", map[string]any{
		"title": body.Title, "kind": body.Kind, "theme": body.Theme, "format": body.Format,
		"x": body.X, "y1": body.Y1, "y2": body.Y2, "y3": body.Y3, "y4": body.Y4, "y5": body.Y5,
		"proxy": body.Proxy, "alias": body.Alias,
	})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_images", nil)
}

func (s *Server) handleGetPlotImage(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "get_image", map[string]any{"identifier": r.PathValue("id")})
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_themes", nil)
}

func (s *Server) handleListPlotHandlers(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "list_handlers", nil)
}

func (s *Server) handleAddPlotFragment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlotGUID string `json:"plot_guid"`
		Title    string `json:"title"`
		Kind     string `json:"kind"`
		Theme    string `json:"theme"`
		Format   string `json:"format"`
		X        any    `json:"x"`
		Y1       any    `json:"y1"`
		Position string `json:"position"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, "add_plot_fragment", map[string]any{
		"session_id": r.PathValue("id"),
		"plot_guid":  body.PlotGUID,
		"title":      body.Title, "kind": body.Kind, "theme": body.Theme, "format": body.Format,
		"x": body.X, "y1": body.Y1, "position": body.Position,
	})
}
