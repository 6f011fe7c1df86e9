package httpapi

import (
	"net/http"
	"time"

	"github.com/parrisma/gofr-doc/internal/model"
)

// createTokenRequest is the JSON body for POST /admin/tokens/create.
type createTokenRequest struct {
	Name      string `json:"name"`
	Group     string `json:"group"`
	ExpiresIn *int   `json:"expires_in,omitempty"` // seconds from now, nil = no expiry
}

// createTokenResponse is returned once on creation, the only time the
// full bearer token is shown (the teacher's api_tokens.go pattern).
type createTokenResponse struct {
	Token string            `json:"token"`
	Info  model.TokenRecord `json:"info"`
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	records, err := s.tokens.List(r.Context(), group)
	if err != nil {
		httpResponse(w, "failed to list tokens: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.TokenRecord{}
	}
	httpResponseJSON(w, map[string]any{"tokens": records}, http.StatusOK)
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Group == "" {
		httpResponse(w, "name and group are required", http.StatusBadRequest)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn != nil && *req.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(*req.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	fullToken, record, err := s.tokens.Create(r.Context(), req.Name, req.Group, expiresAt)
	if err != nil {
		httpResponse(w, "failed to create token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	httpResponseJSON(w, createTokenResponse{Token: fullToken, Info: record}, http.StatusCreated)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httpResponse(w, "token id is required", http.StatusBadRequest)
		return
	}
	if err := s.tokens.Revoke(r.Context(), id); err != nil {
		httpResponse(w, "failed to revoke token: "+err.Error(), http.StatusInternalServerError)
		return
	}
	httpResponse(w, "revoked", http.StatusOK)
}
