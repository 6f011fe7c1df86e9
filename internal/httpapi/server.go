// Package httpapi implements C8: the REST surface mirroring the tool
// catalogue (spec.md §6), stock-image serving, proxy-artefact download,
// and admin token-registry endpoints.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rakunlabs/ada"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"

	"github.com/parrisma/gofr-doc/internal/authsvc"
	"github.com/parrisma/gofr-doc/internal/config"
	"github.com/parrisma/gofr-doc/internal/render"
	"github.com/parrisma/gofr-doc/internal/toolcatalog"
)

// Server owns the ada mux and every dependency its handlers call into.
type Server struct {
	cfg        config.Server
	mux        *ada.Server
	dispatcher *toolcatalog.Dispatcher
	auth       *authsvc.Service
	tokens     authsvc.TokenStore
	pipeline   *render.Pipeline
	images     imageServer
}

// imageServer serves the stock-image bundle shipped alongside the
// storage root (spec.md §6's GET /images, GET /images/{path}).
type imageServer struct {
	root string
}

func New(cfg config.Server, dispatcher *toolcatalog.Dispatcher, auth *authsvc.Service, tokens authsvc.TokenStore, pipeline *render.Pipeline, stockImagesRoot string) *Server {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
	)

	s := &Server{
		cfg:        cfg,
		mux:        mux,
		dispatcher: dispatcher,
		auth:       auth,
		tokens:     tokens,
		pipeline:   pipeline,
		images:     imageServer{root: stockImagesRoot},
	}

	api := mux.Group("/")
	api.GET("/ping", s.handlePing)
	api.GET("/help", s.handleHelp)

	api.GET("/templates", s.handleListTemplates)
	api.GET("/templates/{id}", s.handleGetTemplateDetails)
	api.GET("/templates/{id}/fragments", s.handleListTemplateFragments)
	api.GET("/templates/{id}/fragments/{fid}", s.handleGetFragmentDetails)
	api.GET("/styles", s.handleListStyles)

	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions", s.handleListActiveSessions)
	api.GET("/sessions/{id}", s.handleGetSessionStatus)
	api.DELETE("/sessions/{id}", s.handleAbortSession)
	api.POST("/sessions/{id}/parameters", s.handleSetGlobalParameters)
	api.POST("/sessions/{id}/fragments", s.handleAddFragment)
	api.POST("/sessions/{id}/fragments/images", s.handleAddImageFragment)
	api.DELETE("/sessions/{id}/fragments/{guid}", s.handleRemoveFragment)
	api.GET("/sessions/{id}/fragments", s.handleListSessionFragments)
	api.POST("/sessions/{id}/render", s.handleGetDocument)

	api.POST("/validate", s.handleValidateParameters)

	api.GET("/proxy/{guid}", s.handleGetProxy)

	api.GET("/images", s.handleListStockImages)
	api.GET("/images/{path...}", s.handleGetStockImage)

	api.POST("/plots", s.handleRenderGraph)
	api.GET("/plots", s.handleListImages)
	api.GET("/plots/themes", s.handleListThemes)
	api.GET("/plots/handlers", s.handleListPlotHandlers)
	api.GET("/plots/{id}", s.handleGetPlotImage)
	api.POST("/sessions/{id}/fragments/plots", s.handleAddPlotFragment)

	tokenGroup := api.Group("/admin/tokens")
	tokenGroup.Use(s.adminAuthMiddleware())
	tokenGroup.GET("/list", s.handleListTokens)
	tokenGroup.POST("/create", s.handleCreateToken)
	tokenGroup.DELETE("/{id}", s.handleRevokeToken)

	return s
}

func (s *Server) Start(ctx context.Context) error {
	return s.mux.StartWithContext(ctx, net.JoinHostPort(s.cfg.Host, s.cfg.Port))
}

// dispatch runs a catalogue tool against args assembled from the path,
// query string, and JSON body, writing a shaped HTTP response.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, tool string, args map[string]any) {
	resp := s.dispatcher.Call(r.Context(), tool, args, r.Header.Get("Authorization"))
	writeToolResponse(w, resp)
}

func (s *Server) adminAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.cfg.AdminToken == "" {
				httpResponse(w, "admin token not configured", http.StatusForbidden)
				return
			}
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if auth == "" || token == auth || token != s.cfg.AdminToken {
				httpResponse(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
