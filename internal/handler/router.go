package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vsaidivya/studybuddy/internal/config"
	chathandler "github.com/vsaidivya/studybuddy/internal/handler/chat"
	"github.com/vsaidivya/studybuddy/internal/handler/relay"
	middlewarePkg "github.com/vsaidivya/studybuddy/internal/middleware"
	chatservice "github.com/vsaidivya/studybuddy/internal/service/chat"
	"github.com/vsaidivya/studybuddy/internal/service/registry"
	"github.com/vsaidivya/studybuddy/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(directory chathandler.Directory, chatSvc *chatservice.Service, reg *registry.Registry, relayCfg config.RelayConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middlewarePkg.CORS(relayCfg.AllowAllOrigins, relayCfg.AllowedOrigins))

	restHandler := chathandler.New(directory, chatSvc, reg)
	relayHandler := relay.New(chatSvc, reg, relayCfg)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		restHandler.RegisterRoutes(api)
	})

	relayHandler.RegisterRoutes(r)

	return r
}
