// Package relay upgrades room-scoped websocket connections and runs one
// Session per connection until it closes.
package relay

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vsaidivya/studybuddy/internal/config"
	model "github.com/vsaidivya/studybuddy/internal/model/chat"
	chatservice "github.com/vsaidivya/studybuddy/internal/service/chat"
	"github.com/vsaidivya/studybuddy/internal/service/registry"
	"github.com/vsaidivya/studybuddy/pkg/utils"
)

// Handler accepts relay connections at /ws/chat/{roomID}.
type Handler struct {
	chatSvc  *chatservice.Service
	reg      *registry.Registry
	cfg      config.RelayConfig
	origins  map[string]struct{}
	upgrader websocket.Upgrader
}

// New creates the relay handler.
func New(chatSvc *chatservice.Service, reg *registry.Registry, cfg config.RelayConfig) *Handler {
	h := &Handler{
		chatSvc: chatSvc,
		reg:     reg,
		cfg:     cfg,
		origins: make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	for _, origin := range cfg.AllowedOrigins {
		if normalized, ok := normalizeOrigin(origin); ok {
			h.origins[normalized] = struct{}{}
		} else {
			log.Printf("[relay] ignoring invalid origin in configuration: %q", origin)
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// RegisterRoutes mounts the relay endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/{roomID}", h.handleRelay)
}

func (h *Handler) handleRelay(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !model.ValidRoomToken(roomID) {
		// The session never reaches its open state on a bad room token.
		utils.RespondError(w, http.StatusNotFound, "unknown room path")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] upgrade failed for room %s: %v", roomID, err)
		return
	}
	conn.SetReadLimit(h.cfg.MaxMessageSize)

	session := newSession(
		uuid.NewString(),
		roomID,
		conn,
		h.reg,
		h.chatSvc,
		h.cfg.SendBufferSize,
		newRateLimiter(h.cfg.RateLimitBurst, h.cfg.RateLimitInterval),
	)
	session.run()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	if h.cfg.AllowAllOrigins {
		return true
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}
	if _, allowed := h.origins[normalized]; allowed {
		return true
	}
	if sameHost(normalized, r.Host) {
		return true
	}

	log.Printf("[relay] blocked connection from disallowed origin %q", originHeader)
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func sameHost(normalizedOrigin, requestHost string) bool {
	parsed, err := url.Parse(normalizedOrigin)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, requestHost)
}
