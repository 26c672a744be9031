// Package chat exposes the REST surface around the relay: users, rooms, and
// room history.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	model "github.com/vsaidivya/studybuddy/internal/model/chat"
	chatservice "github.com/vsaidivya/studybuddy/internal/service/chat"
	"github.com/vsaidivya/studybuddy/internal/service/registry"
	"github.com/vsaidivya/studybuddy/internal/storage"
	"github.com/vsaidivya/studybuddy/pkg/utils"
)

// Directory is the store surface the REST handlers need.
type Directory interface {
	CreateUser(ctx context.Context, name, avatarURL string) (model.User, error)
	CreateRoom(ctx context.Context, id, name string) (model.Room, error)
	GetRoom(ctx context.Context, id string) (model.Room, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	Participants(ctx context.Context, roomID string) ([]model.User, error)
}

// Handler serves the user/room REST endpoints.
type Handler struct {
	directory Directory
	chatSvc   *chatservice.Service
	reg       *registry.Registry
}

// New creates the REST handler.
func New(directory Directory, chatSvc *chatservice.Service, reg *registry.Registry) *Handler {
	return &Handler{directory: directory, chatSvc: chatSvc, reg: reg}
}

// RegisterRoutes mounts the REST endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.handleCreateUser)
	r.Post("/rooms", h.handleCreateRoom)
	r.Get("/rooms", h.handleListRooms)
	r.Get("/rooms/{roomID}", h.handleGetRoom)
	r.Get("/rooms/{roomID}/messages", h.handleRoomMessages)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.directory.CreateUser(r.Context(), payload.Name, payload.AvatarURL)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidRoomToken(payload.ID) {
		utils.RespondError(w, http.StatusBadRequest, "room id must be a word token")
		return
	}

	room, err := h.directory.CreateRoom(r.Context(), payload.ID, payload.Name)
	if err != nil {
		if errors.Is(err, storage.ErrRoomExists) {
			utils.RespondError(w, http.StatusConflict, "room already exists")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, room)
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.directory.ListRooms(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	utils.RespondJSON(w, http.StatusOK, rooms)
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	room, err := h.directory.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			utils.RespondError(w, http.StatusNotFound, "room not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	participants, err := h.directory.Participants(r.Context(), roomID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load participants")
		return
	}
	if participants == nil {
		participants = []model.User{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"room":         room,
		"participants": participants,
		"live_members": h.reg.Members(roomID),
	})
}

func (h *Handler) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	frames, err := h.chatSvc.History(r.Context(), roomID, limit)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			utils.RespondError(w, http.StatusNotFound, "room not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if frames == nil {
		frames = []model.BroadcastFrame{}
	}
	utils.RespondJSON(w, http.StatusOK, frames)
}
