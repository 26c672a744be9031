package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/vsaidivya/studybuddy/internal/handler/chat"
	model "github.com/vsaidivya/studybuddy/internal/model/chat"
	chatservice "github.com/vsaidivya/studybuddy/internal/service/chat"
	"github.com/vsaidivya/studybuddy/internal/service/registry"
	"github.com/vsaidivya/studybuddy/internal/storage/sqlite"
)

func setupRouter(t *testing.T) (*chi.Mux, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	chatSvc := chatservice.NewService(store, "/static/images/avatar.svg")
	handler := chathandler.New(store, chatSvc, registry.New())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateUser(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/users", map[string]string{"name": "dana"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var user model.User
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ID == "" || user.Name != "dana" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestCreateUserMissingName(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/users", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateRoomAndConflict(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/rooms", map[string]string{"id": "r1", "name": "algebra"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, r, http.MethodPost, "/rooms", map[string]string{"id": "r1", "name": "again"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestCreateRoomBadToken(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/rooms", map[string]string{"id": "not a token"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetRoomWithParticipants(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "dana", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateRoom(ctx, "r1", "algebra"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := store.AppendMessage(ctx, user.ID, "r1", "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}

	resp := doJSON(t, r, http.MethodGet, "/rooms/r1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Room         model.Room   `json:"room"`
		Participants []model.User `json:"participants"`
		LiveMembers  int          `json:"live_members"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Room.ID != "r1" {
		t.Fatalf("unexpected room %+v", payload.Room)
	}
	if len(payload.Participants) != 1 || payload.Participants[0].Name != "dana" {
		t.Fatalf("unexpected participants %+v", payload.Participants)
	}
	if payload.LiveMembers != 0 {
		t.Fatalf("expected 0 live members, got %d", payload.LiveMembers)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodGet, "/rooms/missing", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestRoomMessagesHistory(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "dana", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateRoom(ctx, "r1", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, body := range []string{"one", "two"} {
		if _, err := store.AppendMessage(ctx, user.ID, "r1", body); err != nil {
			t.Fatalf("append %q: %v", body, err)
		}
	}

	resp := doJSON(t, r, http.MethodGet, "/rooms/r1/messages", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var frames []model.BroadcastFrame
	if err := json.Unmarshal(resp.Body.Bytes(), &frames); err != nil {
		t.Fatalf("decode frames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Message != "one" || frames[1].Message != "two" {
		t.Fatalf("history out of order: %+v", frames)
	}
	if frames[0].Created == "" {
		t.Fatal("missing formatted timestamp")
	}
}

func TestRoomMessagesBadLimit(t *testing.T) {
	r, store := setupRouter(t)
	if _, err := store.CreateRoom(context.Background(), "r1", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}

	resp := doJSON(t, r, http.MethodGet, "/rooms/r1/messages?limit=zero", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
