// Package sqlite provides the SQLite-backed message store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/vsaidivya/studybuddy/internal/model/chat"
	"github.com/vsaidivya/studybuddy/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  avatar_url TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rooms (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  room_id    TEXT NOT NULL REFERENCES rooms(id),
  user_id    TEXT NOT NULL REFERENCES users(id),
  body       TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);
CREATE TABLE IF NOT EXISTS room_participants (
  room_id TEXT NOT NULL REFERENCES rooms(id),
  user_id TEXT NOT NULL REFERENCES users(id),
  UNIQUE(room_id, user_id)
);
`

// Store persists users, rooms, and messages in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateUser inserts one user record and assigns it an id.
func (s *Store) CreateUser(ctx context.Context, name, avatarURL string) (chat.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.User{}, fmt.Errorf("user name is required")
	}

	user := chat.User{
		ID:        uuid.NewString(),
		Name:      name,
		AvatarURL: strings.TrimSpace(avatarURL),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, name, avatar_url, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.AvatarURL, toMillis(user.CreatedAt),
	)
	if err != nil {
		return chat.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUser returns one user by id.
func (s *Store) GetUser(ctx context.Context, id string) (chat.User, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, avatar_url, created_at FROM users WHERE id = ?`,
		id,
	)
	var user chat.User
	var createdAt int64
	if err := row.Scan(&user.ID, &user.Name, &user.AvatarURL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.User{}, storage.ErrUserNotFound
		}
		return chat.User{}, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

// CreateRoom inserts one room record under the caller-chosen id.
func (s *Store) CreateRoom(ctx context.Context, id, name string) (chat.Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return chat.Room{}, fmt.Errorf("room id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}

	room := chat.Room{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rooms (id, name, created_at) VALUES (?, ?, ?)`,
		room.ID, room.Name, toMillis(room.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return chat.Room{}, storage.ErrRoomExists
		}
		return chat.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// GetRoom returns one room by id.
func (s *Store) GetRoom(ctx context.Context, id string) (chat.Room, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, created_at FROM rooms WHERE id = ?`,
		id,
	)
	var room chat.Room
	var createdAt int64
	if err := row.Scan(&room.ID, &room.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Room{}, storage.ErrRoomNotFound
		}
		return chat.Room{}, fmt.Errorf("get room: %w", err)
	}
	room.CreatedAt = fromMillis(createdAt)
	return room, nil
}

// ListRooms returns every room, oldest first.
func (s *Store) ListRooms(ctx context.Context) ([]chat.Room, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, created_at FROM rooms ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []chat.Room
	for rows.Next() {
		var room chat.Room
		var createdAt int64
		if err := rows.Scan(&room.ID, &room.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.CreatedAt = fromMillis(createdAt)
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// AppendMessage creates one message row, resolves the author display fields,
// and records the author as a durable participant of the room.
func (s *Store) AppendMessage(ctx context.Context, userID, roomID, body string) (storage.MessageRecord, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return storage.MessageRecord{}, err
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return storage.MessageRecord{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := time.Now().UTC()
	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO messages (room_id, user_id, body, created_at) VALUES (?, ?, ?, ?)`,
		room.ID, user.ID, body, toMillis(createdAt),
	)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("append message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("message id: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO room_participants (room_id, user_id) VALUES (?, ?)`,
		room.ID, user.ID,
	); err != nil {
		return storage.MessageRecord{}, fmt.Errorf("record participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.MessageRecord{}, fmt.Errorf("commit append: %w", err)
	}

	return storage.MessageRecord{
		Message: chat.Message{
			ID:        id,
			RoomID:    room.ID,
			UserID:    user.ID,
			Body:      body,
			CreatedAt: createdAt,
		},
		Username:  user.Name,
		AvatarURL: user.AvatarURL,
	}, nil
}

// RoomMessages returns up to limit messages for the room, oldest first.
func (s *Store) RoomMessages(ctx context.Context, roomID string, limit int) ([]storage.MessageRecord, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT m.id, m.room_id, m.user_id, m.body, m.created_at, u.name, u.avatar_url
		   FROM messages m JOIN users u ON u.id = m.user_id
		  WHERE m.room_id = ?
		  ORDER BY m.id
		  LIMIT ?`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("room messages: %w", err)
	}
	defer rows.Close()

	var records []storage.MessageRecord
	for rows.Next() {
		var rec storage.MessageRecord
		var createdAt int64
		if err := rows.Scan(
			&rec.Message.ID, &rec.Message.RoomID, &rec.Message.UserID,
			&rec.Message.Body, &createdAt, &rec.Username, &rec.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.Message.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Participants returns the durable participant list for a room. This is the
// append-time membership record, not the set of live connections.
func (s *Store) Participants(ctx context.Context, roomID string) ([]chat.User, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT u.id, u.name, u.avatar_url, u.created_at
		   FROM room_participants p JOIN users u ON u.id = p.user_id
		  WHERE p.room_id = ?
		  ORDER BY u.name, u.id`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("room participants: %w", err)
	}
	defer rows.Close()

	var users []chat.User
	for rows.Next() {
		var user chat.User
		var createdAt int64
		if err := rows.Scan(&user.ID, &user.Name, &user.AvatarURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		user.CreatedAt = fromMillis(createdAt)
		users = append(users, user)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
