// Package storage defines the durable message store contract consumed by the
// chat service. The relay core treats the store as an external collaborator
// with its own consistency guarantees; no retries are layered on top.
package storage

import (
	"context"
	"errors"

	"github.com/vsaidivya/studybuddy/internal/model/chat"
)

var (
	// ErrUserNotFound reports an append for a user id with no user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomNotFound reports a lookup or append for an unknown room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists reports a create for an already-taken room id.
	ErrRoomExists = errors.New("room already exists")
)

// MessageRecord is the result of one append: the persisted message plus the
// author display fields resolved at save time.
type MessageRecord struct {
	Message   chat.Message
	Username  string
	AvatarURL string
}

// MessageStore is the durable side of the relay.
type MessageStore interface {
	// AppendMessage creates exactly one new message record with a fresh id
	// and a store-assigned UTC timestamp, and records the author as a
	// durable participant of the room.
	AppendMessage(ctx context.Context, userID, roomID, body string) (MessageRecord, error)
	// RoomMessages returns up to limit messages for the room, oldest first.
	RoomMessages(ctx context.Context, roomID string, limit int) ([]MessageRecord, error)
}
