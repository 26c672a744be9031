// Package chat orchestrates message persistence and shapes the frames the
// relay fans out to room members.
package chat

import (
	"context"

	"github.com/vsaidivya/studybuddy/internal/model/chat"
	"github.com/vsaidivya/studybuddy/internal/storage"
)

// Service persists messages through the store and builds broadcast frames.
type Service struct {
	store         storage.MessageStore
	defaultAvatar string
}

// NewService wires the service to a message store. defaultAvatar is used when
// the author has no avatar of their own.
func NewService(store storage.MessageStore, defaultAvatar string) *Service {
	return &Service{store: store, defaultAvatar: defaultAvatar}
}

// Append durably saves one message and returns the frame to broadcast. Store
// errors pass through unchanged so callers can report the cause to the
// sender; nothing is broadcast on failure.
func (s *Service) Append(ctx context.Context, userID, roomID, body string) (chat.BroadcastFrame, error) {
	record, err := s.store.AppendMessage(ctx, userID, roomID, body)
	if err != nil {
		return chat.BroadcastFrame{}, err
	}
	return s.frame(record), nil
}

// History returns up to limit already-persisted messages for the room,
// oldest first, in the same shape the relay broadcasts.
func (s *Service) History(ctx context.Context, roomID string, limit int) ([]chat.BroadcastFrame, error) {
	records, err := s.store.RoomMessages(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	frames := make([]chat.BroadcastFrame, 0, len(records))
	for _, record := range records {
		frames = append(frames, s.frame(record))
	}
	return frames, nil
}

func (s *Service) frame(record storage.MessageRecord) chat.BroadcastFrame {
	avatar := record.AvatarURL
	if avatar == "" {
		avatar = s.defaultAvatar
	}
	return chat.BroadcastFrame{
		Message:    record.Message.Body,
		UserID:     chat.ID(record.Message.UserID),
		Username:   record.Username,
		UserAvatar: avatar,
		MessageID:  record.Message.ID,
		Created:    record.Message.CreatedAt.Format(chat.CreatedFormat),
	}
}
