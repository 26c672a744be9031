package chat

import (
	"regexp"
	"time"
)

var roomTokenPattern = regexp.MustCompile(`^\w+$`)

// ValidRoomToken reports whether s is usable as a room id: one or more word
// characters, the same shape the connection path accepts.
func ValidRoomToken(s string) bool {
	return roomTokenPattern.MatchString(s)
}

// User is the slice of the identity store the relay cares about: an opaque
// id plus the two display fields resolved at message-save time.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room is a named fan-out scope. The id is the token clients put in the
// connection path.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one persisted chat message. The store assigns ID and CreatedAt;
// neither changes afterwards.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
