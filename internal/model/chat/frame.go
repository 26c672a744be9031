package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CreatedFormat is the display layout for message timestamps.
const CreatedFormat = "Jan 02, 2006, 03:04 PM"

// ID is an opaque identifier carried on the wire. Clients send ids as JSON
// strings or numbers; both forms decode to the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*id = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// InboundFrame is the only message shape clients may send over the relay
// connection. All fields are required.
type InboundFrame struct {
	Message string `json:"message" validate:"required"`
	UserID  ID     `json:"user_id" validate:"required"`
	RoomID  ID     `json:"room_id" validate:"required"`
}

// BroadcastFrame is fanned out to every member of a room after the message
// has been persisted. The sender receives it too; there is no separate ack.
type BroadcastFrame struct {
	Message    string `json:"message"`
	UserID     ID     `json:"user_id"`
	Username   string `json:"username"`
	UserAvatar string `json:"user_avatar"`
	MessageID  int64  `json:"message_id"`
	Created    string `json:"created"`
}

// ErrorFrame goes back to the originating connection only, never to the room.
type ErrorFrame struct {
	Error string `json:"error"`
}
