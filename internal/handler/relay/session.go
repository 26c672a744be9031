package relay

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	model "github.com/vsaidivya/studybuddy/internal/model/chat"
	chatservice "github.com/vsaidivya/studybuddy/internal/service/chat"
	"github.com/vsaidivya/studybuddy/internal/service/registry"
)

var validate = validator.New()

type sessionState int

const (
	stateConnecting sessionState = iota
	stateOpen
	stateClosed
)

// Session is the live state of one relay connection. It is created when the
// upgrade succeeds, joins its room while open, and is discarded on
// disconnect; a reconnecting client always gets a fresh session.
type Session struct {
	id      string
	roomID  string
	conn    *websocket.Conn
	send    chan []byte
	reg     *registry.Registry
	chatSvc *chatservice.Service
	limiter *rateLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state sessionState
}

func newSession(id, roomID string, conn *websocket.Conn, reg *registry.Registry, chatSvc *chatservice.Service, sendBuffer int, limiter *rateLimiter) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      id,
		roomID:  roomID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		reg:     reg,
		chatSvc: chatSvc,
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
		state:   stateConnecting,
	}
}

// Deliver queues a payload for the connection without blocking. It reports
// false when the session is closed or its buffer is full; the registry treats
// that as a delivery failure local to this member.
func (s *Session) Deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// run drives the session until the connection closes. The caller's goroutine
// becomes the read loop, so inbound frames are handled one at a time in
// arrival order.
func (s *Session) run() {
	s.mu.Lock()
	s.state = stateOpen
	s.mu.Unlock()
	s.reg.Join(s.roomID, s)
	log.Printf("[relay] session %s joined room %s", s.id, s.roomID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump()
	}()

	s.readLoop()
	s.close()
	wg.Wait()
}

// close transitions the session to its terminal state exactly once: it
// leaves the room, cancels in-flight work, and shuts the connection down.
func (s *Session) close() {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	s.state = stateClosed
	s.mu.Unlock()

	s.reg.Leave(s.roomID, s)
	s.cancel()
	// Deliver refuses new payloads once the state is closed, so draining and
	// closing the queue here cannot race a concurrent broadcast.
	close(s.send)
	_ = s.conn.Close()
	log.Printf("[relay] session %s left room %s", s.id, s.roomID)
}

func (s *Session) readLoop() {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[relay] session %s read error: %v", s.id, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			s.sendError("only text frames are accepted")
			continue
		}
		s.handleInbound(data)
	}
}

func (s *Session) writePump() {
	for payload := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[relay] session %s write error: %v", s.id, err)
			// Closing the conn unblocks the read loop, which drives teardown.
			_ = s.conn.Close()
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Session) handleInbound(data []byte) {
	if s.limiter != nil && !s.limiter.allow() {
		s.sendError("message rate limit exceeded")
		return
	}

	var frame model.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError("invalid message payload: " + err.Error())
		return
	}
	if err := validate.Struct(frame); err != nil {
		s.sendError("invalid message payload: " + err.Error())
		return
	}

	// Broadcast scope is the room this session connected to. A payload
	// claiming another room is refused rather than leaking across rooms.
	if frame.RoomID.String() != s.roomID {
		s.sendError("room_id does not match the connection room")
		return
	}

	broadcast, err := s.chatSvc.Append(s.ctx, frame.UserID.String(), s.roomID, frame.Message)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	payload, err := json.Marshal(broadcast)
	if err != nil {
		s.sendError("failed to encode message")
		return
	}
	delivered := s.reg.Broadcast(s.roomID, payload)
	log.Printf("[relay] room %s message %d delivered to %d members", s.roomID, broadcast.MessageID, delivered)
}

// sendError reports a failure to this connection only; the room never sees
// another member's bad payloads.
func (s *Session) sendError(message string) {
	payload, err := json.Marshal(model.ErrorFrame{Error: message})
	if err != nil {
		return
	}
	s.Deliver(payload)
}
