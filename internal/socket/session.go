package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	sendBufferSize = 64
)

// Session is one authenticated websocket connection. A user may hold any
// number of concurrent sessions; each carries its own ordered outbound queue
// so publishes to one room arrive in publish order.
type Session struct {
	ID     string
	UserID primitive.ObjectID

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, userID primitive.ObjectID, conn *websocket.Conn) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue hands a frame to the writer. A session whose queue is full is too
// slow to keep up and gets closed rather than blocking the publisher.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	case s.send <- frame:
		return true
	default:
		s.close()
		return false
	}
}

func (s *Session) Emit(event string, data any) {
	frame, err := json.Marshal(models.SocketEvent{Name: event, Data: toDataMap(data)})
	if err != nil {
		return
	}
	s.enqueue(frame)
}

// EmitError reports a transport-level failure to this session only. Errors
// are events like any other; they never tear the connection down.
func (s *Session) EmitError(message string) {
	s.Emit(models.EventError, map[string]any{"message": message})
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// writePump serializes all writes to the connection and keeps it alive with
// pings. It exits when the session is closed or a write fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadEvent blocks for the next inbound event. It returns an error when the
// connection is gone.
func (s *Session) ReadEvent() (*models.SocketEvent, error) {
	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	_, frame, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var event models.SocketEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func toDataMap(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
