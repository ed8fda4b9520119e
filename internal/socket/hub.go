package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

// Hub is the single-process registry of live sessions: which sessions are
// subscribed to which rooms, and which sessions belong to which user. It is
// the broadcaster behind every room event and the source of truth for
// connection-level presence.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[primitive.ObjectID]map[*Session]bool
	sessions map[*Session]map[primitive.ObjectID]bool
	users    map[primitive.ObjectID]map[*Session]bool

	userRepo mongodb.UserRepository
}

var _ usecase.Broadcaster = (*Hub)(nil)

func NewHub(userRepo mongodb.UserRepository) *Hub {
	return &Hub{
		rooms:    make(map[primitive.ObjectID]map[*Session]bool),
		sessions: make(map[*Session]map[primitive.ObjectID]bool),
		users:    make(map[primitive.ObjectID]map[*Session]bool),
		userRepo: userRepo,
	}
}

// Attach registers a freshly-authenticated connection and starts its writer.
// The user flips online when this is their first live session.
func (h *Hub) Attach(ctx context.Context, userID primitive.ObjectID, conn *websocket.Conn) *Session {
	session := newSession(uuid.NewString(), userID, conn)

	h.mu.Lock()
	h.sessions[session] = make(map[primitive.ObjectID]bool)
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Session]bool)
	}
	h.users[userID][session] = true
	first := len(h.users[userID]) == 1
	h.mu.Unlock()

	go session.writePump()

	if first {
		if err := h.userRepo.SetPresence(ctx, userID, true, time.Now()); err != nil {
			log.Errorw(ctx, "set presence online", "user_id", userID.Hex(), "error", err)
		}
	}
	log.Debugw(ctx, "session attached", "session_id", session.ID, "user_id", userID.Hex())
	return session
}

// Detach removes a session from every index and closes it. The user flips
// offline, with a last-seen timestamp, only when their last session goes.
func (h *Hub) Detach(ctx context.Context, session *Session) {
	h.mu.Lock()
	for roomID := range h.sessions[session] {
		h.dropFromRoom(roomID, session)
	}
	delete(h.sessions, session)

	last := false
	if conns, ok := h.users[session.UserID]; ok {
		delete(conns, session)
		if len(conns) == 0 {
			delete(h.users, session.UserID)
			last = true
		}
	}
	h.mu.Unlock()

	session.close()

	if last {
		if err := h.userRepo.SetPresence(ctx, session.UserID, false, time.Now()); err != nil {
			log.Errorw(ctx, "set presence offline", "user_id", session.UserID.Hex(), "error", err)
		}
	}
	log.Debugw(ctx, "session detached", "session_id", session.ID, "user_id", session.UserID.Hex())
}

func (h *Hub) Subscribe(session *Session, roomID primitive.ObjectID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[session]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Session]bool)
	}
	h.rooms[roomID][session] = true
	h.sessions[session][roomID] = true
}

func (h *Hub) Unsubscribe(session *Session, roomID primitive.ObjectID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropFromRoom(roomID, session)
	delete(h.sessions[session], roomID)
}

// dropFromRoom must be called with h.mu held.
func (h *Hub) dropFromRoom(roomID primitive.ObjectID, session *Session) {
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, session)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Publish fans an event out to every session subscribed to the room. The
// frame is marshalled once; delivery order per session is the publish order.
func (h *Hub) Publish(roomID primitive.ObjectID, event string, data any) {
	frame, err := json.Marshal(models.SocketEvent{Name: event, Data: toDataMap(data)})
	if err != nil {
		log.Errorw(context.Background(), "marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[roomID]))
	for session := range h.rooms[roomID] {
		targets = append(targets, session)
	}
	h.mu.RUnlock()

	for _, session := range targets {
		session.enqueue(frame)
	}
}

// PublishToUser delivers an event to every live session of one user,
// regardless of room subscriptions.
func (h *Hub) PublishToUser(userID primitive.ObjectID, event string, data any) {
	frame, err := json.Marshal(models.SocketEvent{Name: event, Data: toDataMap(data)})
	if err != nil {
		log.Errorw(context.Background(), "marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.users[userID]))
	for session := range h.users[userID] {
		targets = append(targets, session)
	}
	h.mu.RUnlock()

	for _, session := range targets {
		session.enqueue(frame)
	}
}

// IsOnline reports whether the user has at least one live session.
func (h *Hub) IsOnline(userID primitive.ObjectID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// RoomSessionCount reports how many sessions are subscribed to a room.
func (h *Hub) RoomSessionCount(roomID primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
