package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

type presenceCall struct {
	userID primitive.ObjectID
	online bool
}

type stubUserRepo struct {
	mu    sync.Mutex
	calls []presenceCall
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (r *stubUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return nil, models.ErrNotFound
}

func (r *stubUserRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	return nil, nil
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, models.ErrNotFound
}

func (r *stubUserRepo) SetPresence(ctx context.Context, id primitive.ObjectID, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, presenceCall{userID: id, online: online})
	return nil
}

func (r *stubUserRepo) presenceCalls() []presenceCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]presenceCall(nil), r.calls...)
}

// dial opens a real in-process websocket pair and attaches the server side to
// the hub, returning the client connection and the attached session.
func dial(t *testing.T, hub *Hub, userID primitive.ObjectID) (*websocket.Conn, *Session) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	sessions := make(chan *Session, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sessions <- hub.Attach(context.Background(), userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case session := <-sessions:
		return client, session
	case <-time.After(2 * time.Second):
		t.Fatal("session was not attached")
		return nil, nil
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) models.SocketEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var event models.SocketEvent
	require.NoError(t, json.Unmarshal(frame, &event))
	return event
}

func TestPublishReachesOnlySubscribedSessions(t *testing.T) {
	hub := NewHub(&stubUserRepo{})
	roomID := primitive.NewObjectID()

	subscriberConn, subscriber := dial(t, hub, primitive.NewObjectID())
	bystanderConn, _ := dial(t, hub, primitive.NewObjectID())

	hub.Subscribe(subscriber, roomID)
	assert.Equal(t, 1, hub.RoomSessionCount(roomID))

	hub.Publish(roomID, models.EventNewMessage, map[string]any{"body": "hello"})

	event := readEvent(t, subscriberConn)
	assert.Equal(t, models.EventNewMessage, event.Name)
	assert.Equal(t, "hello", event.Data["body"])

	require.NoError(t, bystanderConn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := bystanderConn.ReadMessage()
	assert.Error(t, err)
}

func TestPublishPreservesOrderPerSession(t *testing.T) {
	hub := NewHub(&stubUserRepo{})
	roomID := primitive.NewObjectID()

	conn, session := dial(t, hub, primitive.NewObjectID())
	hub.Subscribe(session, roomID)

	bodies := []string{"one", "two", "three", "four"}
	for _, body := range bodies {
		hub.Publish(roomID, models.EventNewMessage, map[string]any{"body": body})
	}

	for _, want := range bodies {
		event := readEvent(t, conn)
		assert.Equal(t, want, event.Data["body"])
	}
}

func TestPublishToUserReachesAllSessions(t *testing.T) {
	hub := NewHub(&stubUserRepo{})
	userID := primitive.NewObjectID()

	conn1, _ := dial(t, hub, userID)
	conn2, _ := dial(t, hub, userID)

	hub.PublishToUser(userID, models.EventMemberAdded, map[string]any{"user_id": userID.Hex()})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		event := readEvent(t, conn)
		assert.Equal(t, models.EventMemberAdded, event.Name)
	}
}

func TestPresenceFlipsOnFirstAndLastSession(t *testing.T) {
	repo := &stubUserRepo{}
	hub := NewHub(repo)
	userID := primitive.NewObjectID()
	ctx := context.Background()

	_, s1 := dial(t, hub, userID)
	_, s2 := dial(t, hub, userID)
	assert.True(t, hub.IsOnline(userID))

	// Only the first attach flips presence.
	require.Len(t, repo.presenceCalls(), 1)
	assert.True(t, repo.presenceCalls()[0].online)

	hub.Detach(ctx, s1)
	assert.True(t, hub.IsOnline(userID))
	assert.Len(t, repo.presenceCalls(), 1)

	hub.Detach(ctx, s2)
	assert.False(t, hub.IsOnline(userID))
	calls := repo.presenceCalls()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].online)
}

func TestDetachDropsRoomSubscriptions(t *testing.T) {
	hub := NewHub(&stubUserRepo{})
	roomID := primitive.NewObjectID()

	_, session := dial(t, hub, primitive.NewObjectID())
	hub.Subscribe(session, roomID)
	require.Equal(t, 1, hub.RoomSessionCount(roomID))

	hub.Detach(context.Background(), session)
	assert.Equal(t, 0, hub.RoomSessionCount(roomID))

	// A detached session cannot resubscribe.
	hub.Subscribe(session, roomID)
	assert.Equal(t, 0, hub.RoomSessionCount(roomID))
}
