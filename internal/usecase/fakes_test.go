package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/pkg/invite"
)

type memRoomRepo struct {
	mu    sync.Mutex
	rooms map[primitive.ObjectID]*models.Room
}

func newMemRoomRepo() *memRoomRepo {
	return &memRoomRepo{rooms: make(map[primitive.ObjectID]*models.Room)}
}

func (r *memRoomRepo) Create(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room.ID = primitive.NewObjectID()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	if room.Members == nil {
		room.Members = []primitive.ObjectID{}
	}
	if room.Messages == nil {
		room.Messages = []models.Message{}
	}
	code, err := invite.NewCode()
	if err != nil {
		return err
	}
	room.InviteCode = code
	copied := *room
	copied.Members = append([]primitive.ObjectID(nil), room.Members...)
	copied.Messages = append([]models.Message(nil), room.Messages...)
	r.rooms[room.ID] = &copied
	return nil
}

func (r *memRoomRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (r *memRoomRepo) GetByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.InviteCode == strings.ToUpper(code) {
			copied := *room
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memRoomRepo) GetUserRooms(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Room
	for _, room := range r.rooms {
		if room.HasMember(userID) {
			copied := *room
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memRoomRepo) GetByRepoFullName(ctx context.Context, fullName string) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Room
	for _, room := range r.rooms {
		if room.RepoFullName == fullName {
			copied := *room
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memRoomRepo) GetByProjectIDs(ctx context.Context, projectIDs []primitive.ObjectID) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Room
	for _, room := range r.rooms {
		for _, pid := range projectIDs {
			if room.ProjectID != nil && *room.ProjectID == pid {
				copied := *room
				out = append(out, &copied)
			}
		}
	}
	return out, nil
}

func (r *memRoomRepo) AddMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.ErrNotFound
	}
	if !room.HasMember(userID) {
		room.Members = append(room.Members, userID)
	}
	return nil
}

func (r *memRoomRepo) RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.ErrNotFound
	}
	for i, m := range room.Members {
		if m == userID {
			room.Members = append(room.Members[:i], room.Members[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRoomRepo) AppendMessage(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.ErrNotFound
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	room.Messages = append(room.Messages, *msg)
	at := msg.CreatedAt
	room.LastActivityAt = &at
	return nil
}

func (r *memRoomRepo) GetMessage(ctx context.Context, roomID, messageID primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, models.ErrNotFound
	}
	msg := room.FindMessage(messageID)
	if msg == nil {
		return nil, models.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (r *memRoomRepo) UpdateMessage(ctx context.Context, roomID, messageID primitive.ObjectID, set bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.ErrNotFound
	}
	msg := room.FindMessage(messageID)
	if msg == nil {
		return models.ErrNotFound
	}
	for field, value := range set {
		switch field {
		case "body":
			msg.Body = value.(string)
		case "is_edited":
			msg.IsEdited = value.(bool)
		case "edit_history":
			msg.EditHistory = value.([]models.EditEntry)
		case "is_deleted":
			msg.IsDeleted = value.(bool)
		case "deleted_at":
			msg.DeletedAt = value.(*time.Time)
		case "reactions":
			msg.Reactions = value.([]models.Reaction)
		case "starred_by":
			msg.StarredBy = value.([]primitive.ObjectID)
		case "read_by":
			msg.ReadBy = value.([]models.ReadReceipt)
		}
	}
	return nil
}

func (r *memRoomRepo) Pin(ctx context.Context, roomID, messageID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.ErrNotFound
	}
	if !room.IsPinned(messageID) {
		room.PinnedIDs = append(room.PinnedIDs, messageID)
	}
	return nil
}

func (r *memRoomRepo) Unpin(ctx context.Context, roomID, messageID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.ErrNotFound
	}
	for i, id := range room.PinnedIDs {
		if id == messageID {
			room.PinnedIDs = append(room.PinnedIDs[:i], room.PinnedIDs[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRoomRepo) ListMessages(ctx context.Context, roomID primitive.ObjectID, limit, skip int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, models.ErrNotFound
	}
	total := len(room.Messages)
	end := total - skip
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, end-start)
	copy(out, room.Messages[start:end])
	return out, nil
}

func (r *memRoomRepo) Delete(ctx context.Context, roomID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return models.ErrNotFound
	}
	delete(r.rooms, roomID)
	return nil
}

func (r *memRoomRepo) EnsureIndexes(ctx context.Context) error { return nil }

type memProjectRepo struct {
	projects map[primitive.ObjectID]*models.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[primitive.ObjectID]*models.Project)}
}

func (r *memProjectRepo) add(p *models.Project) *models.Project {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	r.projects[p.ID] = p
	return p
}

func (r *memProjectRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (r *memProjectRepo) GetByRepoFullName(ctx context.Context, fullName string) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range r.projects {
		if p.RepoFullName == fullName {
			out = append(out, p)
		}
	}
	return out, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memUserRepo) SetPresence(ctx context.Context, id primitive.ObjectID, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		user.IsOnline = online
		user.LastSeen = &lastSeen
	}
	return nil
}

type publishedEvent struct {
	RoomID primitive.ObjectID
	Event  string
	Data   any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBroadcaster) Publish(roomID primitive.ObjectID, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{RoomID: roomID, Event: event, Data: data})
}

func (b *recordingBroadcaster) PublishToUser(userID primitive.ObjectID, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{RoomID: userID, Event: event, Data: data})
}

func (b *recordingBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.Event)
	}
	return names
}

func (b *recordingBroadcaster) countFor(roomID primitive.ObjectID, event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.RoomID == roomID && e.Event == event {
			n++
		}
	}
	return n
}
