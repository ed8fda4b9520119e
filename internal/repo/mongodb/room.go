package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/pkg/invite"
)

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Room, error)
	GetUserRooms(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error)
	GetByRepoFullName(ctx context.Context, fullName string) ([]*models.Room, error)
	GetByProjectIDs(ctx context.Context, projectIDs []primitive.ObjectID) ([]*models.Room, error)
	AddMember(ctx context.Context, roomID, userID primitive.ObjectID) error
	RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) error
	AppendMessage(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) error
	GetMessage(ctx context.Context, roomID, messageID primitive.ObjectID) (*models.Message, error)
	UpdateMessage(ctx context.Context, roomID, messageID primitive.ObjectID, set bson.M) error
	Pin(ctx context.Context, roomID, messageID primitive.ObjectID) error
	Unpin(ctx context.Context, roomID, messageID primitive.ObjectID) error
	ListMessages(ctx context.Context, roomID primitive.ObjectID, limit, skip int) ([]models.Message, error)
	Delete(ctx context.Context, roomID primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type roomRepo struct {
	collection *mongo.Collection
}

func NewRoomRepository(db *DB) RoomRepository {
	return &roomRepo{
		collection: db.Database.Collection("rooms"),
	}
}

func (r *roomRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invite_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "members", Value: 1}}},
		{Keys: bson.D{{Key: "repo_full_name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create room indexes: %w", err)
	}
	return nil
}

// Create inserts the room with a fresh invite code, regenerating on the rare
// unique-index collision. The code is immutable once the insert succeeds.
func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	now := time.Now()
	room.ID = primitive.NewObjectID()
	room.CreatedAt = now
	room.UpdatedAt = now
	if room.Members == nil {
		room.Members = []primitive.ObjectID{}
	}
	if room.Messages == nil {
		room.Messages = []models.Message{}
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := invite.NewCode()
		if err != nil {
			return fmt.Errorf("generate invite code: %w", err)
		}
		room.InviteCode = code

		_, err = r.collection.InsertOne(ctx, room)
		if err == nil {
			return nil
		}
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return errors.New("could not generate a unique invite code")
}

func (r *roomRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	var room models.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (r *roomRepo) GetByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	filter := bson.M{"invite_code": strings.ToUpper(code)}
	err := r.collection.FindOne(ctx, filter).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room by invite code: %w", err)
	}
	return &room, nil
}

func (r *roomRepo) GetUserRooms(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_activity_at", Value: -1}}).
		SetProjection(bson.M{"messages": bson.M{"$slice": -1}})
	return r.find(ctx, bson.M{"members": userID}, opts)
}

func (r *roomRepo) GetByRepoFullName(ctx context.Context, fullName string) ([]*models.Room, error) {
	return r.find(ctx, bson.M{"repo_full_name": fullName})
}

func (r *roomRepo) GetByProjectIDs(ctx context.Context, projectIDs []primitive.ObjectID) ([]*models.Room, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"project_id": bson.M{"$in": projectIDs}})
}

func (r *roomRepo) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.Room, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*models.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

// AddMember is idempotent: $addToSet ignores an already-present member.
func (r *roomRepo) AddMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updated_at": time.Now()},
	}
	return r.updateRoom(ctx, roomID, update)
}

func (r *roomRepo) RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	return r.updateRoom(ctx, roomID, update)
}

func (r *roomRepo) AppendMessage(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) error {
	now := time.Now()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set": bson.M{
			"last_activity_at": now,
			"updated_at":       now,
		},
	}
	return r.updateRoom(ctx, roomID, update)
}

func (r *roomRepo) GetMessage(ctx context.Context, roomID, messageID primitive.ObjectID) (*models.Message, error) {
	filter := bson.M{"_id": roomID, "messages._id": messageID}
	opts := options.FindOne().SetProjection(bson.M{
		"messages": bson.M{"$elemMatch": bson.M{"_id": messageID}},
	})

	var room models.Room
	err := r.collection.FindOne(ctx, filter, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if len(room.Messages) == 0 {
		return nil, models.ErrNotFound
	}
	return &room.Messages[0], nil
}

// UpdateMessage writes only the given fields of one embedded message through
// the positional operator. Mutating a single array element instead of writing
// the whole room back keeps concurrent edits to different messages from
// clobbering each other.
func (r *roomRepo) UpdateMessage(ctx context.Context, roomID, messageID primitive.ObjectID, set bson.M) error {
	prefixed := bson.M{"updated_at": time.Now()}
	for field, value := range set {
		prefixed["messages.$."+field] = value
	}

	filter := bson.M{"_id": roomID, "messages._id": messageID}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": prefixed})
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *roomRepo) Pin(ctx context.Context, roomID, messageID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"pinned_ids": messageID},
		"$set":      bson.M{"updated_at": time.Now()},
	}
	return r.updateRoom(ctx, roomID, update)
}

func (r *roomRepo) Unpin(ctx context.Context, roomID, messageID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"pinned_ids": messageID},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	return r.updateRoom(ctx, roomID, update)
}

// ListMessages returns a chronological page taken from the newest end of the
// embedded sequence: skip counts back from the latest message, limit bounds
// the page size.
func (r *roomRepo) ListMessages(ctx context.Context, roomID primitive.ObjectID, limit, skip int) ([]models.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": roomID}}},
		{{Key: "$project", Value: bson.M{
			"messages": bson.M{"$slice": bson.A{
				bson.M{"$reverseArray": "$messages"}, skip, limit,
			}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Room
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if len(results) == 0 {
		return nil, models.ErrNotFound
	}

	// newest-first from the pipeline, reversed back to chronological
	page := results[0].Messages
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (r *roomRepo) Delete(ctx context.Context, roomID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": roomID})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *roomRepo) updateRoom(ctx context.Context, roomID primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": roomID}, update)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
