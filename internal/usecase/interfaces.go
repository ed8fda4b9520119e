package usecase

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Broadcaster fans a room event out to every session subscribed to the room.
// The realtime hub implements it; usecases never talk to sockets directly.
type Broadcaster interface {
	Publish(roomID primitive.ObjectID, event string, data any)
	PublishToUser(userID primitive.ObjectID, event string, data any)
}
