package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room embeds its full message sequence. Membership is a flat list of user
// ids; pinned ids must always reference a message currently in Messages.
type Room struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name           string               `bson:"name" json:"name" validate:"required"`
	ProjectID      *primitive.ObjectID  `bson:"project_id,omitempty" json:"project_id,omitempty"`
	RepoFullName   string               `bson:"repo_full_name,omitempty" json:"repo_full_name,omitempty"`
	Members        []primitive.ObjectID `bson:"members" json:"members"`
	Messages       []Message            `bson:"messages" json:"messages"`
	PinnedIDs      []primitive.ObjectID `bson:"pinned_ids,omitempty" json:"pinned_ids,omitempty"`
	InviteCode     string               `bson:"invite_code" json:"invite_code"`
	CreatedAt      time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at" json:"updated_at"`
	LastActivityAt *time.Time           `bson:"last_activity_at,omitempty" json:"last_activity_at,omitempty"`
}

func (r *Room) HasMember(userID primitive.ObjectID) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Room) IsPinned(messageID primitive.ObjectID) bool {
	for _, id := range r.PinnedIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// FindMessage returns the embedded message with the given id, or nil.
func (r *Room) FindMessage(messageID primitive.ObjectID) *Message {
	for i := range r.Messages {
		if r.Messages[i].ID == messageID {
			return &r.Messages[i]
		}
	}
	return nil
}

// IsProjectRoom reports whether the room is linked to a project. Project
// rooms cannot be deleted, only left.
func (r *Room) IsProjectRoom() bool {
	return r.ProjectID != nil
}
