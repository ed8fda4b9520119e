package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username    string             `bson:"username" json:"username" validate:"required"`
	Email       string             `bson:"email" json:"email"`
	AvatarURL   string             `bson:"avatar_url" json:"avatar_url"`
	GithubToken string             `bson:"github_token" json:"-"`
	IsOnline    bool               `bson:"is_online" json:"is_online"`
	LastSeen    *time.Time         `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
