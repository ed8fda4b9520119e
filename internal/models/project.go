package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project links a team to a repository. Project CRUD itself lives outside
// this service; rooms only read membership and repository linkage from it.
type Project struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	OwnerID      primitive.ObjectID   `bson:"owner_id" json:"owner_id"`
	Members      []primitive.ObjectID `bson:"members" json:"members"`
	RepoFullName string               `bson:"repo_full_name,omitempty" json:"repo_full_name,omitempty"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

func (p *Project) HasMember(userID primitive.ObjectID) bool {
	for _, id := range p.Members {
		if id == userID {
			return true
		}
	}
	return false
}
