package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

// ProjectRepository is read-only from this service's point of view: project
// CRUD happens elsewhere, room membership recovery and the automation
// notifier only need lookups.
type ProjectRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	GetByRepoFullName(ctx context.Context, fullName string) ([]*models.Project, error)
}

type projectRepo struct {
	collection *mongo.Collection
}

func NewProjectRepository(db *DB) ProjectRepository {
	return &projectRepo{
		collection: db.Database.Collection("projects"),
	}
}

func (r *projectRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var project models.Project
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

func (r *projectRepo) GetByRepoFullName(ctx context.Context, fullName string) ([]*models.Project, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"repo_full_name": fullName})
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []*models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}
