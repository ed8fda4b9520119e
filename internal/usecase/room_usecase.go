package usecase

import (
	"context"
	"errors"
	"fmt"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
)

const (
	// DefaultMessageLimit is the page size used when a caller does not ask
	// for one. An explicit limit, including 0, is clamped instead.
	DefaultMessageLimit = 50

	maxMessageLimit = 100
)

type RoomUsecase interface {
	CreateRoom(ctx context.Context, ownerID primitive.ObjectID, name, repoFullName string) (*models.Room, error)
	GetRoom(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error)
	ListRooms(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error)
	JoinRoom(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error)
	JoinByInviteCode(ctx context.Context, code string, userID primitive.ObjectID) (*models.Room, error)
	LeaveRoom(ctx context.Context, roomID, userID primitive.ObjectID) error
	DeleteRoom(ctx context.Context, roomID, userID primitive.ObjectID) error
	ListMessages(ctx context.Context, roomID, userID primitive.ObjectID, limit, skip int) ([]models.Message, error)
	InviteCode(ctx context.Context, roomID, userID primitive.ObjectID) (string, error)
}

type roomUsecase struct {
	roomRepo    mongodb.RoomRepository
	projectRepo mongodb.ProjectRepository
	broadcaster Broadcaster
}

func NewRoomUsecase(
	roomRepo mongodb.RoomRepository,
	projectRepo mongodb.ProjectRepository,
	broadcaster Broadcaster,
) RoomUsecase {
	return &roomUsecase{
		roomRepo:    roomRepo,
		projectRepo: projectRepo,
		broadcaster: broadcaster,
	}
}

func (uc *roomUsecase) CreateRoom(ctx context.Context, ownerID primitive.ObjectID, name, repoFullName string) (*models.Room, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", models.ErrValidation)
	}

	room := &models.Room{
		Name:         name,
		RepoFullName: repoFullName,
		Members:      []primitive.ObjectID{ownerID},
	}
	if err := uc.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	// The welcome greeting goes through the same store/broadcast pipeline
	// as every other message.
	welcome := &models.Message{
		Author: models.BotAuthor(models.BotWelcome),
		Kind:   models.KindWelcome,
		Body:   fmt.Sprintf("Welcome to %s! Invite teammates with code %s.", room.Name, room.InviteCode),
	}
	if err := uc.roomRepo.AppendMessage(ctx, room.ID, welcome); err != nil {
		log.Errorw(ctx, "append welcome message", "room_id", room.ID.Hex(), "error", err)
	} else {
		room.Messages = append(room.Messages, *welcome)
		uc.broadcaster.Publish(room.ID, models.EventNewMessage, welcome)
	}

	return room, nil
}

func (uc *roomUsecase) GetRoom(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, models.ErrNotAMember
	}
	return room, nil
}

func (uc *roomUsecase) ListRooms(ctx context.Context, userID primitive.ObjectID) ([]*models.Room, error) {
	return uc.roomRepo.GetUserRooms(ctx, userID)
}

// JoinRoom subscribes an existing member directly. A non-member gets two
// recovery paths before refusal: project membership auto-enrolls, and a
// personal room still being provisioned (no project, fewer than two members)
// auto-enrolls. Membership is reconciled lazily from project membership
// rather than created transactionally with the room, hence the repair here.
func (uc *roomUsecase) JoinRoom(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.HasMember(userID) {
		return room, nil
	}

	if !uc.canAutoEnroll(ctx, room, userID) {
		return nil, models.ErrNotAMember
	}

	if err := uc.enroll(ctx, room, userID); err != nil {
		return nil, err
	}
	return room, nil
}

func (uc *roomUsecase) canAutoEnroll(ctx context.Context, room *models.Room, userID primitive.ObjectID) bool {
	if room.ProjectID != nil {
		project, err := uc.projectRepo.GetByID(ctx, *room.ProjectID)
		if err != nil {
			log.Errorw(ctx, "lookup linked project", "project_id", room.ProjectID.Hex(), "error", err)
			return false
		}
		return project.HasMember(userID)
	}
	// A personal room with fewer than two members is treated as still
	// being provisioned.
	return len(room.Members) < 2
}

func (uc *roomUsecase) enroll(ctx context.Context, room *models.Room, userID primitive.ObjectID) error {
	if err := uc.roomRepo.AddMember(ctx, room.ID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	room.Members = append(room.Members, userID)
	uc.broadcaster.Publish(room.ID, models.EventMemberAdded, map[string]any{
		"room_id": room.ID.Hex(),
		"user_id": userID.Hex(),
	})
	return nil
}

// JoinByInviteCode is idempotent: redeeming a code for a room the user is
// already in succeeds without duplicating membership.
func (uc *roomUsecase) JoinByInviteCode(ctx context.Context, code string, userID primitive.ObjectID) (*models.Room, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: invite code is required", models.ErrValidation)
	}

	room, err := uc.roomRepo.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HasMember(userID) {
		return room, nil
	}
	if err := uc.enroll(ctx, room, userID); err != nil {
		return nil, err
	}
	return room, nil
}

func (uc *roomUsecase) LeaveRoom(ctx context.Context, roomID, userID primitive.ObjectID) error {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(userID) {
		return models.ErrNotAMember
	}

	if err := uc.roomRepo.RemoveMember(ctx, roomID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	uc.broadcaster.Publish(roomID, models.EventMemberLeft, map[string]any{
		"room_id": roomID.Hex(),
		"user_id": userID.Hex(),
	})
	return nil
}

// DeleteRoom removes the room and, because messages are embedded, every
// message with it. Project-linked rooms cannot be deleted, only left.
func (uc *roomUsecase) DeleteRoom(ctx context.Context, roomID, userID primitive.ObjectID) error {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(userID) {
		return models.ErrNotAMember
	}
	if room.IsProjectRoom() {
		return fmt.Errorf("%w: project rooms cannot be deleted", models.ErrForbidden)
	}
	return uc.roomRepo.Delete(ctx, roomID)
}

// ListMessages clamps limit to [1,100] and skip to >=0, fetches newest-first
// and returns the page in chronological order. A vanished room is non-fatal
// for this read path.
func (uc *roomUsecase) ListMessages(ctx context.Context, roomID, userID primitive.ObjectID, limit, skip int) ([]models.Message, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if errors.Is(err, models.ErrNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, models.ErrNotAMember
	}

	if limit < 1 {
		limit = 1
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if skip < 0 {
		skip = 0
	}

	messages, err := uc.roomRepo.ListMessages(ctx, roomID, limit, skip)
	if errors.Is(err, models.ErrNotFound) {
		return []models.Message{}, nil
	}
	return messages, err
}

func (uc *roomUsecase) InviteCode(ctx context.Context, roomID, userID primitive.ObjectID) (string, error) {
	room, err := uc.GetRoom(ctx, roomID, userID)
	if err != nil {
		return "", err
	}
	return room.InviteCode, nil
}
