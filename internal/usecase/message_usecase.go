package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
)

type MessageUsecase interface {
	SendMessage(ctx context.Context, roomID, userID primitive.ObjectID, body string, replyTo *primitive.ObjectID) (*models.Message, error)
	SendVoiceMessage(ctx context.Context, roomID, userID primitive.ObjectID, url string, duration float64) (*models.Message, error)
	SendFileMessage(ctx context.Context, roomID, userID primitive.ObjectID, att models.Attachment) (*models.Message, error)
	EditMessage(ctx context.Context, roomID, messageID, userID primitive.ObjectID, newBody string) (*models.Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID, userID primitive.ObjectID) error
	ToggleReaction(ctx context.Context, roomID, messageID, userID primitive.ObjectID, emoji string) (*models.Message, error)
	TogglePin(ctx context.Context, roomID, messageID, userID primitive.ObjectID) (bool, error)
	ToggleStar(ctx context.Context, roomID, messageID, userID primitive.ObjectID) (bool, error)
	MarkRead(ctx context.Context, roomID, messageID, userID primitive.ObjectID) error
	ForwardMessage(ctx context.Context, sourceRoomID, messageID, targetRoomID, userID primitive.ObjectID) (*models.Message, error)
	SearchMessages(ctx context.Context, roomID, userID primitive.ObjectID, query string) ([]models.Message, error)
}

type messageUsecase struct {
	roomRepo    mongodb.RoomRepository
	broadcaster Broadcaster
}

func NewMessageUsecase(roomRepo mongodb.RoomRepository, broadcaster Broadcaster) MessageUsecase {
	return &messageUsecase{
		roomRepo:    roomRepo,
		broadcaster: broadcaster,
	}
}

func (uc *messageUsecase) SendMessage(ctx context.Context, roomID, userID primitive.ObjectID, body string, replyTo *primitive.ObjectID) (*models.Message, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		Author:    models.UserAuthor(userID),
		Kind:      models.KindText,
		Body:      body,
		ReplyToID: replyTo,
	}
	return uc.append(ctx, roomID, msg)
}

func (uc *messageUsecase) SendVoiceMessage(ctx context.Context, roomID, userID primitive.ObjectID, url string, duration float64) (*models.Message, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: voice url is required", models.ErrValidation)
	}
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		Author: models.UserAuthor(userID),
		Kind:   models.KindVoice,
		Body:   "Voice message",
		Voice:  &models.VoicePayload{URL: url, Duration: duration},
	}
	return uc.append(ctx, roomID, msg)
}

func (uc *messageUsecase) SendFileMessage(ctx context.Context, roomID, userID primitive.ObjectID, att models.Attachment) (*models.Message, error) {
	if att.URL == "" || att.Filename == "" {
		return nil, fmt.Errorf("%w: attachment url and filename are required", models.ErrValidation)
	}
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}

	kind := models.KindFile
	if att.Kind == "image" {
		kind = models.KindImage
	}
	msg := &models.Message{
		Author:      models.UserAuthor(userID),
		Kind:        kind,
		Body:        att.Filename,
		Attachments: []models.Attachment{att},
	}
	return uc.append(ctx, roomID, msg)
}

// EditMessage is author-only. The previous body is appended to the edit
// history before the replacement lands, and only the touched fields of the
// one embedded message are written back.
func (uc *messageUsecase) EditMessage(ctx context.Context, roomID, messageID, userID primitive.ObjectID, newBody string) (*models.Message, error) {
	if err := validateBody(newBody); err != nil {
		return nil, err
	}

	msg, err := uc.authoredMessage(ctx, roomID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, fmt.Errorf("%w: message is deleted", models.ErrForbidden)
	}

	msg.ApplyEdit(newBody, time.Now())
	err = uc.roomRepo.UpdateMessage(ctx, roomID, messageID, bson.M{
		"body":         msg.Body,
		"is_edited":    true,
		"edit_history": msg.EditHistory,
	})
	if err != nil {
		return nil, err
	}

	uc.broadcaster.Publish(roomID, models.EventMessageEdited, msg)
	return msg, nil
}

// DeleteMessage tombstones the body in place. The entry keeps its identity so
// replies and forwards pointing at it stay resolvable; a pinned message is
// unpinned as part of the delete.
func (uc *messageUsecase) DeleteMessage(ctx context.Context, roomID, messageID, userID primitive.ObjectID) error {
	msg, err := uc.authoredMessage(ctx, roomID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return nil
	}

	msg.SoftDelete(time.Now())
	err = uc.roomRepo.UpdateMessage(ctx, roomID, messageID, bson.M{
		"body":       msg.Body,
		"is_deleted": true,
		"deleted_at": msg.DeletedAt,
	})
	if err != nil {
		return err
	}
	if err := uc.roomRepo.Unpin(ctx, roomID, messageID); err != nil {
		return fmt.Errorf("unpin deleted message: %w", err)
	}

	uc.broadcaster.Publish(roomID, models.EventMessageDeleted, map[string]any{
		"room_id":    roomID.Hex(),
		"message_id": messageID.Hex(),
	})
	return nil
}

func (uc *messageUsecase) ToggleReaction(ctx context.Context, roomID, messageID, userID primitive.ObjectID, emoji string) (*models.Message, error) {
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", models.ErrValidation)
	}
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	msg, err := uc.roomRepo.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return nil, err
	}

	msg.ToggleReaction(emoji, userID)
	reactions := msg.Reactions
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	if err := uc.roomRepo.UpdateMessage(ctx, roomID, messageID, bson.M{"reactions": reactions}); err != nil {
		return nil, err
	}

	uc.broadcaster.Publish(roomID, models.EventReactionUpdated, map[string]any{
		"room_id":    roomID.Hex(),
		"message_id": messageID.Hex(),
		"reactions":  reactions,
	})
	return msg, nil
}

func (uc *messageUsecase) TogglePin(ctx context.Context, roomID, messageID, userID primitive.ObjectID) (bool, error) {
	room, err := uc.memberRoom(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	msg := room.FindMessage(messageID)
	if msg == nil {
		msg, err = uc.roomRepo.GetMessage(ctx, roomID, messageID)
		if err != nil {
			return false, err
		}
	}

	pinned := !room.IsPinned(messageID)
	if pinned && msg.IsDeleted {
		return false, fmt.Errorf("%w: cannot pin a deleted message", models.ErrValidation)
	}
	if pinned {
		err = uc.roomRepo.Pin(ctx, roomID, messageID)
	} else {
		err = uc.roomRepo.Unpin(ctx, roomID, messageID)
	}
	if err != nil {
		return false, err
	}

	uc.broadcaster.Publish(roomID, models.EventPinUpdated, map[string]any{
		"room_id":    roomID.Hex(),
		"message_id": messageID.Hex(),
		"pinned":     pinned,
	})
	return pinned, nil
}

func (uc *messageUsecase) ToggleStar(ctx context.Context, roomID, messageID, userID primitive.ObjectID) (bool, error) {
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return false, err
	}
	msg, err := uc.roomRepo.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return false, err
	}

	starred := msg.ToggleStar(userID)
	starredBy := msg.StarredBy
	if starredBy == nil {
		starredBy = []primitive.ObjectID{}
	}
	if err := uc.roomRepo.UpdateMessage(ctx, roomID, messageID, bson.M{"starred_by": starredBy}); err != nil {
		return false, err
	}

	uc.broadcaster.Publish(roomID, models.EventStarUpdated, map[string]any{
		"room_id":    roomID.Hex(),
		"message_id": messageID.Hex(),
		"user_id":    userID.Hex(),
		"starred":    starred,
	})
	return starred, nil
}

func (uc *messageUsecase) MarkRead(ctx context.Context, roomID, messageID, userID primitive.ObjectID) error {
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return err
	}
	msg, err := uc.roomRepo.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return err
	}

	msg.MarkRead(userID, time.Now())
	if err := uc.roomRepo.UpdateMessage(ctx, roomID, messageID, bson.M{"read_by": msg.ReadBy}); err != nil {
		return err
	}

	uc.broadcaster.Publish(roomID, models.EventMessageRead, map[string]any{
		"room_id":    roomID.Hex(),
		"message_id": messageID.Hex(),
		"user_id":    userID.Hex(),
	})
	return nil
}

// ForwardMessage copies a message into another room as a brand-new message
// carrying provenance. The original is never mutated; the caller must be a
// member of both rooms.
func (uc *messageUsecase) ForwardMessage(ctx context.Context, sourceRoomID, messageID, targetRoomID, userID primitive.ObjectID) (*models.Message, error) {
	if _, err := uc.memberRoom(ctx, sourceRoomID, userID); err != nil {
		return nil, err
	}
	if _, err := uc.memberRoom(ctx, targetRoomID, userID); err != nil {
		return nil, err
	}

	src, err := uc.roomRepo.GetMessage(ctx, sourceRoomID, messageID)
	if err != nil {
		return nil, err
	}
	if src.IsDeleted {
		return nil, fmt.Errorf("%w: cannot forward a deleted message", models.ErrForbidden)
	}

	msg := &models.Message{
		Author:      models.UserAuthor(userID),
		Kind:        src.Kind,
		Body:        src.Body,
		Voice:       src.Voice,
		AICode:      src.AICode,
		Attachments: src.Attachments,
		ForwardedFrom: &models.ForwardProvenance{
			SourceRoomID:    sourceRoomID,
			SourceMessageID: src.ID,
			OriginalAuthor:  src.Author,
		},
	}
	return uc.append(ctx, targetRoomID, msg)
}

// SearchMessages scans the embedded sequence for a case-insensitive substring
// match, skipping tombstoned entries.
func (uc *messageUsecase) SearchMessages(ctx context.Context, roomID, userID primitive.ObjectID, query string) ([]models.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", models.ErrValidation)
	}
	room, err := uc.memberRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matches := []models.Message{}
	for _, msg := range room.Messages {
		if msg.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Body), needle) {
			matches = append(matches, msg)
		}
	}
	return matches, nil
}

func (uc *messageUsecase) memberRoom(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, models.ErrNotAMember
	}
	return room, nil
}

// authoredMessage loads a message after checking that userID is both a room
// member and the message's author. Bot messages have no author to match.
func (uc *messageUsecase) authoredMessage(ctx context.Context, roomID, messageID, userID primitive.ObjectID) (*models.Message, error) {
	if _, err := uc.memberRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	msg, err := uc.roomRepo.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Author.UserID == nil || *msg.Author.UserID != userID {
		return nil, fmt.Errorf("%w: only the author can modify a message", models.ErrForbidden)
	}
	return msg, nil
}

func (uc *messageUsecase) append(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) (*models.Message, error) {
	if err := uc.roomRepo.AppendMessage(ctx, roomID, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	uc.broadcaster.Publish(roomID, models.EventNewMessage, msg)
	return msg, nil
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message body is required", models.ErrValidation)
	}
	if len(body) > models.MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", models.ErrValidation, models.MaxMessageLength)
	}
	return nil
}
