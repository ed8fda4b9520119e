package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

func newMessageFixture(t *testing.T) (*memRoomRepo, *recordingBroadcaster, MessageUsecase, *models.Room, primitive.ObjectID) {
	t.Helper()
	roomRepo := newMemRoomRepo()
	broadcaster := &recordingBroadcaster{}
	uc := NewMessageUsecase(roomRepo, broadcaster)

	owner := primitive.NewObjectID()
	room := &models.Room{Name: "room", Members: []primitive.ObjectID{owner}}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	return roomRepo, broadcaster, uc, room, owner
}

func TestSendMessageValidation(t *testing.T) {
	_, _, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, room.ID, owner, "   ", nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = uc.SendMessage(ctx, room.ID, owner, strings.Repeat("x", models.MaxMessageLength+1), nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = uc.SendMessage(ctx, room.ID, primitive.NewObjectID(), "hello", nil)
	assert.ErrorIs(t, err, models.ErrNotAMember)

	msg, err := uc.SendMessage(ctx, room.ID, owner, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, models.KindText, msg.Kind)
	assert.False(t, msg.ID.IsZero())
}

func TestEditMessageKeepsHistoryAndIsAuthorOnly(t *testing.T) {
	roomRepo, broadcaster, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, room.ID, owner, "first", nil)
	require.NoError(t, err)

	other := primitive.NewObjectID()
	require.NoError(t, roomRepo.AddMember(ctx, room.ID, other))
	_, err = uc.EditMessage(ctx, room.ID, msg.ID, other, "hijack")
	assert.ErrorIs(t, err, models.ErrForbidden)

	edited, err := uc.EditMessage(ctx, room.ID, msg.ID, owner, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", edited.Body)
	assert.True(t, edited.IsEdited)
	require.Len(t, edited.EditHistory, 1)
	assert.Equal(t, "first", edited.EditHistory[0].Body)

	stored, err := roomRepo.GetMessage(ctx, room.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", stored.Body)
	assert.Equal(t, 1, broadcaster.countFor(room.ID, models.EventMessageEdited))
}

func TestDeleteMessageTombstonesAndUnpins(t *testing.T) {
	roomRepo, broadcaster, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, room.ID, owner, "to be removed", nil)
	require.NoError(t, err)

	pinned, err := uc.TogglePin(ctx, room.ID, msg.ID, owner)
	require.NoError(t, err)
	require.True(t, pinned)

	require.NoError(t, uc.DeleteMessage(ctx, room.ID, msg.ID, owner))

	stored, err := roomRepo.GetMessage(ctx, room.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
	assert.Equal(t, models.DeletedTombstone, stored.Body)

	refreshed, err := roomRepo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsPinned(msg.ID))
	assert.Equal(t, 1, broadcaster.countFor(room.ID, models.EventMessageDeleted))

	// Editing a tombstoned message is refused.
	_, err = uc.EditMessage(ctx, room.ID, msg.ID, owner, "resurrect")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestToggleReactionTwiceRemovesIt(t *testing.T) {
	roomRepo, _, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, room.ID, owner, "react to me", nil)
	require.NoError(t, err)

	first, err := uc.ToggleReaction(ctx, room.ID, msg.ID, owner, "thumbs_up")
	require.NoError(t, err)
	require.Len(t, first.Reactions, 1)

	second, err := uc.ToggleReaction(ctx, room.ID, msg.ID, owner, "thumbs_up")
	require.NoError(t, err)
	assert.Empty(t, second.Reactions)

	stored, err := roomRepo.GetMessage(ctx, room.ID, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Reactions)
}

func TestTogglePinTwiceUnpins(t *testing.T) {
	roomRepo, _, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, room.ID, owner, "pin me", nil)
	require.NoError(t, err)

	pinned, err := uc.TogglePin(ctx, room.ID, msg.ID, owner)
	require.NoError(t, err)
	assert.True(t, pinned)

	pinned, err = uc.TogglePin(ctx, room.ID, msg.ID, owner)
	require.NoError(t, err)
	assert.False(t, pinned)

	stored, err := roomRepo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PinnedIDs)
}

func TestTogglePinRejectsDeletedMessage(t *testing.T) {
	roomRepo, _, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, room.ID, owner, "gone soon", nil)
	require.NoError(t, err)
	require.NoError(t, uc.DeleteMessage(ctx, room.ID, msg.ID, owner))

	_, err = uc.TogglePin(ctx, room.ID, msg.ID, owner)
	assert.ErrorIs(t, err, models.ErrValidation)

	stored, err := roomRepo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PinnedIDs)
}

func TestMarkReadTwiceKeepsOneReceipt(t *testing.T) {
	roomRepo, _, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, room.ID, owner, "read me", nil)
	require.NoError(t, err)

	require.NoError(t, uc.MarkRead(ctx, room.ID, msg.ID, owner))
	require.NoError(t, uc.MarkRead(ctx, room.ID, msg.ID, owner))

	stored, err := roomRepo.GetMessage(ctx, room.ID, msg.ID)
	require.NoError(t, err)
	require.Len(t, stored.ReadBy, 1)
	assert.Equal(t, owner, stored.ReadBy[0].UserID)
}

func TestForwardMessageCarriesProvenance(t *testing.T) {
	roomRepo, _, uc, source, owner := newMessageFixture(t)
	ctx := context.Background()

	target := &models.Room{Name: "target", Members: []primitive.ObjectID{owner}}
	require.NoError(t, roomRepo.Create(ctx, target))

	original, err := uc.SendMessage(ctx, source.ID, owner, "worth sharing", nil)
	require.NoError(t, err)

	forwarded, err := uc.ForwardMessage(ctx, source.ID, original.ID, target.ID, owner)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, forwarded.ID)
	assert.Equal(t, "worth sharing", forwarded.Body)
	require.NotNil(t, forwarded.ForwardedFrom)
	assert.Equal(t, source.ID, forwarded.ForwardedFrom.SourceRoomID)
	assert.Equal(t, original.ID, forwarded.ForwardedFrom.SourceMessageID)
	assert.Equal(t, original.Author, forwarded.ForwardedFrom.OriginalAuthor)

	// The original is untouched.
	stored, err := roomRepo.GetMessage(ctx, source.ID, original.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ForwardedFrom)
}

func TestSearchMessagesSkipsDeleted(t *testing.T) {
	_, _, uc, room, owner := newMessageFixture(t)
	ctx := context.Background()

	kept, err := uc.SendMessage(ctx, room.ID, owner, "deploy pipeline is green", nil)
	require.NoError(t, err)
	removed, err := uc.SendMessage(ctx, room.ID, owner, "deploy failed again", nil)
	require.NoError(t, err)
	require.NoError(t, uc.DeleteMessage(ctx, room.ID, removed.ID, owner))

	results, err := uc.SearchMessages(ctx, room.ID, owner, "DEPLOY")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept.ID, results[0].ID)

	_, err = uc.SearchMessages(ctx, room.ID, owner, "  ")
	assert.ErrorIs(t, err, models.ErrValidation)
}
