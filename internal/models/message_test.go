package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTextMessage(author primitive.ObjectID, body string) *Message {
	return &Message{
		ID:        primitive.NewObjectID(),
		Author:    UserAuthor(author),
		Kind:      KindText,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

func TestApplyEditAppendsHistory(t *testing.T) {
	userID := primitive.NewObjectID()
	msg := newTextMessage(userID, "first")

	now := time.Now()
	msg.ApplyEdit("second", now)

	require.Len(t, msg.EditHistory, 1)
	assert.Equal(t, "first", msg.EditHistory[0].Body)
	assert.Equal(t, "second", msg.Body)
	assert.True(t, msg.IsEdited)

	msg.ApplyEdit("third", now.Add(time.Second))
	require.Len(t, msg.EditHistory, 2)
	assert.Equal(t, "second", msg.EditHistory[1].Body)
	assert.Equal(t, "third", msg.Body)
}

func TestSoftDeleteTombstone(t *testing.T) {
	msg := newTextMessage(primitive.NewObjectID(), "secret")
	id := msg.ID

	msg.SoftDelete(time.Now())

	assert.True(t, msg.IsDeleted)
	assert.NotNil(t, msg.DeletedAt)
	assert.Equal(t, DeletedTombstone, msg.Body)
	assert.Equal(t, id, msg.ID, "identity survives deletion")
}

func TestToggleReaction(t *testing.T) {
	msg := newTextMessage(primitive.NewObjectID(), "hello")
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	msg.ToggleReaction("👍", alice)
	require.Len(t, msg.Reactions, 1)
	assert.Equal(t, []primitive.ObjectID{alice}, msg.Reactions[0].UserIDs)

	msg.ToggleReaction("👍", bob)
	require.Len(t, msg.Reactions[0].UserIDs, 2)

	// same emoji, same user toggles off
	msg.ToggleReaction("👍", alice)
	require.Len(t, msg.Reactions, 1)
	assert.Equal(t, []primitive.ObjectID{bob}, msg.Reactions[0].UserIDs)

	// last user leaving prunes the entry
	msg.ToggleReaction("👍", bob)
	assert.Empty(t, msg.Reactions)
}

func TestToggleStar(t *testing.T) {
	msg := newTextMessage(primitive.NewObjectID(), "hello")
	alice := primitive.NewObjectID()

	assert.True(t, msg.ToggleStar(alice))
	assert.Len(t, msg.StarredBy, 1)
	assert.False(t, msg.ToggleStar(alice))
	assert.Empty(t, msg.StarredBy)
}

func TestMarkReadUpserts(t *testing.T) {
	msg := newTextMessage(primitive.NewObjectID(), "hello")
	alice := primitive.NewObjectID()

	first := time.Now()
	later := first.Add(time.Minute)

	msg.MarkRead(alice, first)
	msg.MarkRead(alice, later)

	require.Len(t, msg.ReadBy, 1, "re-marking replaces the prior entry")
	assert.Equal(t, later, msg.ReadBy[0].ReadAt)
}

func TestAuthorUnion(t *testing.T) {
	userID := primitive.NewObjectID()

	user := UserAuthor(userID)
	assert.True(t, user.Valid())
	assert.False(t, user.IsBot())
	assert.True(t, user.IsUser(userID))
	assert.False(t, user.IsUser(primitive.NewObjectID()))

	bot := BotAuthor(BotAssistant)
	assert.True(t, bot.Valid())
	assert.True(t, bot.IsBot())
	assert.False(t, bot.IsUser(userID))

	assert.False(t, Author{}.Valid())
}
