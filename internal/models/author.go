package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BotKind identifies one of the reserved synthetic message authors.
type BotKind string

const (
	BotAssistant BotKind = "assistant"
	BotRepo      BotKind = "repo_bot"
	BotWelcome   BotKind = "welcome_bot"
)

// Author is a tagged union: exactly one of UserID or Bot is set. A message is
// written either by a real user or by one of the three synthetic bots, never
// both.
type Author struct {
	UserID *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Bot    BotKind             `bson:"bot,omitempty" json:"bot,omitempty"`
}

func UserAuthor(userID primitive.ObjectID) Author {
	return Author{UserID: &userID}
}

func BotAuthor(kind BotKind) Author {
	return Author{Bot: kind}
}

func (a Author) IsBot() bool {
	return a.Bot != ""
}

// IsUser reports whether the author is the given real user. Bot-authored
// messages never match.
func (a Author) IsUser(userID primitive.ObjectID) bool {
	return a.UserID != nil && *a.UserID == userID
}

func (a Author) Valid() bool {
	return (a.UserID != nil) != (a.Bot != "")
}
