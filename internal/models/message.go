package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageKind discriminates the message payload.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindVoice   MessageKind = "voice"
	KindAICode  MessageKind = "ai_code"
	KindSystem  MessageKind = "system"
	KindImage   MessageKind = "image"
	KindFile    MessageKind = "file"
	KindRepo    MessageKind = "repo_event"
	KindWelcome MessageKind = "welcome"
)

// DeletedTombstone replaces the body of a soft-deleted message. The message
// keeps its identity and position so thread and quote references stay
// resolvable.
const DeletedTombstone = "[Message deleted]"

// MaxMessageLength is the upper bound on a message body.
const MaxMessageLength = 10000

type VoicePayload struct {
	URL      string  `bson:"url" json:"url"`
	Duration float64 `bson:"duration,omitempty" json:"duration,omitempty"`
}

type AICodePayload struct {
	Code        string `bson:"code,omitempty" json:"code,omitempty"`
	Explanation string `bson:"explanation" json:"explanation"`
	Language    string `bson:"language,omitempty" json:"language,omitempty"`
}

type RepoEventPayload struct {
	RepoFullName string `bson:"repo_full_name" json:"repo_full_name"`
	Event        string `bson:"event" json:"event"`
	Action       string `bson:"action,omitempty" json:"action,omitempty"`
	Title        string `bson:"title,omitempty" json:"title,omitempty"`
	SenderLogin  string `bson:"sender_login,omitempty" json:"sender_login,omitempty"`
}

type Attachment struct {
	Kind     string `bson:"kind" json:"kind"` // "image" or "file"
	URL      string `bson:"url" json:"url"`
	Filename string `bson:"filename" json:"filename"`
	Size     int64  `bson:"size" json:"size"`
	MimeType string `bson:"mime_type" json:"mime_type"`
}

// ForwardProvenance records where a forwarded message came from. A forward is
// a brand-new message, never a mutation of the original.
type ForwardProvenance struct {
	SourceRoomID    primitive.ObjectID `bson:"source_room_id" json:"source_room_id"`
	SourceMessageID primitive.ObjectID `bson:"source_message_id" json:"source_message_id"`
	OriginalAuthor  Author             `bson:"original_author" json:"original_author"`
}

type EditEntry struct {
	Body     string    `bson:"body" json:"body"`
	EditedAt time.Time `bson:"edited_at" json:"edited_at"`
}

type Reaction struct {
	Emoji   string               `bson:"emoji" json:"emoji"`
	UserIDs []primitive.ObjectID `bson:"user_ids" json:"user_ids"`
}

type ReadReceipt struct {
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	ReadAt time.Time          `bson:"read_at" json:"read_at"`
}

// Message is one entry of a room's embedded message sequence.
type Message struct {
	ID            primitive.ObjectID  `bson:"_id" json:"id"`
	Author        Author              `bson:"author" json:"author"`
	Kind          MessageKind         `bson:"kind" json:"kind"`
	Body          string              `bson:"body" json:"body"`
	Voice         *VoicePayload       `bson:"voice,omitempty" json:"voice,omitempty"`
	AICode        *AICodePayload      `bson:"ai_code,omitempty" json:"ai_code,omitempty"`
	RepoEvent     *RepoEventPayload   `bson:"repo_event,omitempty" json:"repo_event,omitempty"`
	Attachments   []Attachment        `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReplyToID     *primitive.ObjectID `bson:"reply_to_id,omitempty" json:"reply_to_id,omitempty"`
	ForwardedFrom *ForwardProvenance  `bson:"forwarded_from,omitempty" json:"forwarded_from,omitempty"`

	IsEdited    bool        `bson:"is_edited" json:"is_edited"`
	EditHistory []EditEntry `bson:"edit_history,omitempty" json:"edit_history,omitempty"`
	IsDeleted   bool        `bson:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time  `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	Reactions []Reaction           `bson:"reactions,omitempty" json:"reactions,omitempty"`
	StarredBy []primitive.ObjectID `bson:"starred_by,omitempty" json:"starred_by,omitempty"`
	ReadBy    []ReadReceipt        `bson:"read_by,omitempty" json:"read_by,omitempty"`

	IsError   bool      `bson:"is_error,omitempty" json:"is_error,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ApplyEdit appends the current body to the edit history before replacing it,
// so history entries are recoverable in chronological order.
func (m *Message) ApplyEdit(newBody string, now time.Time) {
	m.EditHistory = append(m.EditHistory, EditEntry{Body: m.Body, EditedAt: now})
	m.Body = newBody
	m.IsEdited = true
}

// SoftDelete overwrites the body with the tombstone and flags the message as
// deleted. The entry is never physically removed.
func (m *Message) SoftDelete(now time.Time) {
	m.IsDeleted = true
	m.DeletedAt = &now
	m.Body = DeletedTombstone
}

// ToggleReaction toggles userID's membership in the reaction entry for emoji.
// An entry is created on first use and pruned when its last user leaves.
func (m *Message) ToggleReaction(emoji string, userID primitive.ObjectID) {
	for i, r := range m.Reactions {
		if r.Emoji != emoji {
			continue
		}
		for j, uid := range r.UserIDs {
			if uid == userID {
				r.UserIDs = append(r.UserIDs[:j], r.UserIDs[j+1:]...)
				if len(r.UserIDs) == 0 {
					m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				} else {
					m.Reactions[i].UserIDs = r.UserIDs
				}
				return
			}
		}
		m.Reactions[i].UserIDs = append(r.UserIDs, userID)
		return
	}
	m.Reactions = append(m.Reactions, Reaction{Emoji: emoji, UserIDs: []primitive.ObjectID{userID}})
}

// ToggleStar toggles userID's membership in the starred-by set.
func (m *Message) ToggleStar(userID primitive.ObjectID) bool {
	for i, uid := range m.StarredBy {
		if uid == userID {
			m.StarredBy = append(m.StarredBy[:i], m.StarredBy[i+1:]...)
			return false
		}
	}
	m.StarredBy = append(m.StarredBy, userID)
	return true
}

// MarkRead upserts a single read receipt for userID, replacing any prior one.
func (m *Message) MarkRead(userID primitive.ObjectID, now time.Time) {
	for i, r := range m.ReadBy {
		if r.UserID == userID {
			m.ReadBy[i].ReadAt = now
			return
		}
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: now})
}
