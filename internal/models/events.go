package models

// Client to server websocket events.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventSendMessage    = "send_message"
	EventAIGenerateCode = "ai_generate_code"
	EventSendVoice      = "send_voice_message"
	EventDKBotCommand   = "dk_bot_command"
	EventTyping         = "typing"
	EventEditMessage    = "edit_message"
	EventDeleteMessage  = "delete_message"
	EventToggleReaction = "toggle_reaction"
	EventTogglePin      = "toggle_pin"
	EventToggleStar     = "toggle_star"
	EventMarkRead       = "mark_read"
)

// Server to client websocket events.
const (
	EventRoomJoined      = "room_joined"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventMemberAdded     = "member_added"
	EventMemberLeft      = "member_left"
	EventNewMessage      = "new_message"
	EventAITyping        = "ai_typing"
	EventAITypingStopped = "ai_typing_stopped"
	EventAICodeGenerated = "ai_code_generated"
	EventDKBotResponse   = "dk_bot_response"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventReactionUpdated = "reaction_updated"
	EventPinUpdated      = "pin_updated"
	EventStarUpdated     = "star_updated"
	EventMessageRead     = "message_read"
	EventUserTyping      = "user_typing"
	EventError           = "error"
)

// SocketEvent is the wire envelope on the websocket, both directions.
type SocketEvent struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data,omitempty"`
}
