package server

import (
	"context"
	"net/http"
	"strings"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/socket"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

type SocketHandler struct {
	hub            *socket.Hub
	authUsecase    usecase.AuthUsecase
	roomUsecase    usecase.RoomUsecase
	messageUsecase usecase.MessageUsecase
	aiUsecase      usecase.AIUsecase
	botUsecase     usecase.BotUsecase
	upgrader       websocket.Upgrader
}

func NewSocketHandler(
	hub *socket.Hub,
	authUsecase usecase.AuthUsecase,
	roomUsecase usecase.RoomUsecase,
	messageUsecase usecase.MessageUsecase,
	aiUsecase usecase.AIUsecase,
	botUsecase usecase.BotUsecase,
) *SocketHandler {
	return &SocketHandler{
		hub:            hub,
		authUsecase:    authUsecase,
		roomUsecase:    roomUsecase,
		messageUsecase: messageUsecase,
		aiUsecase:      aiUsecase,
		botUsecase:     botUsecase,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is enforced by the CORS layer on the upgrade request.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates the handshake, upgrades the connection and runs the
// session's read loop until disconnect. The credential comes from the
// Authorization header or a token query parameter; an unverified connection
// never reaches any room logic.
func (h *SocketHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	token := handshakeToken(c)
	user, err := h.authUsecase.ValidateToken(ctx, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	session := h.hub.Attach(ctx, user.ID, conn)
	defer h.hub.Detach(context.WithoutCancel(ctx), session)

	log.Infow(ctx, "socket connected", "session_id", session.ID, "user_id", user.ID.Hex())

	for {
		event, err := session.ReadEvent()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnw(ctx, "socket read error", "session_id", session.ID, "error", err)
			}
			return nil
		}
		h.dispatch(ctx, session, event)
	}
}

func handshakeToken(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.QueryParam("token")
}

// dispatch routes one inbound event. Failures become error events on the
// calling session; they never tear the connection down.
func (h *SocketHandler) dispatch(ctx context.Context, session *socket.Session, event *models.SocketEvent) {
	var err error
	switch event.Name {
	case models.EventJoinRoom:
		err = h.joinRoom(ctx, session, event)
	case models.EventLeaveRoom:
		err = h.leaveRoom(ctx, session, event)
	case models.EventSendMessage:
		err = h.sendMessage(ctx, session, event)
	case models.EventSendVoice:
		err = h.sendVoice(ctx, session, event)
	case models.EventAIGenerateCode:
		err = h.generateCode(ctx, session, event)
	case models.EventDKBotCommand:
		err = h.botCommand(ctx, session, event)
	case models.EventTyping:
		err = h.typing(session, event)
	case models.EventEditMessage:
		err = h.editMessage(ctx, session, event)
	case models.EventDeleteMessage:
		err = h.deleteMessage(ctx, session, event)
	case models.EventToggleReaction:
		err = h.toggleReaction(ctx, session, event)
	case models.EventTogglePin:
		err = h.togglePin(ctx, session, event)
	case models.EventToggleStar:
		err = h.toggleStar(ctx, session, event)
	case models.EventMarkRead:
		err = h.markRead(ctx, session, event)
	default:
		session.EmitError("unknown event: " + event.Name)
		return
	}
	if err != nil {
		log.Warnw(ctx, "socket event failed",
			"event", event.Name, "session_id", session.ID, "error", err)
		session.EmitError(err.Error())
	}
}

func (h *SocketHandler) joinRoom(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}

	room, err := h.roomUsecase.JoinRoom(ctx, roomID, session.UserID)
	if err != nil {
		return err
	}

	// Subscribe before the ack so nothing published after the ack can be
	// missed by this session.
	h.hub.Subscribe(session, roomID)
	session.Emit(models.EventRoomJoined, map[string]any{"room": room})
	h.hub.Publish(roomID, models.EventUserJoined, map[string]any{
		"room_id": roomID.Hex(),
		"user_id": session.UserID.Hex(),
	})
	return nil
}

func (h *SocketHandler) leaveRoom(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}

	h.hub.Unsubscribe(session, roomID)
	h.hub.Publish(roomID, models.EventUserLeft, map[string]any{
		"room_id": roomID.Hex(),
		"user_id": session.UserID.Hex(),
	})
	return nil
}

func (h *SocketHandler) sendMessage(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}
	body, _ := event.Data["body"].(string)

	var replyTo *primitive.ObjectID
	if raw, ok := event.Data["reply_to_id"].(string); ok && raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return models.ErrValidation
		}
		replyTo = &id
	}

	_, err = h.messageUsecase.SendMessage(ctx, roomID, session.UserID, body, replyTo)
	return err
}

func (h *SocketHandler) sendVoice(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}
	url, _ := event.Data["url"].(string)
	duration, _ := event.Data["duration"].(float64)

	_, err = h.messageUsecase.SendVoiceMessage(ctx, roomID, session.UserID, url, duration)
	return err
}

// generateCode runs asynchronously: model selection and generation can take
// tens of seconds and must not block this session's read loop. A disconnect
// is not a cancellation signal; the response is published to whoever is
// still subscribed.
func (h *SocketHandler) generateCode(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}
	prompt, _ := event.Data["prompt"].(string)

	go func() {
		genCtx := context.WithoutCancel(ctx)
		if _, err := h.aiUsecase.GenerateCode(genCtx, roomID, session.UserID, prompt); err != nil {
			log.Warnw(genCtx, "code generation failed",
				"room_id", roomID.Hex(), "user_id", session.UserID.Hex(), "error", err)
		}
	}()
	return nil
}

func (h *SocketHandler) botCommand(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}
	command, _ := event.Data["command"].(string)
	if command != "stats" {
		return models.ErrValidation
	}

	go func() {
		cmdCtx := context.WithoutCancel(ctx)
		if _, err := h.botUsecase.RepoStats(cmdCtx, roomID, session.UserID); err != nil {
			log.Warnw(cmdCtx, "stats command failed",
				"room_id", roomID.Hex(), "user_id", session.UserID.Hex(), "error", err)
		}
	}()
	return nil
}

func (h *SocketHandler) typing(session *socket.Session, event *models.SocketEvent) error {
	roomID, err := eventRoomID(event)
	if err != nil {
		return err
	}
	isTyping, _ := event.Data["is_typing"].(bool)

	h.hub.Publish(roomID, models.EventUserTyping, map[string]any{
		"room_id":   roomID.Hex(),
		"user_id":   session.UserID.Hex(),
		"is_typing": isTyping,
	})
	return nil
}

func (h *SocketHandler) editMessage(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, messageID, err := eventMessageRef(event)
	if err != nil {
		return err
	}
	body, _ := event.Data["body"].(string)

	_, err = h.messageUsecase.EditMessage(ctx, roomID, messageID, session.UserID, body)
	return err
}

func (h *SocketHandler) deleteMessage(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, messageID, err := eventMessageRef(event)
	if err != nil {
		return err
	}
	return h.messageUsecase.DeleteMessage(ctx, roomID, messageID, session.UserID)
}

func (h *SocketHandler) toggleReaction(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, messageID, err := eventMessageRef(event)
	if err != nil {
		return err
	}
	emoji, _ := event.Data["emoji"].(string)

	_, err = h.messageUsecase.ToggleReaction(ctx, roomID, messageID, session.UserID, emoji)
	return err
}

func (h *SocketHandler) togglePin(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, messageID, err := eventMessageRef(event)
	if err != nil {
		return err
	}
	_, err = h.messageUsecase.TogglePin(ctx, roomID, messageID, session.UserID)
	return err
}

func (h *SocketHandler) toggleStar(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, messageID, err := eventMessageRef(event)
	if err != nil {
		return err
	}
	_, err = h.messageUsecase.ToggleStar(ctx, roomID, messageID, session.UserID)
	return err
}

func (h *SocketHandler) markRead(ctx context.Context, session *socket.Session, event *models.SocketEvent) error {
	roomID, messageID, err := eventMessageRef(event)
	if err != nil {
		return err
	}
	return h.messageUsecase.MarkRead(ctx, roomID, messageID, session.UserID)
}

func eventRoomID(event *models.SocketEvent) (primitive.ObjectID, error) {
	raw, _ := event.Data["room_id"].(string)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, models.ErrValidation
	}
	return id, nil
}

func eventMessageRef(event *models.SocketEvent) (primitive.ObjectID, primitive.ObjectID, error) {
	roomID, err := eventRoomID(event)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	raw, _ := event.Data["message_id"].(string)
	messageID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, models.ErrValidation
	}
	return roomID, messageID, nil
}
