package server

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	pkgmdw "github.com/SnippyKid/OmegaChat-sub000/internal/server/middleware"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

const sessionTokenTTL = 7 * 24 * time.Hour

type Controller interface {
	Health(c echo.Context) error
	Login(c echo.Context) error

	CreateRoom(c echo.Context) error
	ListRooms(c echo.Context) error
	GetRoom(c echo.Context) error
	DeleteRoom(c echo.Context) error
	JoinRoom(c echo.Context) error
	LeaveRoom(c echo.Context) error
	InviteCode(c echo.Context) error
	JoinByInviteCode(c echo.Context) error

	ListMessages(c echo.Context) error
	SendMessage(c echo.Context) error
	EditMessage(c echo.Context) error
	DeleteMessage(c echo.Context) error
	ToggleReaction(c echo.Context) error
	ToggleStar(c echo.Context) error
	TogglePin(c echo.Context) error
	MarkRead(c echo.Context) error
	ForwardMessage(c echo.Context) error
	SearchMessages(c echo.Context) error
	UploadAttachment(c echo.Context) error

	GithubWebhook(c echo.Context) error
}

type controller struct {
	authUsecase    usecase.AuthUsecase
	roomUsecase    usecase.RoomUsecase
	messageUsecase usecase.MessageUsecase
	botUsecase     usecase.BotUsecase
	uploadConf     config.UploadConfig
}

func NewController(
	authUsecase usecase.AuthUsecase,
	roomUsecase usecase.RoomUsecase,
	messageUsecase usecase.MessageUsecase,
	botUsecase usecase.BotUsecase,
	conf *config.Config,
) Controller {
	return &controller{
		authUsecase:    authUsecase,
		roomUsecase:    roomUsecase,
		messageUsecase: messageUsecase,
		botUsecase:     botUsecase,
		uploadConf:     conf.Upload,
	}
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "omegachat",
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
}

func (h *controller) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	user, token, err := h.authUsecase.Login(ctx, req.Username, sessionTokenTTL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"token": token, "user": user})
}

type createRoomRequest struct {
	Name         string `json:"name" validate:"required"`
	RepoFullName string `json:"repo_full_name"`
}

func (h *controller) CreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := pkgmdw.CurrentUser(c)
	room, err := h.roomUsecase.CreateRoom(c.Request().Context(), user.ID, req.Name, req.RepoFullName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, room)
}

func (h *controller) ListRooms(c echo.Context) error {
	user := pkgmdw.CurrentUser(c)
	rooms, err := h.roomUsecase.ListRooms(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rooms)
}

func (h *controller) GetRoom(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	room, err := h.roomUsecase.GetRoom(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

func (h *controller) DeleteRoom(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	if err := h.roomUsecase.DeleteRoom(c.Request().Context(), roomID, user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *controller) JoinRoom(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	room, err := h.roomUsecase.JoinRoom(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

func (h *controller) LeaveRoom(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	if err := h.roomUsecase.LeaveRoom(c.Request().Context(), roomID, user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *controller) InviteCode(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	code, err := h.roomUsecase.InviteCode(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"invite_code": code})
}

type joinByCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *controller) JoinByInviteCode(c echo.Context) error {
	var req joinByCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := pkgmdw.CurrentUser(c)
	room, err := h.roomUsecase.JoinByInviteCode(c.Request().Context(), req.Code, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

func (h *controller) ListMessages(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)

	limit := usecase.DefaultMessageLimit
	if raw := c.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	skip, _ := strconv.Atoi(c.QueryParam("skip"))

	messages, err := h.roomUsecase.ListMessages(c.Request().Context(), roomID, user.ID, limit, skip)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

type sendMessageRequest struct {
	Body      string  `json:"body" validate:"required"`
	ReplyToID *string `json:"reply_to_id"`
}

func (h *controller) SendMessage(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var replyTo *primitive.ObjectID
	if req.ReplyToID != nil {
		id, err := primitive.ObjectIDFromHex(*req.ReplyToID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid reply_to_id")
		}
		replyTo = &id
	}

	user := pkgmdw.CurrentUser(c)
	msg, err := h.messageUsecase.SendMessage(c.Request().Context(), roomID, user.ID, req.Body, replyTo)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

type editMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

func (h *controller) EditMessage(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := pkgmdw.CurrentUser(c)
	msg, err := h.messageUsecase.EditMessage(c.Request().Context(), roomID, messageID, user.ID, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *controller) DeleteMessage(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	if err := h.messageUsecase.DeleteMessage(c.Request().Context(), roomID, messageID, user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

func (h *controller) ToggleReaction(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := pkgmdw.CurrentUser(c)
	msg, err := h.messageUsecase.ToggleReaction(c.Request().Context(), roomID, messageID, user.ID, req.Emoji)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *controller) ToggleStar(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	starred, err := h.messageUsecase.ToggleStar(c.Request().Context(), roomID, messageID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"starred": starred})
}

func (h *controller) TogglePin(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	pinned, err := h.messageUsecase.TogglePin(c.Request().Context(), roomID, messageID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"pinned": pinned})
}

func (h *controller) MarkRead(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	if err := h.messageUsecase.MarkRead(c.Request().Context(), roomID, messageID, user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type forwardRequest struct {
	TargetRoomID string `json:"target_room_id" validate:"required"`
}

func (h *controller) ForwardMessage(c echo.Context) error {
	roomID, messageID, err := messagePath(c)
	if err != nil {
		return err
	}
	var req forwardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	targetID, err := primitive.ObjectIDFromHex(req.TargetRoomID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid target_room_id")
	}

	user := pkgmdw.CurrentUser(c)
	msg, err := h.messageUsecase.ForwardMessage(c.Request().Context(), roomID, messageID, targetID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *controller) SearchMessages(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	user := pkgmdw.CurrentUser(c)
	messages, err := h.messageUsecase.SearchMessages(c.Request().Context(), roomID, user.ID, c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

// UploadAttachment validates a multipart upload against the size cap and the
// extension allow-list, then records it as a file message. Storage itself is
// delegated to the upload collaborator; only the URL is kept.
func (h *controller) UploadAttachment(c echo.Context) error {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	if file.Size > h.uploadConf.MaxSizeBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !h.extensionAllowed(ext) {
		return echo.NewHTTPError(http.StatusBadRequest, "file type not allowed")
	}

	mimeType := file.Header.Get("Content-Type")
	att := models.Attachment{
		Kind:     attachmentKind(mimeType),
		URL:      h.uploadConf.BaseURL + "/" + uuid.NewString() + ext,
		Filename: file.Filename,
		Size:     file.Size,
		MimeType: mimeType,
	}

	user := pkgmdw.CurrentUser(c)
	msg, err := h.messageUsecase.SendFileMessage(c.Request().Context(), roomID, user.ID, att)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *controller) extensionAllowed(ext string) bool {
	for _, allowed := range h.uploadConf.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func attachmentKind(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return "image"
	}
	return "file"
}

type githubWebhookPayload struct {
	Action     string `json:"action"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Issue struct {
		Title string `json:"title"`
	} `json:"issue"`
	PullRequest struct {
		Title string `json:"title"`
	} `json:"pull_request"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// GithubWebhook is the only unauthenticated intake. It answers 400 on a
// missing event header or repository name and 200 with the notified-room
// count otherwise.
func (h *controller) GithubWebhook(c echo.Context) error {
	event := c.Request().Header.Get("X-GitHub-Event")
	if event == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing X-GitHub-Event header")
	}

	var payload githubWebhookPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if payload.Repository.FullName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing repository.full_name")
	}

	title := payload.Issue.Title
	if title == "" {
		title = payload.PullRequest.Title
	}

	count, err := h.botUsecase.HandleRepoWebhook(c.Request().Context(), usecase.RepoWebhook{
		Event:        event,
		Action:       payload.Action,
		Title:        title,
		SenderLogin:  payload.Sender.Login,
		RepoFullName: payload.Repository.FullName,
	})
	if err != nil {
		return err
	}

	if count == 0 {
		return c.JSON(http.StatusOK, map[string]any{"message": "no linked rooms", "notified": 0})
	}
	return c.JSON(http.StatusOK, map[string]any{"notified": count})
}

func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func messagePath(c echo.Context) (primitive.ObjectID, primitive.ObjectID, error) {
	roomID, err := objectIDParam(c, "id")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	messageID, err := objectIDParam(c, "messageId")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return roomID, messageID, nil
}
