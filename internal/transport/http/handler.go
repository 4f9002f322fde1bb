package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/i18n"
	"github.com/loft-algerie/messaging/internal/service"
	httpmw "github.com/loft-algerie/messaging/internal/transport/http/middleware"
	"github.com/loft-algerie/messaging/pkg/errs"
	"github.com/loft-algerie/messaging/pkg/httputil"
	"github.com/loft-algerie/messaging/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type ConversationSvc interface {
	Create(ctx context.Context, creatorID string, in service.CreateConversationInput) (*domain.Conversation, bool, error)
	List(ctx context.Context, userID string) ([]domain.Conversation, error)
	Get(ctx context.Context, id, userID string) (*domain.Conversation, error)
}

type ChatSvc interface {
	Send(ctx context.Context, conversationID, senderID, content string, typ domain.MessageType) (*domain.Message, error)
	History(ctx context.Context, conversationID, userID, before string, limit int) (*service.HistoryPage, error)
}

type ReadStateSvc interface {
	UnreadByConversation(ctx context.Context, userID string) (map[string]int, error)
	MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error)
}

type NotificationSvc interface {
	CountUnread(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	Create(ctx context.Context, userIDs []string, in service.NotificationInput) (int64, error)
}

type UserSvc interface {
	Search(ctx context.Context, callerID, q string) ([]domain.UserSummary, error)
}

type Handler struct {
	convSvc   ConversationSvc
	chatSvc   ChatSvc
	readSvc   ReadStateSvc
	notifySvc NotificationSvc
	userSvc   UserSvc

	validate *validator.Validate
}

func NewHandler(convs ConversationSvc, chat ChatSvc, reads ReadStateSvc, notifications NotificationSvc, users UserSvc) *Handler {
	return &Handler{
		convSvc:   convs,
		chatSvc:   chat,
		readSvc:   reads,
		notifySvc: notifications,
		userSvc:   users,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// decode reads a JSON body and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errs.New(errs.ErrInvalidInput, "invalid json")
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return errs.New(errs.ErrInvalidInput, "invalid field: "+ve[0].Field())
		}
		return domain.ErrInvalidInput
	}
	return nil
}

func (h *Handler) pathID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if err := h.validate.Var(id, "required,uuid"); err != nil {
		return "", errs.New(errs.ErrInvalidInput, "invalid id")
	}
	return id, nil
}

// fail maps err to a status and writes the error body. Server errors are logged in
// full and answered with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	loc := i18n.FromContext(ctx)
	status := errs.ToHTTP(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).Error(op, slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal server error", i18n.T(loc, i18n.KeyInternal))
		return
	}

	short := http.StatusText(status)
	var e *errs.Error
	if errors.As(err, &e) {
		short = e.Error()
	}
	httputil.Error(w, status, short, i18n.T(loc, messageKey(err, status)))
}

func messageKey(err error, status int) string {
	switch {
	case errors.Is(err, domain.ErrNotParticipant):
		return i18n.KeyNotParticipant
	case errors.Is(err, domain.ErrForbiddenRecipient):
		return i18n.KeyForbiddenRecipient
	case errors.Is(err, domain.ErrGroupNameRequired):
		return i18n.KeyGroupNameRequired
	case errors.Is(err, domain.ErrNoParticipants):
		return i18n.KeyParticipantsMissing
	case errors.Is(err, domain.ErrEmptyMessage):
		return i18n.KeyEmptyMessage
	case errors.Is(err, domain.ErrMessageTooLong):
		return i18n.KeyMessageTooLong
	}
	switch status {
	case http.StatusUnauthorized:
		return i18n.KeyUnauthorized
	case http.StatusForbidden:
		return i18n.KeyForbidden
	case http.StatusNotFound:
		return i18n.KeyNotFound
	case http.StatusBadRequest:
		return i18n.KeyInvalidInput
	}
	return i18n.KeyInternal
}

// POST /api/conversations, POST /api/conversations/create
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	var req CreateConversationRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "handler.CreateConversation.decode", err)
		return
	}
	typ := domain.ConversationType(req.Type)
	if typ == "" {
		typ = domain.ConversationDirect
	}

	conv, created, err := h.convSvc.Create(r.Context(), userID, service.CreateConversationInput{
		Type:           typ,
		Name:           req.Name,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		h.fail(w, r, "handler.CreateConversation", err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	httputil.JSON(w, status, toConversationItem(conv))
}

// GET /api/conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.convSvc.List(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, "handler.ListConversations", err)
		return
	}
	items := make([]ConversationItem, 0, len(list))
	for i := range list {
		items = append(items, toConversationItem(&list[i]))
	}
	httputil.OK(w, items)
}

// GET /api/conversations/{id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, "handler.GetConversation", err)
		return
	}
	conv, err := h.convSvc.Get(r.Context(), id, httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, "handler.GetConversation", err)
		return
	}
	httputil.OK(w, toConversationItem(conv))
}

// GET /api/conversations/{id}/messages?limit=&before=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, "handler.ListMessages", err)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.fail(w, r, "handler.ListMessages", errs.New(errs.ErrInvalidInput, "invalid limit"))
			return
		}
		limit = n
	}

	page, err := h.chatSvc.History(r.Context(), id, httpmw.UserIDFromCtx(r.Context()), r.URL.Query().Get("before"), limit)
	if err != nil {
		h.fail(w, r, "handler.ListMessages", err)
		return
	}

	resp := MessagesResponse{
		Messages:     make([]MessageItem, 0, len(page.Messages)),
		Conversation: toConversationItem(page.Conversation),
		NextCursor:   page.NextCursor,
	}
	for _, m := range page.Messages {
		resp.Messages = append(resp.Messages, toMessageItem(m))
	}
	httputil.OK(w, resp)
}

// POST /api/conversations/send-message
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "handler.SendMessage.decode", err)
		return
	}
	msg, err := h.chatSvc.Send(r.Context(), req.ConversationID, httpmw.UserIDFromCtx(r.Context()),
		req.Content, domain.MessageType(req.MessageType))
	if err != nil {
		h.fail(w, r, "handler.SendMessage", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, toMessageItem(*msg))
}

// POST /api/conversations/mark-read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "handler.MarkRead.decode", err)
		return
	}
	h.markRead(w, r, req.ConversationID)
}

// POST /api/conversations/{id}/mark-read
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, "handler.MarkConversationRead", err)
		return
	}
	h.markRead(w, r, id)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request, conversationID string) {
	if _, err := h.readSvc.MarkRead(r.Context(), conversationID, httpmw.UserIDFromCtx(r.Context())); err != nil {
		h.fail(w, r, "handler.MarkRead", err)
		return
	}
	httputil.OK(w, SuccessResponse{Success: true})
}

// GET /api/conversations/unread-by-conversation
//
// Failures answer an empty object: the badge is not worth an error page.
func (h *Handler) UnreadByConversation(w http.ResponseWriter, r *http.Request) {
	counts, err := h.readSvc.UnreadByConversation(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		logger.FromContext(r.Context()).Error("handler.UnreadByConversation", slog.Any("err", err))
		counts = map[string]int{}
	}
	httputil.OK(w, counts)
}

// GET /api/notifications/unread-count
func (h *Handler) NotificationsUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifySvc.CountUnread(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, "handler.NotificationsUnreadCount", err)
		return
	}
	httputil.OK(w, CountResponse{Count: n})
}

// GET /api/notifications?limit=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.fail(w, r, "handler.ListNotifications", errs.New(errs.ErrInvalidInput, "invalid limit"))
			return
		}
		limit = n
	}
	list, err := h.notifySvc.List(r.Context(), httpmw.UserIDFromCtx(r.Context()), limit)
	if err != nil {
		h.fail(w, r, "handler.ListNotifications", err)
		return
	}
	items := make([]NotificationItem, 0, len(list))
	for _, n := range list {
		items = append(items, toNotificationItem(n))
	}
	httputil.OK(w, items)
}

// POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, "handler.MarkNotificationRead", err)
		return
	}
	if err := h.notifySvc.MarkRead(r.Context(), id, httpmw.UserIDFromCtx(r.Context())); err != nil {
		h.fail(w, r, "handler.MarkNotificationRead", err)
		return
	}
	httputil.OK(w, SuccessResponse{Success: true})
}

// DELETE /api/notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, "handler.DeleteNotification", err)
		return
	}
	if err := h.notifySvc.Delete(r.Context(), id, httpmw.UserIDFromCtx(r.Context())); err != nil {
		h.fail(w, r, "handler.DeleteNotification", err)
		return
	}
	httputil.OK(w, SuccessResponse{Success: true})
}

// POST /api/notifications/mark-all-read
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if _, err := h.notifySvc.MarkAllRead(r.Context(), httpmw.UserIDFromCtx(r.Context())); err != nil {
		h.fail(w, r, "handler.MarkAllNotificationsRead", err)
		return
	}
	httputil.OK(w, SuccessResponse{Success: true})
}

// POST /api/notifications, service-role key only.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "handler.CreateNotification.decode", err)
		return
	}
	targets := req.UserIDs
	if req.UserID != "" {
		targets = append([]string{req.UserID}, targets...)
	}
	if len(targets) == 0 {
		h.fail(w, r, "handler.CreateNotification", errs.New(errs.ErrInvalidInput, "user_id or user_ids required"))
		return
	}

	n, err := h.notifySvc.Create(r.Context(), targets, service.NotificationInput{
		Title:    req.Title,
		Message:  req.Message,
		Type:     domain.NotificationType(req.Type),
		Link:     req.Link,
		SenderID: req.SenderID,
	})
	if err != nil {
		h.fail(w, r, "handler.CreateNotification", err)
		return
	}

	status := http.StatusCreated
	if n == 0 {
		status = http.StatusAccepted
	}
	httputil.JSON(w, status, CreatedResponse{Created: n})
}

// GET /api/users/search?q=
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.Search(r.Context(), httpmw.UserIDFromCtx(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, "handler.SearchUsers", err)
		return
	}
	items := make([]UserItem, 0, len(users))
	for i := range users {
		items = append(items, *toUserItem(&users[i]))
	}
	httputil.OK(w, items)
}
