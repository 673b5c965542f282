package handler

import (
	"errors"
	"net/http"

	"bookrecorder/internal/httputil"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/service"
	"bookrecorder/internal/transport/http/middleware"
)

type MessageHandler struct {
	messageService *service.MessageService
	log            *logger.Logger
}

func NewMessageHandler(messageService *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log.With("handler", "message"),
	}
}

// Send handles POST /messages/{id}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	peerID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, peerID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotMessageSelf), errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		default:
			h.log.Error("send message failed", "sender_id", userID, "receiver_id", peerID, "error", err)
			httputil.WriteInternalError(w, "Failed to send message")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// Conversation handles GET /messages/{id}
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	peerID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	resp, err := h.messageService.Conversation(r.Context(), userID, peerID, queryCursor(r), limit)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCursor) {
			httputil.WriteBadRequest(w, "Invalid cursor parameter")
			return
		}
		h.log.Error("load conversation failed", "user_id", userID, "peer_id", peerID, "error", err)
		httputil.WriteInternalError(w, "Failed to load conversation")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Inbox handles GET /messages
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	conversations, err := h.messageService.Inbox(r.Context(), userID)
	if err != nil {
		h.log.Error("load inbox failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to load inbox")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": conversations,
	})
}

// PostChat handles POST /chat
func (h *MessageHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.SendMessageRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := h.messageService.PostChat(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, model.ErrContentRequired) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.log.Error("post chat failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to post message")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// Chat handles GET /chat
func (h *MessageHandler) Chat(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	resp, err := h.messageService.Chat(r.Context(), queryCursor(r), limit)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCursor) {
			httputil.WriteBadRequest(w, "Invalid cursor parameter")
			return
		}
		h.log.Error("load chat failed", "error", err)
		httputil.WriteInternalError(w, "Failed to load chat")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
