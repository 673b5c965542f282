package handler

import (
	"errors"
	"net/http"
	"strings"

	"bookrecorder/internal/httputil"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/service"
	"bookrecorder/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
	log         *logger.Logger
}

func NewUserHandler(userService *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log.With("handler", "user"),
	}
}

// GetProfile handles GET /users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), userID, middleware.GetOptionalUserID(r.Context()))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		h.log.Error("get profile failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to get profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// GetProgress handles GET /users/{id}/progress
func (h *UserHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}

	progress, err := h.userService.Progress(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		h.log.Error("get progress failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to get progress")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, progress)
}

// Search handles GET /users/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httputil.WriteBadRequest(w, "Query parameter 'q' is required")
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	users, err := h.userService.Search(r.Context(), query, limit, middleware.GetOptionalUserID(r.Context()))
	if err != nil {
		h.log.Error("search failed", "query", query, "error", err)
		httputil.WriteInternalError(w, "Failed to search users")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}
