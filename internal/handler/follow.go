package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bookrecorder/internal/httputil"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/service"
	"bookrecorder/internal/transport/http/middleware"
)

type FollowHandler struct {
	followService *service.FollowService
	log           *logger.Logger
}

func NewFollowHandler(followService *service.FollowService, log *logger.Logger) *FollowHandler {
	return &FollowHandler{
		followService: followService,
		log:           log.With("handler", "follow"),
	}
}

// Toggle handles POST /users/{id}/follow
// Follows the user, or unfollows if the caller already follows them.
func (h *FollowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	followeeID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}

	result, err := h.followService.Toggle(r.Context(), followerID, followeeID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrAlreadyFollowing):
			httputil.WriteConflict(w, err.Error())
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, err.Error())
		default:
			h.log.Error("follow toggle failed", "follower_id", followerID, "followee_id", followeeID, "error", err)
			httputil.WriteInternalError(w, "Failed to update follow")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetFollowers handles GET /users/{id}/followers
func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.followService.GetFollowers, "followers")
}

// GetFollowing handles GET /users/{id}/following
func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.followService.GetFollowing, "following")
}

type followLister func(ctx context.Context, userID int64, cursor *time.Time, limit int, viewerID *int64) (*model.FollowListResponse, error)

func (h *FollowHandler) list(w http.ResponseWriter, r *http.Request, fetch followLister, what string) {
	userID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}
	cursor, ok := queryTimeCursor(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	result, err := fetch(r.Context(), userID, cursor, limit, middleware.GetOptionalUserID(r.Context()))
	if err != nil {
		h.log.Error("list "+what+" failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to fetch "+what)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
