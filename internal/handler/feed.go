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

type FeedHandler struct {
	feedService *service.FeedService
	log         *logger.Logger
}

func NewFeedHandler(feedService *service.FeedService, log *logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		log:         log.With("handler", "feed"),
	}
}

// GetFeed handles GET /feed
// Returns the books logged by the reader and the readers they follow, newest first.
//
// Query params:
//   - cursor: optional, compound cursor for pagination (format: "id:timestamp")
//   - limit: optional, number of books per page
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	feed, err := h.feedService.GetFeed(r.Context(), userID, queryCursor(r), limit)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCursor) {
			httputil.WriteBadRequest(w, "Invalid cursor parameter")
			return
		}
		h.log.Error("get feed failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to get feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}
