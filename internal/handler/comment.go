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

type CommentHandler struct {
	commentService *service.CommentService
	log            *logger.Logger
}

func NewCommentHandler(commentService *service.CommentService, log *logger.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		log:            log.With("handler", "comment"),
	}
}

// Create handles POST /books/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	bookID, ok := pathID(w, r, "id", "book ID")
	if !ok {
		return
	}

	var req model.CreateCommentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.commentService.Create(r.Context(), bookID, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBookNotFound):
			httputil.WriteNotFound(w, "Book not found")
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Comment content is required")
		default:
			h.log.Error("create comment failed", "user_id", userID, "book_id", bookID, "error", err)
			httputil.WriteInternalError(w, "Failed to create comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

// Delete handles DELETE /comments/{commentId}
// Deletes a comment (only owner can delete).
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	commentID, ok := pathID(w, r, "commentId", "comment ID")
	if !ok {
		return
	}

	if err := h.commentService.Delete(r.Context(), commentID, userID); err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotCommentOwner):
			httputil.WriteForbidden(w, "You can only delete your own comments")
		default:
			h.log.Error("delete comment failed", "user_id", userID, "comment_id", commentID, "error", err)
			httputil.WriteInternalError(w, "Failed to delete comment")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /books/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id", "book ID")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	resp, err := h.commentService.List(r.Context(), bookID, queryCursor(r), limit)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidCursor):
			httputil.WriteBadRequest(w, "Invalid cursor parameter")
		case errors.Is(err, model.ErrBookNotFound):
			httputil.WriteNotFound(w, "Book not found")
		default:
			h.log.Error("list comments failed", "book_id", bookID, "error", err)
			httputil.WriteInternalError(w, "Failed to list comments")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
