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

type BookHandler struct {
	bookService *service.BookService
	noteService *service.NoteService
	log         *logger.Logger
}

func NewBookHandler(bookService *service.BookService, noteService *service.NoteService, log *logger.Logger) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		noteService: noteService,
		log:         log.With("handler", "book"),
	}
}

// Create handles POST /books
// Logging a book the reader already has only attaches the note: 200 instead of 201.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateBookRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.bookService.AddBook(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidBook) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.log.Error("add book failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to add book")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, result)
}

// GetByID handles GET /books/{id}
func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id", "book ID")
	if !ok {
		return
	}

	book, err := h.bookService.GetBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, model.ErrBookNotFound) {
			httputil.WriteNotFound(w, "Book not found")
			return
		}
		h.log.Error("get book failed", "book_id", bookID, "error", err)
		httputil.WriteInternalError(w, "Failed to get book")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, book)
}

// GetUserBooks handles GET /users/{id}/books
func (h *BookHandler) GetUserBooks(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	resp, err := h.bookService.ListByUser(r.Context(), userID, queryCursor(r), limit)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCursor) {
			httputil.WriteBadRequest(w, "Invalid cursor parameter")
			return
		}
		h.log.Error("list books failed", "user_id", userID, "error", err)
		httputil.WriteInternalError(w, "Failed to list books")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /books/{id}
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	bookID, ok := pathID(w, r, "id", "book ID")
	if !ok {
		return
	}

	outcome, err := h.bookService.DeleteBook(r.Context(), bookID, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBookNotFound):
			httputil.WriteNotFound(w, "Book not found")
		case errors.Is(err, model.ErrNotBookOwner):
			httputil.WriteForbidden(w, "You can only delete your own books")
		default:
			h.log.Error("delete book failed", "user_id", userID, "book_id", bookID, "error", err)
			httputil.WriteInternalError(w, "Failed to delete book")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// AddNote handles POST /books/{id}/notes
func (h *BookHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	bookID, ok := pathID(w, r, "id", "book ID")
	if !ok {
		return
	}

	var req model.CreateNoteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.noteService.AddNote(r.Context(), bookID, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Note content is required")
		case errors.Is(err, model.ErrBookNotFound):
			httputil.WriteNotFound(w, "Book not found")
		case errors.Is(err, model.ErrNotBookOwner):
			httputil.WriteForbidden(w, "You can only add notes to your own books")
		default:
			h.log.Error("add note failed", "user_id", userID, "book_id", bookID, "error", err)
			httputil.WriteInternalError(w, "Failed to add note")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

// Library handles GET /library
func (h *BookHandler) Library(w http.ResponseWriter, r *http.Request) {
	entries, err := h.bookService.Library(r.Context())
	if err != nil {
		h.log.Error("library failed", "error", err)
		httputil.WriteInternalError(w, "Failed to load library")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"books": entries,
	})
}
