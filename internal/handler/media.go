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

// formOverhead is the multipart allowance on top of the image itself.
const formOverhead = 1 << 20

type MediaHandler struct {
	mediaService *service.MediaService
	log          *logger.Logger
}

func NewMediaHandler(mediaService *service.MediaService, log *logger.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		log:          log.With("handler", "media"),
	}
}

// UploadCover handles PUT /books/{id}/cover (multipart field "cover").
func (h *MediaHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	bookID, ok := pathID(w, r, "id", "book ID")
	if !ok {
		return
	}

	maxFormSize := int64(model.MaxCoverSizeBytes) + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
		case errors.As(err, &tooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Cover exceeds 5MB limit")
		default:
			httputil.WriteBadRequest(w, "Invalid form data")
		}
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		httputil.WriteBadRequest(w, "Cover file is required")
		return
	}
	defer file.Close()

	result, err := h.mediaService.UploadCover(r.Context(), bookID, userID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrStorageDisabled):
			httputil.WriteUnavailable(w, model.CodeStorageDisabled, "Cover uploads are not configured")
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Cover exceeds 5MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		case errors.Is(err, model.ErrBookNotFound):
			httputil.WriteNotFound(w, "Book not found")
		case errors.Is(err, model.ErrNotBookOwner):
			httputil.WriteForbidden(w, "You can only change covers of your own books")
		default:
			h.log.Error("cover upload failed", "user_id", userID, "book_id", bookID, "error", err)
			httputil.WriteInternalError(w, "Failed to upload cover")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
