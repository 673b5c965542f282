package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bookrecorder/internal/httputil"
)

// pathID parses a positive int64 URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteBadRequest(w, "Invalid "+label)
		return 0, false
	}
	return id, true
}

// queryLimit reads ?limit=. Zero means the service default; the service clamps the rest.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(l)
	if err != nil || limit <= 0 {
		httputil.WriteBadRequest(w, "Invalid limit parameter")
		return 0, false
	}
	return limit, true
}

// queryCursor reads ?cursor= as an optional opaque string.
func queryCursor(r *http.Request) *string {
	if c := r.URL.Query().Get("cursor"); c != "" {
		return &c
	}
	return nil
}

// queryTimeCursor reads ?cursor= as an RFC3339 timestamp.
func queryTimeCursor(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	c := r.URL.Query().Get("cursor")
	if c == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, c)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid cursor parameter")
		return nil, false
	}
	return &t, true
}
