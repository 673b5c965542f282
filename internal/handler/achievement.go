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

type AchievementHandler struct {
	achievementService *service.AchievementService
	leaderboardService *service.LeaderboardService
	log                *logger.Logger
}

func NewAchievementHandler(achievementService *service.AchievementService, leaderboardService *service.LeaderboardService, log *logger.Logger) *AchievementHandler {
	return &AchievementHandler{
		achievementService: achievementService,
		leaderboardService: leaderboardService,
		log:                log.With("handler", "achievement"),
	}
}

// Catalog handles GET /achievements
// Every achievement, marked with the caller's unlock status.
func (h *AchievementHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	statuses, err := h.achievementService.Catalog(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err, userID, "load achievements")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": statuses,
	})
}

// Grants handles GET /users/{id}/achievements
func (h *AchievementHandler) Grants(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}

	grants, err := h.achievementService.Grants(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err, userID, "load grants")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": grants,
	})
}

// Dashboard handles GET /dashboard
func (h *AchievementHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	dashboard, err := h.achievementService.Dashboard(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err, userID, "load dashboard")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, dashboard)
}

// Check handles POST /achievements/check
// Re-runs the unlock scan; unlocks already granted are never repeated.
func (h *AchievementHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	outcome, err := h.achievementService.Check(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err, userID, "check achievements")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// Leaderboard handles GET /leaderboard
func (h *AchievementHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboardService.Top(r.Context())
	if err != nil {
		h.log.Error("load leaderboard failed", "error", err)
		httputil.WriteInternalError(w, "Failed to load leaderboard")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
	})
}

// Rankings handles GET /rankings
func (h *AchievementHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.leaderboardService.Rankings(r.Context())
	if err != nil {
		h.log.Error("load rankings failed", "error", err)
		httputil.WriteInternalError(w, "Failed to load rankings")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rankings)
}

func (h *AchievementHandler) writeUserError(w http.ResponseWriter, err error, userID int64, action string) {
	if errors.Is(err, model.ErrUserNotFound) {
		httputil.WriteNotFound(w, "User not found")
		return
	}
	h.log.Error(action+" failed", "user_id", userID, "error", err)
	httputil.WriteInternalError(w, "Failed to "+action)
}
