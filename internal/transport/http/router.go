package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookrecorder/internal/handler"
	"bookrecorder/internal/httputil"
	"bookrecorder/internal/logger"
	authmw "bookrecorder/internal/transport/http/middleware"
)

// requestTimeout bounds every request except cover uploads, which get their own.
const requestTimeout = 15 * time.Second

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	FollowHandler       *handler.FollowHandler
	FeedHandler         *handler.FeedHandler
	BookHandler         *handler.BookHandler
	CommentHandler      *handler.CommentHandler
	MediaHandler        *handler.MediaHandler
	NotificationHandler *handler.NotificationHandler
	MessageHandler      *handler.MessageHandler
	AchievementHandler  *handler.AchievementHandler
	JWTSecret           string
	Log                 *logger.Logger
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	optional := authmw.OptionalAuthMiddleware(cfg.JWTSecret)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// Public routes - no authentication required
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/logout", cfg.AuthHandler.Logout)
		})

		// Public user endpoints with optional authentication
		r.Route("/users", func(r chi.Router) {
			r.With(optional).Get("/search", cfg.UserHandler.Search)
			r.With(optional).Get("/{id}", cfg.UserHandler.GetProfile)
			r.Get("/{id}/progress", cfg.UserHandler.GetProgress)
			r.Get("/{id}/achievements", cfg.AchievementHandler.Grants)
			r.With(optional).Get("/{id}/followers", cfg.FollowHandler.GetFollowers)
			r.With(optional).Get("/{id}/following", cfg.FollowHandler.GetFollowing)
			r.Get("/{id}/books", cfg.BookHandler.GetUserBooks)
		})

		r.Get("/books/{id}", cfg.BookHandler.GetByID)
		r.Get("/books/{id}/comments", cfg.CommentHandler.List)
		r.Get("/library", cfg.BookHandler.Library)
		r.Get("/leaderboard", cfg.AchievementHandler.Leaderboard)
		r.Get("/rankings", cfg.AchievementHandler.Rankings)
		r.Get("/chat", cfg.MessageHandler.Chat)

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

			r.Get("/me", cfg.AuthHandler.Me)
			r.Get("/dashboard", cfg.AchievementHandler.Dashboard)

			r.Post("/users/{id}/follow", cfg.FollowHandler.Toggle)

			r.Get("/feed", cfg.FeedHandler.GetFeed)

			r.Post("/books", cfg.BookHandler.Create)
			r.Delete("/books/{id}", cfg.BookHandler.Delete)
			r.Post("/books/{id}/notes", cfg.BookHandler.AddNote)
			r.Post("/books/{id}/comments", cfg.CommentHandler.Create)
			r.Delete("/comments/{commentId}", cfg.CommentHandler.Delete)

			r.Get("/achievements", cfg.AchievementHandler.Catalog)
			r.Post("/achievements/check", cfg.AchievementHandler.Check)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", cfg.NotificationHandler.List)
				r.Get("/unread-count", cfg.NotificationHandler.GetUnreadCount)
				r.Patch("/read", cfg.NotificationHandler.MarkRead)
				r.Patch("/read-all", cfg.NotificationHandler.MarkAllRead)
			})

			r.Get("/messages", cfg.MessageHandler.Inbox)
			r.Get("/messages/{id}", cfg.MessageHandler.Conversation)
			r.Post("/messages/{id}", cfg.MessageHandler.Send)
			r.Post("/chat", cfg.MessageHandler.PostChat)
		})
	})

	// Cover uploads resize images and talk to object storage.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(time.Minute))
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))
		r.Put("/books/{id}/cover", cfg.MediaHandler.UploadCover)
	})

	return r
}
