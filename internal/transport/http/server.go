package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"bookrecorder/internal/cache"
	"bookrecorder/internal/config"
	"bookrecorder/internal/database"
	"bookrecorder/internal/gamification"
	"bookrecorder/internal/handler"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/queue"
	"bookrecorder/internal/redis"
	"bookrecorder/internal/repository"
	"bookrecorder/internal/service"
	"bookrecorder/internal/worker"
)

// streamMaxLen caps the activity stream; consumers ack long before this.
const streamMaxLen = 100000

// Run wires every dependency, serves HTTP and shuts down on SIGINT/SIGTERM.
func Run() error {
	// 1. Load Configuration
	cfg, note, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()
	log.Info("config loaded", "env", cfg.AppEnv, "note", note)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database and apply migrations
	db, err := database.Connect(ctx, cfg.DSN(), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.DSN(), log); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 4. Repositories, caches and the activity stream
	userRepo := repository.NewUserRepository(db)
	bookRepo := repository.NewBookRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	followRepo := repository.NewFollowRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	gamificationStore := repository.NewGamificationStore(db, log)

	feedCache := cache.NewFeedCache(redisClient.Client, log)
	leaderboardCache := cache.NewLeaderboardCache(redisClient.Client, log)
	publisher := queue.NewPublisher(redisClient.Client, streamMaxLen, log)
	consumer := queue.NewConsumer(redisClient.Client, log)

	// 5. Gamification engine
	catalog, err := gamification.SeedCatalog(ctx, gamificationStore, gamification.Definitions, log)
	if err != nil {
		return fmt.Errorf("failed to seed achievements: %w", err)
	}
	ledger := gamification.NewLedger(gamificationStore, log)
	evaluator := gamification.NewEvaluator(gamificationStore, ledger, catalog, log)
	progression := service.NewProgression(gamificationStore, ledger, evaluator, publisher, log)

	// 6. Services
	var storage service.ObjectStorage
	if cfg.R2Enabled() {
		r2, err := service.NewR2Storage(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to init object storage: %w", err)
		}
		storage = r2
	} else {
		log.Warn("R2 not configured, cover uploads disabled")
	}

	userService := service.NewUserService(userRepo, followRepo, log)
	authService := service.NewAuthService(cfg)
	mediaService := service.NewMediaService(storage, bookRepo, log)
	bookService := service.NewBookService(db, bookRepo, noteRepo, commentRepo, progression, publisher, mediaService, cfg.BookAddXP, log)
	noteService := service.NewNoteService(db, noteRepo, bookRepo, progression, log)
	commentService := service.NewCommentService(db, commentRepo, bookRepo, userRepo, progression, publisher, cfg.CommentXP, log)
	followService := service.NewFollowService(followRepo, userRepo, db, publisher, progression, log)
	feedService := service.NewFeedService(feedCache, bookRepo, followRepo, log)
	notifService := service.NewNotificationService(notifRepo, log)
	messageService := service.NewMessageService(messageRepo, userRepo, log)
	achievementService := service.NewAchievementService(gamificationStore, catalog, bookRepo, progression, log)
	leaderboardService := service.NewLeaderboardService(leaderboardCache, userRepo, cfg.LeaderboardSize, log)

	if err := leaderboardService.Warm(ctx); err != nil {
		log.Warn("leaderboard warm failed", "error", err)
	}

	// 7. Activity workers
	eventHandler := worker.NewHandler(feedCache, leaderboardCache, followRepo, bookRepo, log)
	eventHandler.SetNotificationCreator(notifService)

	managerCfg := worker.DefaultManagerConfig()
	managerCfg.WorkerCount = cfg.WorkerCount
	manager := worker.NewManager(consumer, eventHandler, managerCfg, log)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 8. Setup Server
	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(userService, authService, cfg, log),
		UserHandler:         handler.NewUserHandler(userService, log),
		FollowHandler:       handler.NewFollowHandler(followService, log),
		FeedHandler:         handler.NewFeedHandler(feedService, log),
		BookHandler:         handler.NewBookHandler(bookService, noteService, log),
		CommentHandler:      handler.NewCommentHandler(commentService, log),
		MediaHandler:        handler.NewMediaHandler(mediaService, log),
		NotificationHandler: handler.NewNotificationHandler(notifService, log),
		MessageHandler:      handler.NewMessageHandler(messageService, log),
		AchievementHandler:  handler.NewAchievementHandler(achievementService, leaderboardService, log),
		JWTSecret:           cfg.JWTSecret,
		Log:                 log,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
