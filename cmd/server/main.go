package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-talk/internal/chat"
	"go-talk/internal/config"
	"go-talk/internal/db"
	"go-talk/internal/httpx"
	"go-talk/internal/logger"
	myMiddleware "go-talk/internal/middleware"
	"go-talk/internal/storage"
	"go-talk/internal/upload"
	"go-talk/internal/user"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config & Flags
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := flag.String("addr", cfg.Addr, "http service address")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if err := db.Migrate(ctx, cfg.DSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	pool, err := db.Connect(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	log.Info("connected to postgres, schema up to date")

	// 3. Upload session store (Redis, or memory for single-node dev runs)
	var sessions upload.Store
	if cfg.UploadStore == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		sessions = upload.NewRedisStore(redisClient)
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		sessions = upload.NewMemoryStore()
		log.Warn("upload sessions kept in memory")
	}

	// 4. Object storage
	objects, err := storage.NewS3(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return err
	}
	log.Info("object storage ready", zap.String("endpoint", cfg.S3Endpoint), zap.String("bucket", cfg.S3Bucket))

	expose := cfg.Development()

	// 5. User feature
	userRepo := user.NewRepository(pool)
	userService := user.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	userHandler := user.NewHandler(userService, log.Named("user"), expose)

	// 6. Chat feature
	chatRepo := chat.NewRepository(pool)
	registry := chat.NewRegistry()
	presence := chat.NewPresence(registry, userRepo, log.Named("presence"))
	router := chat.NewRouter(registry, chatRepo, chatRepo, log.Named("router"))
	relay := chat.NewRelay(registry, log.Named("relay"))
	hub := chat.NewHub(registry, presence, router, relay, log.Named("hub"), expose)
	groups := chat.NewGroupService(chatRepo, registry)
	chatHandler := chat.NewHandler(ctx, hub, router, groups, chatRepo, log.Named("chat"), cfg.SendBuffer, expose)

	// 7. Upload feature
	coordinator := upload.NewCoordinator(objects, sessions, upload.NewFileRepository(pool), log.Named("upload"), upload.Options{
		DownloadURLTTL: cfg.DownloadURLTTL,
	})
	uploadHandler := upload.NewHandler(coordinator, router, log.Named("upload"), cfg.MaxChunkSize, cfg.MaxFileSize, expose)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 8. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(myMiddleware.Logger(log.Named("http")))
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Post("/api/auth/register", userHandler.Register)
	r.Post("/api/auth/login", userHandler.Login)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok", "online": registry.Count()})
	})

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Get("/search", userHandler.SearchUsers)
			r.Get("/friends", userHandler.Friends)
			r.Post("/friend-request/{userID}", userHandler.SendFriendRequest)
			r.Post("/friend-request/{userID}/accept", userHandler.AcceptFriendRequest)
		})

		r.Route("/api/groups", func(r chi.Router) {
			r.Post("/", chatHandler.CreateGroup)
			r.Get("/", chatHandler.ListGroups)
			r.Get("/{groupID}", chatHandler.GetGroup)
			r.Post("/{groupID}/members", chatHandler.AddMember)
			r.Delete("/{groupID}/members/{userID}", chatHandler.RemoveMember)
		})

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/user/{userID}", chatHandler.DirectHistory)
			r.Get("/group/{groupID}", chatHandler.GroupHistory)
			r.Put("/{messageID}/read", chatHandler.MarkRead)
		})

		r.Route("/api/files", func(r chi.Router) {
			r.Post("/upload/init", uploadHandler.Init)
			r.Post("/upload/chunk", uploadHandler.Chunk)
			r.Post("/upload/complete", uploadHandler.Complete)
			r.Post("/upload/abort", uploadHandler.Abort)
			r.Get("/{fileID}/download", uploadHandler.Download)
		})

		// WebSocket (Real-time)
		r.Get("/ws", chatHandler.ServeWs)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
