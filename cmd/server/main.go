package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"thientam/internal/audio"
	"thientam/internal/auth"
	"thientam/internal/book"
	"thientam/internal/bookcategory"
	"thientam/internal/chat"
	"thientam/internal/config"
	"thientam/internal/httpx"
	"thientam/internal/logger"
	"thientam/internal/media"
	"thientam/internal/ratelimit"
	"thientam/internal/reading"
	"thientam/internal/topic"
	"thientam/internal/tts"
	"thientam/internal/user"
	"thientam/internal/websocket"
	"thientam/pkg/models"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil // --help
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn("close storage", "err", err)
		}
	}()

	// Redis: rate limit + thu hồi token dùng chung; không có thì dùng bộ nhớ
	var (
		revoker     auth.Revoker = auth.NewMemoryRevoker()
		globalLimit *ratelimit.FixedWindow
		authLimit   *ratelimit.FixedWindow
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		revoker = auth.NewRedisRevoker(redisClient)
		if globalLimit, err = ratelimit.NewFixedWindow(redisClient, "thientam:rl:global", cfg.RateGlobal, cfg.RateWindow); err != nil {
			return err
		}
		if authLimit, err = ratelimit.NewFixedWindow(redisClient, "thientam:rl:auth", cfg.RateAuth, cfg.RateWindow); err != nil {
			return err
		}
		log.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		log.Warn("REDIS_ADDR not set: rate limiting disabled, token revocation is per-process")
	}

	files, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}
	if files == nil {
		log.Warn("media backend not configured: uploads answer 503")
	}

	hub := websocket.NewHub(log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	issuer := &auth.Issuer{
		AccessSecret:  []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AdminTTL:      cfg.AdminAccessTTL,
		UserTTL:       cfg.UserAccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}
	speech := tts.NewClient(cfg.ElevenLabsKey)
	if !speech.Configured() {
		log.Warn("ELEVENLABS_API_KEY not set: text-to-speech disabled")
	}
	gemini := chat.NewGeminiClient(cfg.GeminiKey, log)
	if !gemini.Configured() {
		log.Warn("GEMINI_API_KEY not set: chat disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(httpx.RequestContext(log, cfg.IsProduction()), httpx.Recovery())
	r.Use(corsMiddleware(cfg.CORSOrigins()))
	r.Use(ratelimit.Middleware(globalLimit, "Quá nhiều yêu cầu, vui lòng thử lại sau"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"version": config.GetVersion(),
			"db":      cfg.DBDriver,
			"ws":      hub.Clients(),
		})
	})

	guard := []gin.HandlerFunc{auth.RequireJWT(issuer.AccessSecret, revoker), auth.RequireRoles(models.RoleAdmin)}
	authRate := ratelimit.Middleware(authLimit, "Quá nhiều lần đăng nhập, vui lòng thử lại sau")

	readings := reading.NewHandler(st.readings, hub)
	topics := topic.NewHandler(st.topics, st.readings)
	readings.RegisterPublic(r.Group("/readings"))
	topics.RegisterPublic(r.Group("/topics"))

	admin := r.Group("/admin", guard...)
	readings.RegisterAdmin(admin)
	topics.RegisterAdmin(admin)
	user.NewAdminHandler(st.users).Register(admin)
	admin.POST("/notify", websocket.HandleNotify(hub))

	user.NewAuthHandler(st.users, issuer, revoker).Register(r.Group("/auth", authRate))
	user.NewAccountHandler(st.users, issuer, revoker).Register(r.Group("/user-auth", authRate))

	book.NewHandler(st.books, files, hub).Register(r.Group("/books"), guard...)
	audio.NewHandler(st.audios, files, hub).Register(r.Group("/audio"), guard...)
	bookcategory.NewHandler(st.categories, st.books).Register(r.Group("/book-categories"), guard...)

	tts.NewHandler(speech).Register(r.Group("/tts"))
	chat.NewHandler(gemini).Register(r.Group("/chat"))
	r.GET("/ws", websocket.HandleWebSocket(hub, websocket.Upgrader(cfg.CORSOrigins())))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.Port, "env", cfg.Env, "version", config.GetVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// openMedia returns nil when no backend is configured.
func openMedia(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.MediaBackend {
	case "cloudinary":
		s, err := media.NewCloudinaryStore(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret)
		if err != nil {
			return nil, fmt.Errorf("cloudinary: %w", err)
		}
		return s, nil
	case "minio":
		s, err := media.NewMinioStore(ctx, media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return s, nil
	}
	return nil, nil
}
