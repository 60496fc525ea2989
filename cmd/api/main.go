// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/memstore"
	sessionredis "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	redigo "github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/yourusername/fishcare-api/internal/auth"
	"github.com/yourusername/fishcare-api/internal/config"
	"github.com/yourusername/fishcare-api/internal/infra"
	"github.com/yourusername/fishcare-api/internal/logging"
	"github.com/yourusername/fishcare-api/internal/middleware"
	"github.com/yourusername/fishcare-api/internal/users"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, userStore, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := userStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	limiter, closeLimiter, err := setupLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// キュー未設定の場合はアクティビティ記録を無効化
	var publisher auth.EventPublisher = auth.NopPublisher{}
	if cfg.QueueRedisURL != "" {
		jobManager, err := setupJobs(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("setup jobs: %w", err)
		}
		jobManager.StartWorkers()
		defer func() {
			if err := jobManager.Shutdown(context.Background()); err != nil {
				logger.Warn("failed to stop job manager", "error", err)
			}
		}()
		publisher = jobManager
	}

	sessionStore, err := newSessionStore(cfg, logger)
	if err != nil {
		return err
	}

	authManager := auth.NewManager(
		auth.NewService(userStore, cfg.BcryptCost),
		limiter,
		publisher,
		logger,
		auth.Options{
			MaxLifetime:       cfg.SessionMaxLifetime,
			IdleTimeout:       cfg.SessionIdleTimeout,
			ExposeStoreErrors: cfg.ExposeStoreErrors,
		},
	)

	router, err := newRouter(cfg, logger, sessionStore, authManager)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", srv.Addr, "mode", cfg.GinMode, "db", cfg.DBDriver, "session_store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// newRouter は Gin ルーターとミドルウェアを組み立てます。
func newRouter(cfg *config.Config, logger *slog.Logger, store sessions.Store, authManager *auth.Manager) (*gin.Engine, error) {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	// ClientIP はログイン試行のキーになるため、未設定なら転送ヘッダーを一切信用しない
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	var origins []string
	for _, origin := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	// セッションクッキーを送るため資格情報付きリクエストを許可
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		middleware.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	router.Use(cors.New(corsConfig))

	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	setupRoutes(router, authManager)
	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fishcare-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, authManager *auth.Manager) {
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	authManager.RegisterRoutes(api)
}

// openUserStore は DB_DRIVER に応じてユーザーストアを開きます。
func openUserStore(ctx context.Context, cfg *config.Config) (*sql.DB, *users.SQLStore, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := infra.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, users.NewPostgresStore(db), nil
	default:
		db, err := infra.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, users.NewSQLiteStore(db), nil
	}
}

// setupLimiter はログイン試行回数の保存先を選びます。REDIS_URL が空ならプロセス内で数えます。
func setupLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.AttemptLimiter, func(), error) {
	noop := func() {}
	if cfg.LoginMaxAttempts == 0 {
		logger.Warn("login throttling disabled")
		return nil, noop, nil
	}

	policy := auth.LimiterPolicy{
		MaxAttempts:  cfg.LoginMaxAttempts,
		Window:       cfg.LoginWindow,
		LockDuration: cfg.LoginLockDuration,
	}
	if cfg.RedisURL == "" {
		return auth.NewMemoryLimiter(policy), noop, nil
	}

	rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, noop, fmt.Errorf("limiter redis: %w", err)
	}
	return auth.NewRedisLimiter(rdb, policy), func() { _ = rdb.Close() }, nil
}

// sessionKeyInfo は SESSION_SECRET から署名鍵と暗号鍵を導出する際のラベルです。
const sessionKeyInfo = "fishcare-api session keys"

// defaultSessionMaxAge はセッション寿命が無効化されている場合のストア保持期間です。
const defaultSessionMaxAge = 24 * time.Hour

// newSessionStore は SESSION_STORE に応じたセッションストアを作成します。
func newSessionStore(cfg *config.Config, logger *slog.Logger) (sessions.Store, error) {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// 開発時のみ。再起動するとセッションは無効になる
		logger.Warn("SESSION_SECRET is empty, using an ephemeral key")
		secret = []byte(uuid.NewString() + uuid.NewString())
	}
	hashKey, blockKey, err := sessionKeys(secret)
	if err != nil {
		return nil, err
	}

	var store sessions.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		pool := newRedisPool(cfg.SessionRedisURL)
		redisStore, err := sessionredis.NewStoreWithPool(pool, hashKey, blockKey)
		if err != nil {
			return nil, fmt.Errorf("session redis store: %w", err)
		}
		store = redisStore
	case config.SessionStoreCookie:
		// 内容は暗号化されるが、発行済みクッキーはログアウトしても失効しない
		logger.Warn("cookie session store cannot revoke sessions on logout")
		store = cookie.NewStore(hashKey, blockKey)
	default:
		store = memstore.NewStore(hashKey, blockKey)
	}

	store.Options(auth.CookieOptions(sessionMaxAge(cfg), cfg.GinMode == gin.ReleaseMode))
	return store, nil
}

// sessionMaxAge はストアとクッキーに渡す保持期間を返します。
// MaxAge<=0 は各ストアで削除扱いになるため、常に正の値を返します。
func sessionMaxAge(cfg *config.Config) time.Duration {
	switch {
	case cfg.SessionMaxLifetime > 0:
		return cfg.SessionMaxLifetime
	case cfg.SessionIdleTimeout > 0:
		return cfg.SessionIdleTimeout
	default:
		return defaultSessionMaxAge
	}
}

// sessionKeys は HKDF で HMAC 用 64 バイトと AES-256 用 32 バイトの鍵を導出します。
func sessionKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(sessionKeyInfo))
	hashKey = make([]byte, 64)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("derive session hash key: %w", err)
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("derive session block key: %w", err)
	}
	return hashKey, blockKey, nil
}

func newRedisPool(url string) *redigo.Pool {
	return &redigo.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redigo.Conn, error) {
			return redigo.DialURL(url)
		},
		TestOnBorrow: func(c redigo.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}
