// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// データベースドライバー
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// セッションストアの種類
const (
	SessionStoreCookie = "cookie"
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

const minSessionSecretLength = 32

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port            string        // APIサーバーのポート番号
	GinMode         string        // Ginの実行モード (debug, release, test)
	LogLevel        string        // slog のログレベル
	ShutdownTimeout time.Duration // グレースフルシャットダウンの待ち時間

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// X-Forwarded-For を信頼するプロキシ（空なら接続元アドレスのみ使用）
	TrustedProxies []string

	// データベース設定
	DBDriver    string // sqlite または postgres
	DatabaseURL string // SQLite のファイルパス、または Postgres の接続URL

	// セッション設定
	SessionSecret      string        // セッション署名用の秘密鍵
	SessionStore       string        // memory / redis / cookie
	SessionRedisURL    string        // SESSION_STORE=redis の接続先
	SessionMaxLifetime time.Duration // ログインからの最大有効期間（0で無効）
	SessionIdleTimeout time.Duration // 無操作タイムアウト（0で無効）

	// 認証設定
	BcryptCost        int           // パスワードハッシュのコスト
	LoginMaxAttempts  int           // ロックまでの失敗回数（0でスロットリング無効）
	LoginWindow       time.Duration // 失敗回数を数える期間
	LoginLockDuration time.Duration // ロック時間
	ExposeStoreErrors bool          // DBエラーの詳細をレスポンスに含めるか

	// Redis / ジョブ設定
	RedisURL      string        // ログイン試行回数の保存先（空ならメモリ）
	QueueRedisURL string        // Asynq用Redis接続URL（空なら活動記録を無効化）
	ActivityTTL   time.Duration // 活動記録の保持期間
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		TrustedProxies:     getEnvAsList("TRUSTED_PROXIES"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DatabaseURL: getEnv("DATABASE_URL", "fishcare.db"),

		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionStore:       strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
		SessionRedisURL:    getEnv("SESSION_REDIS_URL", ""),
		SessionMaxLifetime: time.Duration(getEnvAsInt("SESSION_MAX_LIFETIME_MINUTES", 720)) * time.Minute,
		SessionIdleTimeout: time.Duration(getEnvAsInt("SESSION_IDLE_TIMEOUT_MINUTES", 30)) * time.Minute,

		BcryptCost:        getEnvAsInt("BCRYPT_COST", bcrypt.DefaultCost),
		LoginMaxAttempts:  getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:       time.Duration(getEnvAsInt("LOGIN_WINDOW_MINUTES", 15)) * time.Minute,
		LoginLockDuration: time.Duration(getEnvAsInt("LOGIN_LOCK_MINUTES", 10)) * time.Minute,
		ExposeStoreErrors: getEnvAsBool("EXPOSE_STORE_ERRORS", false),

		RedisURL:      getEnv("REDIS_URL", ""),
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", ""),
		ActivityTTL:   time.Duration(getEnvAsInt("ACTIVITY_TTL_HOURS", 720)) * time.Hour,
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.SessionStore {
	case SessionStoreCookie, SessionStoreMemory:
	case SessionStoreRedis:
		if c.SessionRedisURL == "" {
			return fmt.Errorf("SESSION_REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.LoginMaxAttempts < 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must not be negative")
	}

	// ローカル開発ではセッション鍵は任意
	if c.GinMode == "release" {
		// memory は単一プロセス限り、cookie はログアウトで失効できない
		if c.SessionStore != SessionStoreRedis {
			return fmt.Errorf("SESSION_STORE=redis is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if len(c.SessionSecret) < minSessionSecretLength {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes in release mode", minSessionSecretLength)
		}
	}

	return nil
}

// Address は待ち受けアドレスを返します。
func (c *Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数を空要素を除いて返します。
func getEnvAsList(key string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
