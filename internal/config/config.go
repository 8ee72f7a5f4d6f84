package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Identity (Clerk)
	ClerkSecretKey  string
	ClerkAPIURL     string
	ClerkJWTKey     string // RS256検証用のPEM公開鍵。未設定の場合はSessionSecretでHS256検証する
	SessionSecret   string
	IdentityTimeout time.Duration

	// Inference (tool proxy)
	InferenceBaseURL string
	InferenceTimeout time.Duration

	// Award
	AwardTimeout time.Duration

	// Rate Limit (req/min/user)
	RateLimitGeneral int
	RateLimitAward   int

	// Dashboard
	DashboardRefreshInterval time.Duration
	DashboardActivityWindow  int
	DashboardTimezone        string
	DashboardLocation        *time.Location

	// Pollution
	AQICNAPIKey              string
	PollutionAPIURL          string
	PollutionCacheTTL        time.Duration
	PollutionRefreshInterval time.Duration
	RedisURL                 string

	// Server
	ServerPort string
	LogLevel   string

	// CORS / WebSocket（カンマ区切りで複数指定可）
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ClerkSecretKey = os.Getenv("CLERK_SECRET_KEY")
	if cfg.ClerkSecretKey == "" {
		missing = append(missing, "CLERK_SECRET_KEY")
	}

	// セッショントークンの検証鍵はどちらか一方があればよい
	cfg.ClerkJWTKey = os.Getenv("CLERK_JWT_KEY")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.ClerkJWTKey == "" && cfg.SessionSecret == "" {
		missing = append(missing, "CLERK_JWT_KEY or SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.ClerkAPIURL = getEnvString("CLERK_API_URL", "https://api.clerk.com")
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
	cfg.InferenceBaseURL = getEnvString("INFERENCE_BASE_URL", "http://127.0.0.1:8000")
	cfg.InferenceTimeout = getEnvDuration("INFERENCE_TIMEOUT", 60*time.Second)
	cfg.AwardTimeout = getEnvDuration("AWARD_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAward = getEnvInt("RATE_LIMIT_AWARD", 30)
	cfg.DashboardRefreshInterval = getEnvDuration("DASHBOARD_REFRESH_INTERVAL", 30*time.Second)
	cfg.DashboardActivityWindow = getEnvInt("DASHBOARD_ACTIVITY_WINDOW", 50)
	cfg.DashboardTimezone = getEnvString("DASHBOARD_TIMEZONE", "UTC")
	cfg.AQICNAPIKey = os.Getenv("AQICN_API_KEY")
	cfg.PollutionAPIURL = getEnvString("POLLUTION_API_URL", "https://api.waqi.info")
	cfg.PollutionCacheTTL = getEnvDuration("POLLUTION_CACHE_TTL", time.Hour)
	cfg.PollutionRefreshInterval = getEnvDuration("POLLUTION_REFRESH_INTERVAL", 30*time.Minute)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	loc, err := time.LoadLocation(cfg.DashboardTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TIMEZONE %q: %w", cfg.DashboardTimezone, err)
	}
	cfg.DashboardLocation = loc

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は正の整数を読み込む。不正な値と0以下はデフォルト値になる。
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
