package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret は開発環境用のフォールバック署名鍵。
// APP_ENV=production ではこの値での起動を拒否する。
const DevJWTSecret = "ecofinds-dev-secret-change-me"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Environment
	AppEnv string

	// Session
	JWTSecret  string
	SessionTTL time.Duration
	BcryptCost int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Revocation
	RedisURL                  string
	RevocationCleanupInterval time.Duration

	// Product images
	ImageProbeEnabled bool
	ImageProbeTimeout time.Duration

	// Local cart (CLI)
	LocalCartPath string
	APIBaseURL    string
	APIToken      string

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AppEnv = getEnvString("APP_ENV", "development")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			missing = append(missing, "JWT_SECRET")
		} else {
			cfg.JWTSecret = DevJWTSecret
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.IsProduction() && cfg.JWTSecret == DevJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET must not use the development fallback in production")
	}

	// Optional fields with defaults
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 7*24*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.RevocationCleanupInterval = getEnvDuration("REVOCATION_CLEANUP_INTERVAL", time.Hour)
	cfg.ImageProbeEnabled = getEnvBool("IMAGE_PROBE_ENABLED", false)
	cfg.ImageProbeTimeout = getEnvDuration("IMAGE_PROBE_TIMEOUT", 5*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	loadClientFields(cfg)
	cfg.CookieSecure = cfg.IsProduction() || strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// LoadClient はcartサブコマンド用の設定を読み込む。
// サーバー側の必須環境変数は要求しない。
func LoadClient() *Config {
	cfg := &Config{
		LogLevel:   getEnvString("LOG_LEVEL", "info"),
		ServerPort: getEnvString("SERVER_PORT", "8080"),
	}
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	loadClientFields(cfg)
	return cfg
}

func loadClientFields(cfg *Config) {
	cfg.LocalCartPath = getEnvString("LOCAL_CART_PATH", "ecofinds-cart.db")
	cfg.APIBaseURL = getEnvString("API_BASE_URL", cfg.BaseURL)
	cfg.APIToken = os.Getenv("ECOFINDS_TOKEN")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
