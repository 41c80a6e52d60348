// Package config loads stockroom settings from the environment. A .env file
// in the working directory is read first when present; variables already
// set in the environment win.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const (
	CacheDriverMemory = "memory"
	CacheDriverSQLite = "sqlite"
	CacheDriverRedis  = "redis"
)

// Config is read once at startup and treated as immutable.
type Config struct {
	// Identity provider
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
	VerifyTokens bool

	// Inventory API
	APIEndpoint string
	HTTPTimeout time.Duration

	// Session cache
	CacheDriver string
	CachePath   string
	RedisURL    string
	CacheTTL    time.Duration

	// Dashboard
	LowStockThreshold int

	// Local server
	ListenAddr     string
	LoginRateLimit int

	LogLevel string
}

// Load reads the optional env files (".env" when none are given) and then
// the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read env file")
	}

	cfg := &Config{
		Region:            getEnvString("STOCKROOM_REGION", "us-east-1"),
		UserPoolID:        os.Getenv("STOCKROOM_USER_POOL_ID"),
		ClientID:          os.Getenv("STOCKROOM_CLIENT_ID"),
		ClientSecret:      os.Getenv("STOCKROOM_CLIENT_SECRET"),
		VerifyTokens:      getEnvBool("STOCKROOM_VERIFY_TOKENS", false),
		APIEndpoint:       os.Getenv("STOCKROOM_API_ENDPOINT"),
		HTTPTimeout:       getEnvDuration("STOCKROOM_HTTP_TIMEOUT", 15*time.Second),
		CacheDriver:       strings.ToLower(getEnvString("STOCKROOM_CACHE_DRIVER", CacheDriverSQLite)),
		CachePath:         getEnvString("STOCKROOM_CACHE_PATH", defaultCachePath()),
		RedisURL:          os.Getenv("STOCKROOM_REDIS_URL"),
		CacheTTL:          getEnvDuration("STOCKROOM_CACHE_TTL", 30*24*time.Hour),
		LowStockThreshold: getEnvInt("STOCKROOM_LOW_STOCK_THRESHOLD", 10),
		ListenAddr:        getEnvString("STOCKROOM_LISTEN_ADDR", "127.0.0.1:8080"),
		LoginRateLimit:    getEnvInt("STOCKROOM_LOGIN_RATE_LIMIT", 5),
		LogLevel:          strings.ToLower(getEnvString("STOCKROOM_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.UserPoolID, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.APIEndpoint, validation.Required, is.URL),
		validation.Field(&c.HTTPTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheDriver, validation.Required, validation.In(CacheDriverMemory, CacheDriverSQLite, CacheDriverRedis)),
		validation.Field(&c.RedisURL, validation.By(c.requireRedisURL)),
		validation.Field(&c.LowStockThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.LoginRateLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}
	return nil
}

func (c Config) requireRedisURL(value any) error {
	url, _ := value.(string)
	if c.CacheDriver == CacheDriverRedis && strings.TrimSpace(url) == "" {
		return errors.New("is required when the cache driver is redis")
	}
	return nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "stockroom.db"
	}
	return filepath.Join(dir, "stockroom", "session.db")
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
