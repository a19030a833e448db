// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the runtime settings of the chessmatch binaries.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// RedisAddr and DatabaseURL are optional. Without them the server keeps
	// room records and ratings in memory only.
	RedisAddr   string
	RedisDB     int
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	GracePeriod   time.Duration
	RoomTTL       time.Duration
	EloK          int
	DefaultRating int
	GuestPrefix   string

	AllowedOrigins []string

	QueueName  string
	BatchSize  int
	FlushDelay time.Duration
}

// Load reads the configuration from the environment. Unset variables fall back
// to defaults; malformed ones are an error.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GuestPrefix: getEnv("GUEST_PREFIX", "guest"),
		QueueName:   getEnv("HISTORIAN_QUEUE_NAME", "chess_room_actions"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", 72*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.GracePeriod, err = getEnvDuration("GRACE_PERIOD", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RoomTTL, err = getEnvDuration("ROOM_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.EloK, err = getEnvInt("ELO_K", 32); err != nil {
		return Config{}, err
	}
	if cfg.DefaultRating, err = getEnvInt("DEFAULT_RATING", 1000); err != nil {
		return Config{}, err
	}
	if cfg.BatchSize, err = getEnvInt("HISTORIAN_BATCH_SIZE", 20); err != nil {
		return Config{}, err
	}
	flushMs, err := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	if err != nil {
		return Config{}, err
	}
	cfg.FlushDelay = time.Duration(flushMs) * time.Millisecond

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.GracePeriod <= 0 {
		return Config{}, fmt.Errorf("GRACE_PERIOD must be positive, got %s", cfg.GracePeriod)
	}
	if cfg.RoomTTL <= 0 {
		return Config{}, fmt.Errorf("ROOM_TTL must be positive, got %s", cfg.RoomTTL)
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

// getEnvDuration parses a Go duration. "never" and "0" mean zero, as the
// token expiry setting has always accepted.
func getEnvDuration(key string, defVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	switch v {
	case "":
		return defVal, nil
	case "never", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return logger, nil
}
