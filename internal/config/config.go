package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/warnman/internal/database"
	"github.com/joho/godotenv"
)

// AutoHost はSERVER_HOSTに指定すると外向きのローカルIPを検出してバインドする。
const AutoHost = "auto"

// DefaultSQLitePath はSQLite使用時のデフォルトのDBファイルパス。
const DefaultSQLitePath = "./db.sqlite"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Server
	ServerHost      string
	ServerPort      string
	ShutdownTimeout time.Duration

	// Discord
	DiscordBotToken string
	DiscordGuildID  string

	// Warn ID
	WarnIDMaxAttempts int

	// Rate Limit
	RateLimitGeneral int
	RateLimitBot     int

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// BotEnabled はDiscord Botを起動するかを返す。
func (c *Config) BotEnabled() bool {
	return c.DiscordBotToken != ""
}

// LoadDotEnv は.envファイルを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseDriver = strings.ToLower(getEnvString("DATABASE_DRIVER", database.DriverSQLite))
	switch cfg.DatabaseDriver {
	case database.DriverSQLite:
		cfg.DatabaseURL = getEnvString("DATABASE_URL", DefaultSQLitePath)
	case database.DriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, errors.New("required environment variables are not set: [DATABASE_URL]")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q: must be %q or %q",
			cfg.DatabaseDriver, database.DriverSQLite, database.DriverPostgres)
	}

	cfg.ServerHost = getEnvString("SERVER_HOST", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.DiscordGuildID = os.Getenv("DISCORD_GUILD_ID")

	cfg.WarnIDMaxAttempts = getEnvInt("WARN_ID_MAX_ATTEMPTS", 32)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitBot = getEnvInt("RATE_LIMIT_BOT", 20)

	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	var invalid []string
	if cfg.WarnIDMaxAttempts < 0 {
		invalid = append(invalid, "WARN_ID_MAX_ATTEMPTS")
	}
	if cfg.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if cfg.RateLimitBot <= 0 {
		invalid = append(invalid, "RATE_LIMIT_BOT")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, "SHUTDOWN_TIMEOUT")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables have invalid values: %v", invalid)
	}

	return cfg, nil
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
