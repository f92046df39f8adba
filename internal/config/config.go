package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultHTTPAddr       = ":8099"
	defaultDBPath         = "/data/pantryscan.db"
	defaultGeminiModel    = "gemini-2.0-flash"
	defaultProductBaseURL = "https://api.upcdatabase.org"
	defaultTokenTTL       = 24 * time.Hour
)

// Server stores runtime settings for the inventory backend, loaded from
// environment variables.
type Server struct {
	HTTPAddr       string
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	ProductAPIKey  string
	ProductBaseURL string
	SpoolDir       string
	LogLevel       slog.Level
}

// LoadServer builds Server config from environment variables using stable
// defaults. JWTSecret has no default; callers must reject an empty value.
func LoadServer() Server {
	return Server{
		HTTPAddr:       getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:         getenv("DB_PATH", defaultDBPath),
		JWTSecret:      getenv("JWT_SECRET", ""),
		TokenTTL:       parseDuration("TOKEN_TTL", defaultTokenTTL),
		GeminiAPIKey:   getenv("GEMINI_API_KEY", ""),
		GeminiModel:    getenv("GEMINI_MODEL", defaultGeminiModel),
		ProductAPIKey:  getenv("UPCDATABASE_API_KEY", ""),
		ProductBaseURL: getenv("UPCDATABASE_BASE_URL", defaultProductBaseURL),
		SpoolDir:       getenv("SCAN_SPOOL_DIR", ""),
		LogLevel:       parseLogLevel(getenv("LOG_LEVEL", "info")),
	}
}

// DBDir returns the target directory for DBPath.
func (c Server) DBDir() string {
	return filepath.Dir(c.DBPath)
}

// Scanner stores runtime settings for the scanner agent.
type Scanner struct {
	ServerURL  string
	TokenPath  string
	DevicePath string
	LogLevel   slog.Level
}

// LoadScanner builds Scanner config from environment variables.
func LoadScanner() Scanner {
	return Scanner{
		ServerURL:  getenv("PANTRYSCAN_URL", "http://127.0.0.1:8099"),
		TokenPath:  getenv("PANTRYSCAN_TOKEN_FILE", defaultTokenPath()),
		DevicePath: getenv("CAMERA_DEVICE", "/dev/video0"),
		LogLevel:   parseLogLevel(getenv("LOG_LEVEL", "info")),
	}
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pantryscan-token"
	}
	return filepath.Join(home, ".config", "pantryscan", "token")
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
