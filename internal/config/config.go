package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var validEnvs = map[string]bool{
	"local": true,
	"alpha": true,
	"beta":  true,
	"prod":  true,
}

const minSecretLength = 32

type Config struct {
	ServerPort  string
	AppEnv      string
	AuthDevMode bool
	LogLevel    string

	SessionSecret string
	SessionTTL    time.Duration

	CORSAllowedOrigins []string

	DB   DBConfig
	AWS  AWSConfig
	Sync SyncConfig
}

func (c Config) ParseLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid SERVER_PORT %q: %w", c.ServerPort, err)
	}
	if !validEnvs[c.AppEnv] {
		return fmt.Errorf("invalid APP_ENV %q: must be one of local, alpha, beta, prod", c.AppEnv)
	}
	if c.AuthDevMode && c.AppEnv != "local" {
		return fmt.Errorf("AUTH_DEV_MODE must not be enabled in %s environment", c.AppEnv)
	}
	if c.AppEnv != "local" {
		if len(c.SessionSecret) < minSecretLength {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes in %s environment", minSecretLength, c.AppEnv)
		}
		if c.AWS.Region == "" {
			return fmt.Errorf("AWS_REGION is required in %s environment", c.AppEnv)
		}
		if c.AWS.IdentityPoolID == "" {
			return fmt.Errorf("COGNITO_IDENTITY_POOL_ID is required in %s environment", c.AppEnv)
		}
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.AWS.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if (c.AWS.S3AccessKey == "") != (c.AWS.S3SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}
	if c.AWS.PresignTTL < time.Second || c.AWS.PresignTTL > 7*24*time.Hour {
		return fmt.Errorf("S3_PRESIGN_TTL must be between 1s and 168h, got %s", c.AWS.PresignTTL)
	}
	return c.Sync.validate()
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     d.Name,
		RawQuery: fmt.Sprintf("sslmode=%s", url.QueryEscape(d.SSLMode)),
	}
	return u.String()
}

type AWSConfig struct {
	Region         string
	IdentityPoolID string
	S3Bucket       string
	// S3Endpoint points the client at an S3-compatible server such as MinIO.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	PresignTTL  time.Duration
}

type SyncConfig struct {
	OpTimeout   time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Concurrency int
}

func (s SyncConfig) validate() error {
	switch {
	case s.OpTimeout <= 0:
		return fmt.Errorf("SYNC_OP_TIMEOUT must be positive")
	case s.MaxAttempts < 1:
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1")
	case s.BaseBackoff <= 0:
		return fmt.Errorf("SYNC_BASE_BACKOFF must be positive")
	case s.MaxBackoff < s.BaseBackoff:
		return fmt.Errorf("SYNC_MAX_BACKOFF must not be less than SYNC_BASE_BACKOFF")
	case s.Concurrency < 1:
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1")
	}
	return nil
}

// Load reads the configuration from the environment. When TODO_CONFIG_FILE
// names a TOML file its keys (the variable names in lower case) fill in
// whatever the environment leaves unset.
func Load() (Config, error) {
	src := &source{}
	if path := os.Getenv("TODO_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &src.file); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		ServerPort:         src.str("SERVER_PORT", "8080"),
		AppEnv:             src.str("APP_ENV", "local"),
		AuthDevMode:        strings.EqualFold(src.str("AUTH_DEV_MODE", "false"), "true"),
		LogLevel:           src.str("LOG_LEVEL", "info"),
		SessionSecret:      src.str("SESSION_SECRET", ""),
		SessionTTL:         src.duration("SESSION_TTL", 24*time.Hour),
		CORSAllowedOrigins: src.list("CORS_ALLOWED_ORIGINS"),
		DB: DBConfig{
			Host:     src.str("DB_HOST", "localhost"),
			Port:     src.str("DB_PORT", "5432"),
			User:     src.str("DB_USER", "todo"),
			Password: src.str("DB_PASSWORD", "todo"),
			Name:     src.str("DB_NAME", "todo"),
			SSLMode:  src.str("DB_SSLMODE", "disable"),
		},
		AWS: AWSConfig{
			Region:         src.str("AWS_REGION", "ap-northeast-1"),
			IdentityPoolID: src.str("COGNITO_IDENTITY_POOL_ID", ""),
			S3Bucket:       src.str("S3_BUCKET", "todo-attachments"),
			S3Endpoint:     src.str("S3_ENDPOINT", ""),
			S3AccessKey:    src.str("S3_ACCESS_KEY", ""),
			S3SecretKey:    src.str("S3_SECRET_KEY", ""),
			PresignTTL:     src.duration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Sync: SyncConfig{
			OpTimeout:   src.duration("SYNC_OP_TIMEOUT", 15*time.Second),
			MaxAttempts: src.integer("SYNC_MAX_ATTEMPTS", 5),
			BaseBackoff: src.duration("SYNC_BASE_BACKOFF", time.Second),
			MaxBackoff:  src.duration("SYNC_MAX_BACKOFF", time.Minute),
			Concurrency: src.integer("SYNC_CONCURRENCY", 4),
		},
	}
	if err := errors.Join(src.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// source resolves keys from the environment first and the config file
// second, collecting parse errors.
type source struct {
	file map[string]any
	errs []error
}

func (s *source) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	v, ok := s.file[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	if items, isList := v.([]any); isList {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, fmt.Sprint(it))
		}
		return strings.Join(parts, ","), true
	}
	return fmt.Sprint(v), true
}

func (s *source) str(key, defaultVal string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func (s *source) duration(key string, defaultVal time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return defaultVal
	}
	return d
}

func (s *source) integer(key string, defaultVal int) int {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return defaultVal
	}
	return n
}

func (s *source) list(key string) []string {
	v, _ := s.lookup(key)
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
