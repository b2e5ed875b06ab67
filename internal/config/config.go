package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"

	defaultRedisURL        = "redis://localhost:6379"
	defaultBindAddr        = "0.0.0.0:8000"
	defaultShutdownTimeout = 10
)

// Config is read once at process start.
type Config struct {
	StoreBackend    string
	RedisURL        string
	StateTable      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ParamPrefix     string
	BindAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Lambda          bool
}

// Load reads configuration from the environment after applying any .env
// files. Variables already set in the environment take precedence.
func Load(envFiles ...string) (Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		StoreBackend:    strings.ToLower(get("STORE_BACKEND", BackendRedis)),
		RedisURL:        get("REDIS_URL", defaultRedisURL),
		StateTable:      get("STATE_TABLE", ""),
		OpenAIAPIKey:    get("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   get("OPENAI_BASE_URL", ""),
		ParamPrefix:     get("PARAM_PREFIX", ""),
		BindAddr:        get("BIND_ADDR", defaultBindAddr),
		LogLevel:        get("LOG_LEVEL", "info"),
		LogFormat:       get("LOG_FORMAT", "text"),
		ShutdownTimeout: time.Duration(envInt(get("SHUTDOWN_TIMEOUT_SECONDS", ""), defaultShutdownTimeout)) * time.Second,
		Lambda:          get("AWS_LAMBDA_FUNCTION_NAME", "") != "",
	}

	switch cfg.StoreBackend {
	case BackendRedis:
	case BackendDynamoDB:
		if cfg.StateTable == "" {
			return Config{}, errors.New("config: STATE_TABLE is required when STORE_BACKEND=dynamodb")
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}

// NeedsAWS reports whether any AWS client must be constructed.
func (c Config) NeedsAWS() bool {
	return c.StoreBackend == BackendDynamoDB || (c.OpenAIAPIKey == "" && c.ParamPrefix != "")
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

func envInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
