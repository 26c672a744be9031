package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every runtime setting of the relay.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Relay   RelayConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// StorageConfig describes the SQLite message store.
type StorageConfig struct {
	Path string
}

// RelayConfig describes the websocket relay behavior.
type RelayConfig struct {
	DefaultAvatarURL string
	AllowedOrigins   []string
	AllowAllOrigins  bool
	MaxMessageSize   int64
	SendBufferSize   int
	// RateLimitBurst of zero disables per-connection rate limiting.
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	storage := StorageConfig{
		Path: getEnvOrDefault("DATABASE_PATH", "studybuddy.db"),
	}

	return &Config{Server: server, Storage: storage, Relay: relay}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" and "127.0.0.1:8080" forms directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadRelayConfig() (RelayConfig, error) {
	maxMessageSize, err := parseOptionalIntEnv("MAX_MESSAGE_SIZE")
	if err != nil {
		return RelayConfig{}, err
	}
	size := int64(4096)
	if maxMessageSize != nil {
		if *maxMessageSize <= 0 {
			return RelayConfig{}, fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", *maxMessageSize)
		}
		size = int64(*maxMessageSize)
	}

	sendBuffer, err := parseOptionalIntEnv("SEND_BUFFER_SIZE")
	if err != nil {
		return RelayConfig{}, err
	}
	buffer := 32
	if sendBuffer != nil {
		if *sendBuffer <= 0 {
			return RelayConfig{}, fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", *sendBuffer)
		}
		buffer = *sendBuffer
	}

	burst, err := parseOptionalIntEnv("RATE_LIMIT_BURST")
	if err != nil {
		return RelayConfig{}, err
	}
	rateBurst := 0
	if burst != nil {
		if *burst < 0 {
			return RelayConfig{}, fmt.Errorf("RATE_LIMIT_BURST must not be negative, got %d", *burst)
		}
		rateBurst = *burst
	}

	interval, err := parseDurationEnv("RATE_LIMIT_INTERVAL", time.Second)
	if err != nil {
		return RelayConfig{}, err
	}

	origins, allowAll := splitOrigins(os.Getenv("ALLOWED_ORIGINS"))

	return RelayConfig{
		DefaultAvatarURL:  getEnvOrDefault("DEFAULT_AVATAR_URL", "/static/images/avatar.svg"),
		AllowedOrigins:    origins,
		AllowAllOrigins:   allowAll,
		MaxMessageSize:    size,
		SendBufferSize:    buffer,
		RateLimitBurst:    rateBurst,
		RateLimitInterval: interval,
	}, nil
}

func splitOrigins(raw string) ([]string, bool) {
	var origins []string
	allowAll := false
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		origins = append(origins, trimmed)
	}
	return origins, allowAll
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
