// Package config loads client settings from an optional YAML file and the
// environment, in that order, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathEnv names the variable consulted when no config path is given.
const PathEnv = "DONATY_CONFIG"

const (
	CredentialsMemory = "memory"
	CredentialsFile   = "file"
	CredentialsRedis  = "redis"
)

type Config struct {
	Backend     Backend     `yaml:"backend"`
	Chat        Chat        `yaml:"chat"`
	Credentials Credentials `yaml:"credentials"`
	Logging     Logging     `yaml:"logging"`
}

type Backend struct {
	// URL is the REST base. A missing /api suffix is added.
	URL string `yaml:"url" env:"DONATY_API_URL"`
	// SocketPath is appended to the socket base for the websocket URL.
	SocketPath     string        `yaml:"socket_path" env:"DONATY_SOCKET_PATH"`
	HistoryTimeout time.Duration `yaml:"history_timeout" env:"DONATY_HISTORY_TIMEOUT"`
	DialTimeout    time.Duration `yaml:"dial_timeout" env:"DONATY_DIAL_TIMEOUT"`
}

type Chat struct {
	TypingTTL   time.Duration `yaml:"typing_ttl" env:"DONATY_TYPING_TTL"`
	DedupWindow int           `yaml:"dedup_window" env:"DONATY_DEDUP_WINDOW"`
	EmitRate    float64       `yaml:"emit_rate" env:"DONATY_EMIT_RATE"`
	EmitBurst   int           `yaml:"emit_burst" env:"DONATY_EMIT_BURST"`
}

type Credentials struct {
	// Backend is one of memory, file or redis.
	Backend  string        `yaml:"backend" env:"DONATY_CREDENTIALS"`
	File     string        `yaml:"file" env:"DONATY_CREDENTIALS_FILE"`
	RedisURL string        `yaml:"redis_url" env:"DONATY_REDIS_URL"`
	Prefix   string        `yaml:"prefix" env:"DONATY_REDIS_PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"DONATY_REDIS_TTL"`
}

type Logging struct {
	Env       string `yaml:"env" env:"APP_ENV"`
	Backend   string `yaml:"backend" env:"DONATY_LOG_BACKEND"`
	Level     string `yaml:"level" env:"DONATY_LOG_LEVEL"`
	Debug     bool   `yaml:"debug" env:"DONATY_DEBUG"`
	AddSource bool   `yaml:"add_source" env:"DONATY_LOG_SOURCE"`
	Service   string `yaml:"service" env:"DONATY_SERVICE"`
	Version   string `yaml:"version" env:"DONATY_VERSION"`
	Sample    int    `yaml:"sample" env:"DONATY_LOG_SAMPLE"`
}

func Default() Config {
	return Config{
		Backend: Backend{
			URL:            "http://localhost:4000/api",
			SocketPath:     "/ws",
			HistoryTimeout: 15 * time.Second,
			DialTimeout:    10 * time.Second,
		},
		Chat: Chat{
			TypingTTL:   1200 * time.Millisecond,
			DedupWindow: 50,
			EmitRate:    20,
			EmitBurst:   40,
		},
		Credentials: Credentials{
			Backend: CredentialsMemory,
			Prefix:  "donaty:session:",
		},
		Logging: Logging{
			Level:   "info",
			Service: "donaty-chat",
		},
	}
}

// Load reads path (or $DONATY_CONFIG when path is empty), applies environment
// overrides and validates the result. No file at all is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url %q must be an http(s) URL", c.Backend.URL))
	}
	if c.Backend.SocketPath != "" && !strings.HasPrefix(c.Backend.SocketPath, "/") {
		errs = append(errs, fmt.Errorf("backend.socket_path %q must start with /", c.Backend.SocketPath))
	}
	if c.Chat.TypingTTL <= 0 {
		errs = append(errs, errors.New("chat.typing_ttl must be positive"))
	}
	if c.Chat.DedupWindow < 0 {
		errs = append(errs, errors.New("chat.dedup_window must not be negative"))
	}
	if c.Chat.EmitRate < 0 || c.Chat.EmitBurst < 0 {
		errs = append(errs, errors.New("chat.emit_rate and chat.emit_burst must not be negative"))
	}

	switch c.Credentials.Backend {
	case CredentialsMemory:
	case CredentialsFile:
		if c.Credentials.File == "" {
			errs = append(errs, errors.New("credentials.file is required for the file backend"))
		}
	case CredentialsRedis:
		if c.Credentials.RedisURL == "" {
			errs = append(errs, errors.New("credentials.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("credentials.backend %q: want memory, file or redis", c.Credentials.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
