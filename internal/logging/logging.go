package logging

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	def *slog.Logger
)

// Init builds the logger for cfg, installs it as the slog default and
// returns it.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = EnvDev
	}
	if cfg.Service == "" {
		cfg.Service = "donaty-chat"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = NewSessionID()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendStd
		if cfg.Env != EnvDev {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}
	l := slog.New(redactHandler{next: h}).With(attrsAsArgs(processAttrs(cfg))...)
	slog.SetDefault(l)

	mu.Lock()
	def = l
	mu.Unlock()
	return l
}

// L returns the configured logger, initialising a dev one on first use.
func L() *slog.Logger {
	mu.Lock()
	l := def
	mu.Unlock()
	if l != nil {
		return l
	}
	return Init(Config{})
}

// ParseLevel accepts debug, info, warn or error. Anything else is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func attrsAsArgs(attrs []slog.Attr) []any {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return args
}
