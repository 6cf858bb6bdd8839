// Package logging configures the process-wide slog logger for the chat
// client and its stub backend. Records go to stderr so stdout stays free for
// the transcript.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

type Backend string

const (
	// BackendStd writes slog text in dev and slog JSON otherwise.
	BackendStd Backend = "std"
	// BackendZap writes JSON through zap.
	BackendZap Backend = "zap"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// ParseEnv maps APP_ENV spellings onto an Env. Anything unknown is dev.
func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod":
		return EnvStage
	default:
		return EnvDev
	}
}

type Config struct {
	Service string
	Version string
	// ClientID tags every record from this process. Empty means a fresh uuid.
	ClientID string

	Env     Env
	Backend Backend // default: std in dev, zap elsewhere
	Level   slog.Level
	Debug   bool

	// Sample, when positive, keeps the first Sample records per message per
	// second on the zap backend and one in ten after that. A runaway typing
	// loop is the usual source of bursts.
	Sample int

	AddSource bool
	Output    io.Writer
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
