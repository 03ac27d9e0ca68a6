package evoke

import (
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the file/environment form of a Runtime's tunables, for hosts
// that configure the runtime from deployment config rather than code.
type Config struct {
	FrameLimit    int       `koanf:"frame_limit"`
	AncestorLimit int       `koanf:"ancestor_limit"`
	Fatal         bool      `koanf:"fatal"`
	Log           LogConfig `koanf:"log"`
}

// LogConfig controls the diagnostic logger built by Config.Logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// LoadConfig loads configuration with defaults, overlaid by the YAML file
// at path (if non-empty), overlaid by EVOKE_* environment variables
// (EVOKE_FRAME_LIMIT -> frame_limit, EVOKE_LOG_LEVEL -> log.level).
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("frame_limit", DefaultFrameLimit)
	k.Set("ancestor_limit", DefaultAncestorLimit)
	k.Set("fatal", true)
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (EVOKE_FRAME_LIMIT -> frame_limit,
	// EVOKE_LOG_LEVEL -> log.level)
	if err := k.Load(env.Provider("EVOKE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "EVOKE_"))
		// Top-level keys keep their underscores; only nested sections
		// use the dot delimiter.
		switch key {
		case "frame_limit", "ancestor_limit", "fatal":
			return key
		}
		return strings.Replace(key, "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Options translates the loaded configuration into Runtime options.
// Fatal=false installs an uncaught handler that logs the error and keeps
// the process running; the default remains fatal.
func (c *Config) Options() []Option {
	logger := c.Logger()
	opts := []Option{
		WithFrameLimit(c.FrameLimit),
		WithAncestorLimit(c.AncestorLimit),
		WithLogger(logger),
	}
	if !c.Fatal {
		opts = append(opts, WithUncaughtHandler(func(err error) bool {
			logger.Error("uncaught exception recovered by configuration", "error", err)
			return true
		}))
	}
	return opts
}

// Logger builds a slog.Logger per the Log section.
func (c *Config) Logger() *slog.Logger {
	return newLogger(c.Log.Level, c.Log.Format)
}
