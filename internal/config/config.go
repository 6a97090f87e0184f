package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type HandlerMode string

const (
	// HandlerEcho replies with the request payload.
	HandlerEcho HandlerMode = "echo"
	// HandlerInspect logs the rendered payload, then echoes it.
	HandlerInspect HandlerMode = "inspect"
)

type Config struct {
	MaxMessageSize uint32
	LogLevel       string
	LogFormat      string
	Handler        HandlerMode
}

// DefaultMaxMessageSize caps incoming packets unless the config file says
// otherwise. Zero in the file means unbounded.
const DefaultMaxMessageSize = 64 << 20

func Default() Config {
	return Config{
		MaxMessageSize: DefaultMaxMessageSize,
		LogLevel:       "info",
		LogFormat:      "console",
		Handler:        HandlerInspect,
	}
}

type fileConfig struct {
	MaxMessageSize int64  `toml:"max_message_size"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
	Handler        string `toml:"handler"`
}

// Load reads a TOML file over Default. Keys absent from the file keep their
// default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load erlport config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse erlport config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("max_message_size") {
		if raw.MaxMessageSize < 0 || raw.MaxMessageSize > 1<<32-1 {
			return Config{}, fmt.Errorf("max_message_size %d out of range", raw.MaxMessageSize)
		}
		cfg.MaxMessageSize = uint32(raw.MaxMessageSize)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("log_format") {
		switch v := strings.ToLower(strings.TrimSpace(raw.LogFormat)); v {
		case "console", "json":
			cfg.LogFormat = v
		default:
			return Config{}, fmt.Errorf("log_format %q: want console or json", raw.LogFormat)
		}
	}

	if meta.IsDefined("handler") {
		switch v := HandlerMode(strings.ToLower(strings.TrimSpace(raw.Handler))); v {
		case HandlerEcho, HandlerInspect:
			cfg.Handler = v
		default:
			return Config{}, fmt.Errorf("handler %q: want echo or inspect", raw.Handler)
		}
	}

	return cfg, nil
}
