// Command erlport is an Erlang port that echoes every request payload back
// to the caller. Start it from Erlang with
//
//	open_port({spawn, "erlport"}, [{packet, 4}, binary])
//
// and send {Ref, Payload} tuples. Diagnostics go to stderr.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	bert "github.com/diodechain/erlport"
	"github.com/diodechain/erlport/internal/config"
	"github.com/diodechain/erlport/internal/logging"
	"github.com/diodechain/erlport/port"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	logLevel := flag.String("log-level", "", "log level override (trace|debug|info|warn|error|off)")
	flag.Parse()

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "erlport: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	logCfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logCfg.Level = lvl
	}
	logCfg.JSON = cfg.LogFormat == "json"
	logging.ApplyEnvOverrides(&logCfg)
	if logLevel != "" {
		lvl, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		logCfg.Level = lvl
	}
	logger := logging.New("erlport", logCfg)

	conn := port.NewConn(os.Stdin, os.Stdout,
		port.WithLogger(logger),
		port.WithMaxMessageSize(cfg.MaxMessageSize),
	)
	logger.Info().Str("handler", string(cfg.Handler)).Msg("serving")
	return conn.Run(newHandler(cfg.Handler, logger))
}

func newHandler(mode config.HandlerMode, logger zerolog.Logger) port.Handler {
	if mode == config.HandlerEcho {
		return port.HandlerFunc(func(t bert.Term) bert.Term {
			return t
		})
	}
	return port.HandlerFunc(func(t bert.Term) bert.Term {
		logger.Info().Str("payload", bert.Format(t)).Msg("request")
		return t
	})
}
