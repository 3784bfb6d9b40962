// Package main provides the fieldcrypt command-line tool.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ai8future/fieldcrypt"
	"github.com/ai8future/fieldcrypt/config"
	"github.com/ai8future/fieldcrypt/internal/logging"
)

func main() {
	var commands []*cli.Command
	commands = append(commands, getKeyCommands()...)
	commands = append(commands, getValueCommands()...)
	commands = append(commands, getTableCommands()...)

	cmd := &cli.Command{
		Name:     "fieldcrypt",
		Usage:    "Encrypt, digest and rotate encrypted database fields",
		Version:  "1.0.0",
		Commands: commands,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

// runtime is what every key-dependent command needs.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	keys   *fieldcrypt.KeySet
}

// load reads configuration and builds the key set. Callers must call close.
func load() (*runtime, error) {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	keys, err := cfg.KeySet(fieldcrypt.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, keys: keys}, nil
}

func (r *runtime) close() {
	r.keys.Close()
}
