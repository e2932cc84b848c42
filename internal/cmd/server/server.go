// Package server parses server flags and launches the HTTP API service.
package server

import (
	"context"
	"flag"

	appserver "github.com/louisbranch/stylematch/internal/app/server"
	entrypoint "github.com/louisbranch/stylematch/internal/platform/cmd"
)

// Config holds server command configuration.
type Config struct {
	Port int `env:"STYLEMATCH_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		return appserver.Run(ctx, cfg.Port)
	})
}
