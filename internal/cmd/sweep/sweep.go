// Package sweep parses sweeper flags and launches the standalone sweep loop.
//
// The sweeper covers waiting sessions whose in-process timers were lost to a
// server restart. It shares the database with the server; the durable
// notified marker keeps the two from double-firing.
package sweep

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/stylematch/internal/matchmaking/engine"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage/sqlite"
	entrypoint "github.com/louisbranch/stylematch/internal/platform/cmd"
)

// Config holds sweep command configuration.
type Config struct {
	DBPath   string        `env:"STYLEMATCH_DB_PATH"`
	Interval time.Duration `env:"STYLEMATCH_SWEEP_INTERVAL"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the matchmaking database")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Delay between sweep passes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "matchmaking.db")
	}
	return cfg, nil
}

// Run starts the sweep loop until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSweep, func(context.Context) error {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		supervisor, err := engine.NewSupervisor(engine.SupervisorConfig{
			Store:    store,
			Interval: cfg.Interval,
		})
		if err != nil {
			return err
		}
		supervisor.Run(ctx)
		return nil
	})
}
