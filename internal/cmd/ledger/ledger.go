// Package ledger parses ledger service flags and launches the service.
package ledger

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/leaselog/internal/platform/cmd"
	server "github.com/louisbranch/leaselog/internal/services/ledger/app"
)

// Config holds ledger command configuration.
type Config struct {
	Port int `env:"LEASELOG_PORT" envDefault:"8080"`

	// Verify runs an offline integrity audit of the journal instead of
	// serving.
	Verify bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The ledger HTTP server port")
	fs.BoolVar(&cfg.Verify, "verify", false, "Re-derive every event hash and signature, report mismatches, and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the ledger HTTP API service, or audits the journal when the
// verify flag is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Verify {
		return server.RunVerify(ctx)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
