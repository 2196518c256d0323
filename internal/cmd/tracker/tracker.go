// Package tracker parses tracker flags and launches the tracker daemon.
package tracker

import (
	"context"
	"errors"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/sebastos1/aa/internal/platform/cmd"
	platformgrpc "github.com/sebastos1/aa/internal/platform/grpc"
	"github.com/sebastos1/aa/internal/platform/timeouts"
	server "github.com/sebastos1/aa/internal/tracker/app"
)

// Config holds tracker command configuration.
type Config struct {
	ServerURL     string        `env:"AA_SERVER_URL" envDefault:"http://localhost:3000"`
	BootstrapPath string        `env:"AA_BOOTSTRAP_PATH" envDefault:"/api/init"`
	EventsPath    string        `env:"AA_EVENTS_PATH" envDefault:"/api/events"`
	DataDir       string        `env:"AA_DATA_DIR" envDefault:"data"`
	DashboardAddr string        `env:"AA_DASHBOARD_ADDR" envDefault:"127.0.0.1:8090"`
	HealthAddr    string        `env:"AA_HEALTH_ADDR" envDefault:"127.0.0.1:8091"`
	RetryDelay    time.Duration `env:"AA_STREAM_RETRY"`
	Backoff       bool          `env:"AA_STREAM_BACKOFF"`
	// Probe checks the event stream health of a running tracker and exits.
	Probe bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = timeouts.StreamRetry
	}
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Game server base URL")
	fs.StringVar(&cfg.BootstrapPath, "bootstrap-path", cfg.BootstrapPath, "Bootstrap snapshot path")
	fs.StringVar(&cfg.EventsPath, "events-path", cfg.EventsPath, "Event stream path")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for preferences and the tracker database")
	fs.StringVar(&cfg.DashboardAddr, "dashboard-addr", cfg.DashboardAddr, "Dashboard listen address (empty disables)")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address (empty disables)")
	fs.DurationVar(&cfg.RetryDelay, "retry", cfg.RetryDelay, "Delay before reconnecting the event stream")
	fs.BoolVar(&cfg.Backoff, "backoff", cfg.Backoff, "Use exponential backoff between reconnects")
	fs.BoolVar(&cfg.Probe, "probe", false, "Check the event stream health of a running tracker at -health-addr and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the tracker, or probes a running one when cfg.Probe is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Probe {
		if strings.TrimSpace(cfg.HealthAddr) == "" {
			return errors.New("probe requires a health address")
		}
		return platformgrpc.Probe(ctx, cfg.HealthAddr, server.StreamHealthService)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTracker, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			ServerURL:     cfg.ServerURL,
			BootstrapPath: cfg.BootstrapPath,
			EventsPath:    cfg.EventsPath,
			DataDir:       cfg.DataDir,
			DashboardAddr: cfg.DashboardAddr,
			HealthAddr:    cfg.HealthAddr,
			RetryDelay:    cfg.RetryDelay,
			Backoff:       cfg.Backoff,
		})
	})
}
