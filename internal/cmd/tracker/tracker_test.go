package tracker

import (
	"context"
	"flag"
	"net"
	"testing"
	"time"

	"github.com/sebastos1/aa/internal/platform/timeouts"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ServerURL != "http://localhost:3000" {
		t.Fatalf("server url = %q", cfg.ServerURL)
	}
	if cfg.BootstrapPath != "/api/init" || cfg.EventsPath != "/api/events" {
		t.Fatalf("paths = %q %q", cfg.BootstrapPath, cfg.EventsPath)
	}
	if cfg.RetryDelay != timeouts.StreamRetry {
		t.Fatalf("retry = %v, want %v", cfg.RetryDelay, timeouts.StreamRetry)
	}
	if cfg.Backoff {
		t.Fatal("expected backoff off by default")
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("AA_SERVER_URL", "http://env.test")
	t.Setenv("AA_STREAM_RETRY", "250ms")
	t.Setenv("AA_DATA_DIR", "/var/lib/aa")

	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-server", "http://flag.test", "-backoff", "-dashboard-addr", ""})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ServerURL != "http://flag.test" {
		t.Fatalf("server url = %q, want flag value", cfg.ServerURL)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Fatalf("retry = %v, want env value", cfg.RetryDelay)
	}
	if cfg.DataDir != "/var/lib/aa" {
		t.Fatalf("data dir = %q", cfg.DataDir)
	}
	if !cfg.Backoff || cfg.DashboardAddr != "" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)
	fs.SetOutput(discard{})
	if _, err := ParseConfig(fs, []string{"-nope"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunProbeRequiresHealthAddr(t *testing.T) {
	if err := Run(context.Background(), Config{Probe: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunProbeUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	if err := Run(context.Background(), Config{Probe: true, HealthAddr: addr}); err == nil {
		t.Fatal("expected probe error")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
