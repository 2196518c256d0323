// Package main edits tracker preferences offline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	prefscmd "github.com/sebastos1/aa/internal/cmd/prefs"
	entrypoint "github.com/sebastos1/aa/internal/platform/cmd"
)

func main() {
	log.SetPrefix("[PREFS] ")
	cfg, err := prefscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context) error { return prefscmd.Run(ctx, cfg, os.Stdout, os.Stderr) }
	if err := entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePrefs, run); err != nil {
		log.Fatalf("prefs: %v", err)
	}
}
