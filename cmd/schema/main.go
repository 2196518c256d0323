// Package main writes JSON Schema files for the tracker wire contract.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	schemacmd "github.com/sebastos1/aa/internal/cmd/schema"
	entrypoint "github.com/sebastos1/aa/internal/platform/cmd"
)

func main() {
	log.SetPrefix("[SCHEMA] ")
	cfg, err := schemacmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	run := func(ctx context.Context) error { return schemacmd.Run(ctx, cfg, os.Stdout) }
	if err := entrypoint.RunWithTelemetry(context.Background(), entrypoint.ServiceSchema, run); err != nil {
		log.Fatalf("schema: %v", err)
	}
}
