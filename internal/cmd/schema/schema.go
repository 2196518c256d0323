// Package schema writes JSON Schema files for the tracker wire contract.
package schema

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	entrypoint "github.com/sebastos1/aa/internal/platform/cmd"
	"github.com/sebastos1/aa/internal/tracker/wireschema"
)

// Config holds schema command configuration.
type Config struct {
	OutDir    string `env:"AA_SCHEMA_DIR" envDefault:"schema"`
	Documents []string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	var only string
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Directory to write schema files into")
	fs.StringVar(&only, "only", "", "Comma-separated documents to write (default: all)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.OutDir) == "" {
		return Config{}, errors.New("-out is required")
	}
	cfg.Documents = wireschema.Documents()
	if only = strings.TrimSpace(only); only != "" {
		cfg.Documents = cfg.Documents[:0:0]
		for _, name := range strings.Split(only, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Documents = append(cfg.Documents, name)
			}
		}
	}
	return cfg, nil
}

// FileName returns the output file name of a document.
func FileName(document string) string {
	return document + ".schema.json"
}

// Run writes each configured document and reports written paths to out.
func Run(_ context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	for _, name := range cfg.Documents {
		schema, err := wireschema.Build(name)
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.OutDir, FileName(name))
		if err := wireschema.Write(path, schema); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Fprintln(out, path)
	}
	return nil
}
