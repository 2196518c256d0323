// Package prefs implements an offline command for inspecting and editing
// tracker preferences in a data directory.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	entrypoint "github.com/sebastos1/aa/internal/platform/cmd"
	server "github.com/sebastos1/aa/internal/tracker/app"
	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/prefs"
	trackersqlite "github.com/sebastos1/aa/internal/tracker/storage/sqlite"
)

// Commands accepted by Run.
const (
	CommandShow           = "show"
	CommandToggleCoop     = "toggle-coop"
	CommandToggleTestFlag = "toggle-test-flag"
	CommandSelect         = "select"
	CommandDiagnostics    = "diagnostics"
	CommandReset          = "reset"
)

// Config holds prefs command configuration.
type Config struct {
	DataDir string `env:"AA_DATA_DIR" envDefault:"data"`
	// FileOnly skips the SQLite substrate.
	FileOnly bool
	Limit    int
	Command  string
	Args     []string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding preferences and the tracker database")
	fs.BoolVar(&cfg.FileOnly, "file-only", false, "Only use the settings file")
	fs.IntVar(&cfg.Limit, "limit", 20, "Number of diagnostics to list")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		cfg.Command = CommandShow
		return cfg, nil
	}
	cfg.Command = rest[0]
	cfg.Args = rest[1:]
	switch cfg.Command {
	case CommandShow, CommandToggleCoop, CommandToggleTestFlag, CommandDiagnostics, CommandReset:
		if len(cfg.Args) > 0 {
			return Config{}, fmt.Errorf("%s takes no arguments", cfg.Command)
		}
	case CommandSelect:
		if len(cfg.Args) > 1 {
			return Config{}, errors.New("select takes at most one player uuid")
		}
	default:
		return Config{}, fmt.Errorf("unknown command %q", cfg.Command)
	}
	return cfg, nil
}

// Run executes the prefs command and writes JSON to out.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data dir is required")
	}

	reporter := diag.LogReporter{Logger: log.New(errOut, "", 0)}
	file := prefs.NewFileStore(prefs.FilePath(cfg.DataDir))
	var store *trackersqlite.Store
	if !cfg.FileOnly {
		opened, err := openStore(cfg.DataDir)
		if err != nil {
			fmt.Fprintf(errOut, "sqlite substrate unavailable: %v\n", err)
		} else {
			store = opened
			defer store.Close()
		}
	}

	switch cfg.Command {
	case CommandDiagnostics:
		if store == nil {
			return errors.New("diagnostics require the sqlite substrate")
		}
		records, err := store.ListDiagnostics(ctx, cfg.Limit)
		if err != nil {
			return err
		}
		return writeJSON(out, records)
	case CommandReset:
		if err := reset(ctx, store, file); err != nil {
			return err
		}
		return writeJSON(out, prefs.Defaults())
	}

	// Same hydration order as the tracker: the file first, then SQLite once
	// it is attached, keeping whichever copy is newer.
	interactive := prefs.NewLateBound("sqlite")
	settings := prefs.New(ctx, prefs.Multi{interactive, file}, reporter)
	if store != nil {
		interactive.Attach(prefs.NewKVStore(store))
		settings.Reload(ctx)
	}

	var result prefs.Preferences
	switch cfg.Command {
	case CommandToggleCoop:
		result = settings.ToggleCoopMode(ctx)
	case CommandToggleTestFlag:
		result = settings.ToggleTestFlag(ctx)
	case CommandSelect:
		uuid := ""
		if len(cfg.Args) == 1 {
			uuid = cfg.Args[0]
		}
		result = settings.SetSelectedPlayer(ctx, uuid)
	default:
		result = settings.Get()
	}
	return writeJSON(out, result)
}

// reset removes the persisted preferences from every reachable substrate.
func reset(ctx context.Context, store *trackersqlite.Store, file *prefs.FileStore) error {
	if store != nil {
		if err := store.DeletePreference(ctx, prefs.Key); err != nil {
			return err
		}
	}
	if err := os.Remove(file.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove settings file: %w", err)
	}
	return nil
}

func openStore(dataDir string) (*trackersqlite.Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return trackersqlite.Open(filepath.Join(dataDir, server.DatabaseFile))
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
