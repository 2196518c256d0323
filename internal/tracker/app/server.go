// Package server wires the tracker runtime: preference substrates, state
// containers, bootstrap, the event stream, the dashboard and the gRPC
// health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sebastos1/aa/internal/platform/config"
	"github.com/sebastos1/aa/internal/platform/timeouts"
	"github.com/sebastos1/aa/internal/tracker/bootstrap"
	"github.com/sebastos1/aa/internal/tracker/dashboard"
	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/merge"
	"github.com/sebastos1/aa/internal/tracker/prefs"
	"github.com/sebastos1/aa/internal/tracker/state"
	trackersqlite "github.com/sebastos1/aa/internal/tracker/storage/sqlite"
	"github.com/sebastos1/aa/internal/tracker/stream"
	"github.com/sebastos1/aa/internal/tracker/view"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// StreamHealthService is the health service name that follows the event
// stream connection.
const StreamHealthService = "tracker.EventStream"

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "tracker.db"

type serverEnv struct {
	DiagnosticsRetention int `env:"AA_DIAGNOSTICS_RETENTION" envDefault:"500"`
	RecentDiagnostics    int `env:"AA_RECENT_DIAGNOSTICS" envDefault:"100"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	return cfg
}

// Config is the runtime configuration of the tracker.
type Config struct {
	// ServerURL is the game server base URL.
	ServerURL     string
	BootstrapPath string
	EventsPath    string
	DataDir       string
	// DashboardAddr is the dashboard listen address; empty disables it.
	DashboardAddr string
	// HealthAddr is the gRPC health listen address; empty disables it.
	HealthAddr string
	RetryDelay time.Duration
	// Backoff switches reconnects from a fixed delay to exponential backoff.
	Backoff bool
}

// Server hosts the tracker runtime.
type Server struct {
	cfg          Config
	bootstrapURL string
	eventsURL    string

	dashboardListener net.Listener
	httpServer        *http.Server
	healthListener    net.Listener
	grpcServer        *grpc.Server
	health            *health.Server

	store       *trackersqlite.Store
	recorder    *diag.Recorder
	reporter    diag.Reporter
	interactive *prefs.LateBound
	prefs       *prefs.Store
	mirror      *state.Mirror
	static      *state.Static
	selected    *view.SelectedPlayer
	dashboard   *dashboard.Server
	loader      *bootstrap.Loader
	client      *stream.Client
	handle      atomic.Pointer[stream.Handle]
}

// New builds a tracker server. Preferences are hydrated from the file
// substrate first; the SQLite substrate is attached afterwards.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	bootstrapURL, err := joinURL(cfg.ServerURL, cfg.BootstrapPath)
	if err != nil {
		return nil, err
	}
	eventsURL, err := joinURL(cfg.ServerURL, cfg.EventsPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "data"
	}
	env := loadServerEnv()

	s := &Server{
		cfg:          cfg,
		bootstrapURL: bootstrapURL,
		eventsURL:    eventsURL,
		recorder:     diag.NewRecorder(env.RecentDiagnostics),
		interactive:  prefs.NewLateBound("sqlite"),
		mirror:       state.NewMirror(),
		static:       state.NewStatic(),
	}

	logReporter := diag.LogReporter{}
	store, err := openStore(filepath.Join(cfg.DataDir, DatabaseFile))
	if err != nil {
		log.Printf("tracker store unavailable, continuing without it: %v", err)
		s.reporter = diag.Multi{s.recorder, logReporter}
	} else {
		store.SetDiagnosticsRetention(env.DiagnosticsRetention)
		s.store = store
		s.reporter = diag.Multi{s.recorder, logReporter, diag.NewEmitter(store, logReporter)}
	}

	file := prefs.NewFileStore(prefs.FilePath(cfg.DataDir))
	s.prefs = prefs.New(ctx, prefs.Multi{s.interactive, file}, s.reporter)
	if s.store != nil {
		s.interactive.Attach(prefs.NewKVStore(s.store))
		s.prefs.Reload(ctx)
	}

	s.selected = view.NewSelectedPlayer(s.mirror, s.prefs)
	s.loader = bootstrap.NewLoader(nil, s.reporter)

	var policy stream.RetryPolicy = stream.DefaultPolicy{Delay: cfg.RetryDelay}
	if cfg.Backoff {
		policy = stream.BackoffPolicy{Initial: cfg.RetryDelay}
	}
	s.client = stream.NewClient(merge.New(s.mirror),
		stream.WithReporter(s.reporter),
		stream.WithRetryPolicy(policy),
		stream.WithStateObserver(s.observeStream),
	)

	s.dashboard = dashboard.New(dashboard.Deps{
		Mirror:      s.mirror,
		Static:      s.static,
		Preferences: s.prefs,
		Selection:   s.selected,
		Stream:      streamStatus{s},
		Diagnostics: s.recorder,
	})

	if err := s.listen(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) listen() error {
	if addr := strings.TrimSpace(s.cfg.DashboardAddr); addr != "" {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		s.dashboardListener = listener
		s.httpServer = &http.Server{
			Handler:           s.dashboard.Handler(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
	}
	if addr := strings.TrimSpace(s.cfg.HealthAddr); addr != "" {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		s.healthListener = listener
		s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(StreamHealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return nil
}

// DashboardAddr returns the dashboard listener address, if any.
func (s *Server) DashboardAddr() string {
	if s == nil || s.dashboardListener == nil {
		return ""
	}
	return s.dashboardListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, if any.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Preferences returns the preference store.
func (s *Server) Preferences() *prefs.Store { return s.prefs }

// Mirror returns the read-only view of the mirrored state.
func (s *Server) Mirror() state.Reader { return s.mirror }

// Diagnostics returns the recent diagnostics.
func (s *Server) Diagnostics() []diag.Event { return s.recorder.Events() }

// Run creates and serves a tracker until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve loads the bootstrap snapshot, follows the event stream and serves
// the dashboard and health endpoint until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	serveErr := make(chan error, 2)
	if s.httpServer != nil {
		log.Printf("dashboard listening at %v", s.dashboardListener.Addr())
		go func() {
			err := s.httpServer.Serve(s.dashboardListener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("serve dashboard: %w", err)
			}
		}()
	}
	if s.grpcServer != nil {
		log.Printf("health listening at %v", s.healthListener.Addr())
		go func() {
			err := s.grpcServer.Serve(s.healthListener)
			if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErr <- fmt.Errorf("serve gRPC: %w", err)
			}
		}()
	}

	snap := s.loader.Load(ctx, s.bootstrapURL, s.mirror, s.static)
	log.Printf("bootstrap loaded %d players, %d advancements", len(snap.Players), len(snap.Advancements))
	s.handle.Store(s.client.Open(ctx, s.eventsURL))

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	s.shutdown()
	return err
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	s.client.Close()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		s.dashboard.Close()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("shutdown dashboard: %v", err)
		}
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// Close releases tracker resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.dashboard != nil {
		s.dashboard.Close()
	}
	if s.selected != nil {
		s.selected.Close()
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.dashboardListener != nil {
		_ = s.dashboardListener.Close()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.store != nil {
		s.interactive.Attach(nil)
		if err := s.store.Close(); err != nil {
			log.Printf("close tracker store: %v", err)
		}
		s.store = nil
	}
}

func (s *Server) observeStream(endpoint string, st stream.State) {
	log.Printf("event stream %s: %s", endpoint, st)
	if s.health == nil {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if st == stream.StateOpen {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(StreamHealthService, status)
}

type streamStatus struct{ s *Server }

func (st streamStatus) State() stream.State {
	if h := st.s.handle.Load(); h != nil {
		return h.State()
	}
	return stream.StateConnecting
}

func (st streamStatus) Stats() stream.Stats {
	if h := st.s.handle.Load(); h != nil {
		return h.Stats()
	}
	return stream.Stats{}
}

func openStore(path string) (*trackersqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := trackersqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tracker sqlite store: %w", err)
	}
	return store, nil
}

func joinURL(base, path string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("server url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid server url %q", base)
	}
	return parsed.JoinPath(path).String(), nil
}
