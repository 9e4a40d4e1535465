package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	cmhttp "github.com/Strob0t/CareMesh/internal/adapter/http"
	"github.com/Strob0t/CareMesh/internal/adapter/mcp"
	cmnats "github.com/Strob0t/CareMesh/internal/adapter/nats"
	"github.com/Strob0t/CareMesh/internal/adapter/natskv"
	cmotel "github.com/Strob0t/CareMesh/internal/adapter/otel"
	"github.com/Strob0t/CareMesh/internal/adapter/postgres"
	"github.com/Strob0t/CareMesh/internal/adapter/ristretto"
	"github.com/Strob0t/CareMesh/internal/adapter/rpcclient"
	"github.com/Strob0t/CareMesh/internal/adapter/tiered"
	"github.com/Strob0t/CareMesh/internal/adapter/ws"
	"github.com/Strob0t/CareMesh/internal/config"
	"github.com/Strob0t/CareMesh/internal/domain/a2a"
	"github.com/Strob0t/CareMesh/internal/logger"
	"github.com/Strob0t/CareMesh/internal/port/cache"
	skillport "github.com/Strob0t/CareMesh/internal/port/skill"
	"github.com/Strob0t/CareMesh/internal/resilience"
	"github.com/Strob0t/CareMesh/internal/service"
	"github.com/Strob0t/CareMesh/internal/skill"
	"github.com/Strob0t/CareMesh/internal/taskstore"
)

// Mesh roles.
const (
	roleTools       = "tools"
	roleCoordinator = "coordinator"
	roleRecords     = "records"
	roleTriage      = "triage"
	roleInsurance   = "insurance"
)

// patientCacheBucket is the NATS KV bucket behind the L2 patient cache.
const patientCacheBucket = "caremesh-patients"

// requestTimeout bounds one HTTP request. The audit WebSocket is exempt.
const requestTimeout = 30 * time.Second

// server is one role's HTTP listener together with the cleanup for the
// resources behind it.
type server struct {
	role    string
	srv     *http.Server
	cleanup func()
}

func runServe(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	if flags.Role == nil {
		return errors.New("serve requires --role (tools|coordinator|records|triage|insurance)")
	}
	role := *flags.Role

	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if flags.Port != nil {
		if err := setRolePort(cfg, role, *flags.Port); err != nil {
			return err
		}
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded", "path", path, "role", role, "log_level", cfg.Logging.Level)

	ctx := context.Background()

	shutdownTelemetry, err := cmotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service+"-"+role)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := cmotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	s, err := buildServer(ctx, cfg, role, metrics)
	if err != nil {
		return err
	}
	defer s.cleanup()

	return serveUntilSignal(s, config.NewHolder(cfg, path))
}

// serveUntilSignal runs one listener until SIGINT/SIGTERM, then drains it.
// SIGHUP reloads the config file; only the log level applies live, the rest
// takes effect on the next restart.
func serveUntilSignal(s *server, holder *config.Holder) error {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "role", s.role, "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("server %s: %w", s.role, err)
		case <-reload:
			if err := holder.Reload(); err != nil {
				slog.Warn("config reload failed, keeping previous", "error", err)
				continue
			}
			lvl := holder.Get().Logging.Level
			logger.SetLevel(lvl)
			slog.Info("config reloaded", "log_level", lvl)
		case <-done:
			slog.Info("shutting down server", "role", s.role)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.srv.Shutdown(shutdownCtx)
		}
	}
}

// buildServer assembles the dependency graph for one role.
func buildServer(ctx context.Context, cfg *config.Config, role string, m *cmotel.Metrics) (*server, error) {
	switch role {
	case roleTools:
		return buildTools(ctx, cfg, m)
	case roleCoordinator:
		return buildCoordinator(cfg, m)
	case roleRecords:
		return buildRecords(ctx, cfg, m)
	case roleTriage:
		return buildAgent(cfg, roleTriage, cfg.Server.TriagePort, m, skill.NewTriage(), triageCard(cfg.Server.TriagePort), nil), nil
	case roleInsurance:
		return buildAgent(cfg, roleInsurance, cfg.Server.InsurancePort, m, skill.NewInsurance(), insuranceCard(cfg.Server.InsurancePort), nil), nil
	default:
		return nil, fmt.Errorf("unknown role %q (want tools|coordinator|records|triage|insurance)", role)
	}
}

// buildAgent wires the stack every agent role shares: task store, task
// service, RPC gateway. A nil cleanup is normalized to a no-op.
func buildAgent(cfg *config.Config, role, port string, m *cmotel.Metrics, inv skillport.Invoker, card a2a.AgentCard, cleanup func()) *server {
	store := taskstore.New(taskstore.WithTTL(cfg.Tasks.TTL))
	tasks := service.NewTaskService(store, inv,
		service.WithTaskAgent(role),
		service.WithTaskMetrics(m),
	)
	gw := cmhttp.NewGateway(tasks, card)

	r := newRouter(cfg, role)
	r.Use(chimw.Timeout(requestTimeout))
	cmhttp.MountAgentRoutes(r, gw)

	if cleanup == nil {
		cleanup = func() {}
	}
	return &server{role: role, srv: newHTTPServer(port, r), cleanup: cleanup}
}

func buildCoordinator(cfg *config.Config, m *cmotel.Metrics) (*server, error) {
	caller := rpcclient.NewClient(
		rpcclient.WithTimeout(cfg.Agents.Timeout),
		rpcclient.WithBreakers(resilience.NewGroup(cfg.Breaker.Threshold, cfg.Breaker.Cooldown)),
	)
	coord := service.NewCoordinatorService(caller, cfg.Agents, service.WithCoordinatorMetrics(m))

	port := cfg.Server.CoordinatorPort
	return buildAgent(cfg, roleCoordinator, port, m, coord, coordinatorCard(port), nil), nil
}

func buildRecords(ctx context.Context, cfg *config.Config, m *cmotel.Metrics) (*server, error) {
	client, err := dialTools(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			slog.Warn("close mcp client", "error", err)
		}
	}

	port := cfg.Server.RecordsPort
	return buildAgent(cfg, roleRecords, port, m, skill.NewRecords(client), recordsCard(port), cleanup), nil
}

// dialTools performs the MCP handshake against the tools server. The tools
// listener may still be coming up when the whole mesh starts in one process,
// so the handshake is retried briefly before giving up.
func dialTools(ctx context.Context, cfg *config.Config) (*mcp.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		client, err := mcp.NewClient(ctx, cfg.Tools.Endpoint, "caremesh-records", version)
		if err == nil {
			return client, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func buildTools(ctx context.Context, cfg *config.Config, m *cmotel.Metrics) (*server, error) {
	var cleanups []func()
	fail := func(err error) (*server, error) {
		runAll(cleanups)
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	cleanups = append(cleanups, pool.Close)
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fail(fmt.Errorf("migrations: %w", err))
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)
	if err := store.SeedDemoIfEmpty(ctx); err != nil {
		return fail(fmt.Errorf("seed: %w", err))
	}

	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fail(fmt.Errorf("cache: %w", err))
	}
	cleanups = append(cleanups, l1.Close)

	hub := ws.NewHub()
	cleanups = append(cleanups, hub.CloseAll)
	opts := []service.RecordOption{
		service.WithRecordHub(hub),
		service.WithRecordCipher(cfg.Records.EncryptionKey),
		service.WithRecordMetrics(m),
	}

	// NATS is optional: without it the audit trail is hub-only and the
	// patient cache runs in-process only.
	var queue *cmnats.Queue
	patientCache := cache.Cache(l1)
	if cfg.NATS.URL != "" {
		queue, err = cmnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, audit trail disabled", "url", cfg.NATS.URL, "error", err)
			queue = nil
		}
	}
	if queue != nil {
		cleanups = append(cleanups, func() {
			if err := queue.Close(); err != nil {
				slog.Warn("close nats", "error", err)
			}
		})
		opts = append(opts, service.WithRecordQueue(queue))

		kv, err := queue.KeyValue(ctx, patientCacheBucket, cfg.Records.CacheTTL)
		if err != nil {
			slog.Warn("nats kv unavailable, patient cache runs in-process only", "error", err)
		} else {
			patientCache = tiered.New(l1, natskv.New(kv), cfg.Records.CacheTTL)
		}
	}
	opts = append(opts, service.WithRecordCache(patientCache, cfg.Records.CacheTTL))

	records := service.NewRecordService(store, opts...)

	tools := mcp.NewServer(
		mcp.ServerConfig{Name: "caremesh-tools", Version: version},
		mcp.ServerDeps{Records: records},
	)

	r := newRouter(cfg, roleTools)
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Get("/health", toolsHealthHandler(pool, queue))
		r.Mount("/mcp", tools.Handler())
	})
	// Watchers hold their connection open well past any request timeout.
	r.Get("/events/ws", hub.HandleWS)

	port := cfg.Server.ToolsPort
	return &server{
		role:    roleTools,
		srv:     newHTTPServer(port, r),
		cleanup: func() { runAll(cleanups) },
	}, nil
}

// runAll invokes cleanups in reverse order of registration.
func runAll(cleanups []func()) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// newRouter builds the middleware stack shared by every role. The request
// timeout is left to the callers: the tools role keeps its WebSocket route
// outside it.
func newRouter(cfg *config.Config, role string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cmhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cmhttp.RequestID)
	r.Use(cmhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(cmotel.HTTPMiddleware(cfg.Logging.Service + "-" + role))
	}
	return r
}

func newHTTPServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// toolsHealthHandler reports the tools role's dependency health alongside
// the usual ok status.
func toolsHealthHandler(pool *pgxpool.Pool, queue *cmnats.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "connected"}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Postgres = "unreachable"
		}
		if queue == nil || !queue.IsConnected() {
			status.NATS = "disconnected"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// setRolePort overrides the configured listen port for role.
func setRolePort(cfg *config.Config, role, port string) error {
	switch role {
	case roleTools:
		cfg.Server.ToolsPort = port
	case roleCoordinator:
		cfg.Server.CoordinatorPort = port
	case roleRecords:
		cfg.Server.RecordsPort = port
	case roleTriage:
		cfg.Server.TriagePort = port
	case roleInsurance:
		cfg.Server.InsurancePort = port
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}
