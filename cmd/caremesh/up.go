package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cmotel "github.com/Strob0t/CareMesh/internal/adapter/otel"
	"github.com/Strob0t/CareMesh/internal/config"
	"github.com/Strob0t/CareMesh/internal/logger"
	"github.com/Strob0t/CareMesh/internal/skill"
)

// runUp starts all five roles in one process under a single errgroup. The
// first listener failure or signal drains every server. The tools listener
// starts before the records role dials it over MCP.
func runUp(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	if flags.Role != nil || flags.Port != nil {
		return errors.New("up runs every role; use serve for a single one")
	}

	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded", "path", path, "log_level", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := cmotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
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

	g, ctx := errgroup.WithContext(ctx)

	start := func(s *server) {
		g.Go(func() error {
			slog.Info("starting server", "role", s.role, "addr", s.srv.Addr)
			if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", s.role, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.srv.Shutdown(shutdownCtx)
		})
	}

	// Abandon the already started listeners when a later build fails.
	abort := func(err error) error {
		stop()
		_ = g.Wait()
		return err
	}

	tools, err := buildTools(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer tools.cleanup()
	start(tools)

	coordinator, err := buildCoordinator(cfg, metrics)
	if err != nil {
		return abort(err)
	}
	defer coordinator.cleanup()
	start(coordinator)

	for _, s := range []*server{
		buildAgent(cfg, roleTriage, cfg.Server.TriagePort, metrics, skill.NewTriage(), triageCard(cfg.Server.TriagePort), nil),
		buildAgent(cfg, roleInsurance, cfg.Server.InsurancePort, metrics, skill.NewInsurance(), insuranceCard(cfg.Server.InsurancePort), nil),
	} {
		start(s)
	}

	// Last: the records role dials the tools listener started above.
	records, err := buildRecords(ctx, cfg, metrics)
	if err != nil {
		return abort(err)
	}
	defer records.cleanup()
	start(records)

	return g.Wait()
}
