// Command flowd runs the flow controller daemon: it accepts task
// submissions over HTTP, drives each flow through the five-stage
// pipeline, and serves record, status, and event lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/cache"
	"github.com/fyrsmithlabs/flowd/internal/config"
	"github.com/fyrsmithlabs/flowd/internal/consult"
	"github.com/fyrsmithlabs/flowd/internal/controller"
	"github.com/fyrsmithlabs/flowd/internal/events"
	"github.com/fyrsmithlabs/flowd/internal/executor"
	"github.com/fyrsmithlabs/flowd/internal/flow"
	"github.com/fyrsmithlabs/flowd/internal/gate"
	"github.com/fyrsmithlabs/flowd/internal/httpapi"
	"github.com/fyrsmithlabs/flowd/internal/incident"
	"github.com/fyrsmithlabs/flowd/internal/report"
	"github.com/fyrsmithlabs/flowd/internal/telemetry"
	"github.com/fyrsmithlabs/flowd/internal/vcs"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flowd %s\n", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "flowd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting flowd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
	)

	ctx := context.Background()

	var tel *telemetry.Provider
	if cfg.Telemetry.Enabled {
		tel, err = telemetry.Init(ctx, telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Endpoint:       cfg.Telemetry.Endpoint,
			Protocol:       cfg.Telemetry.Protocol,
			Insecure:       cfg.Telemetry.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		logger.Info("telemetry enabled", zap.String("endpoint", cfg.Telemetry.Endpoint))
	}

	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Close()
		logger.Info("nats connected", zap.String("url", cfg.NATS.URL))
	}

	ctrl, err := buildController(ctx, cfg, nc, logger)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(ctrl, nc, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	server.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	if err := ctrl.Close(shutdownCtx); err != nil {
		logger.Error("controller shutdown failed", zap.Error(err))
	}
	if tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", zap.Error(err))
		}
	}

	logger.Info("flowd stopped")
	return nil
}

// buildController wires the pipeline collaborators from config. NATS
// backed components degrade to log-only variants when the connection
// is absent.
func buildController(ctx context.Context, cfg *config.Config, nc *nats.Conn, logger *zap.Logger) (*controller.Controller, error) {
	coordinator, err := consult.NewCoordinator(
		consult.DefaultAdvisors(),
		cfg.Consult.AdvisorTimeout.Duration(),
		logger.Named("consult"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	workspaceDir := filepath.Join(cfg.Workspace.RepoPath, cfg.Workspace.Dir)
	registry, err := executor.NewRegistry(executor.DefaultExecutors(executor.Workspace{
		Dir:    workspaceDir,
		Logger: logger.Named("executor"),
	})...)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor registry: %w", err)
	}

	gateCfg := gate.DefaultConfig()
	gateCfg.Threshold = cfg.Gate.Threshold
	gateCfg.MarkerPenalty = cfg.Gate.MarkerPenalty
	evaluator := gate.NewEvaluator(gateCfg, logger.Named("gate"))

	var knowledge report.KnowledgeStore
	if nc != nil {
		knowledge, err = report.NewNATSStore(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create knowledge store: %w", err)
		}
	} else {
		knowledge = report.NewLogStore(logger.Named("knowledge"))
	}
	reports := report.NewGenerator(knowledge, cfg.Gate.Threshold, logger.Named("report"))

	automation, err := vcs.NewGitAutomation(cfg.Workspace.RepoPath, logger.Named("vcs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create git automation: %w", err)
	}

	var reporter incident.Reporter
	switch {
	case cfg.GitHub.Enabled:
		reporter, err = incident.NewGitHubReporter(ctx,
			cfg.GitHub.Token.Value(), cfg.GitHub.Owner, cfg.GitHub.Repo,
			logger.Named("incident"))
		if err != nil {
			return nil, fmt.Errorf("failed to create github reporter: %w", err)
		}
	case nc != nil:
		reporter, err = incident.NewNATSReporter(nc, logger.Named("incident"))
		if err != nil {
			return nil, fmt.Errorf("failed to create nats reporter: %w", err)
		}
	default:
		reporter = incident.NewLogReporter(logger.Named("incident"))
	}

	var publisher *events.Publisher
	if nc != nil {
		publisher, err = events.NewPublisher(nc, logger.Named("events"))
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
	}

	statusCache := cache.NewMemoryCache(cfg.Cache.SweepInterval.Duration())

	ctrl, err := controller.New(controller.Config{
		StatusTTL:  cfg.Cache.StatusTTL.Duration(),
		FailOnGate: cfg.Gate.FailOnGate,
	}, controller.Deps{
		Store:       flow.NewMemoryStore(),
		Cache:       statusCache,
		Coordinator: coordinator,
		Executors:   registry,
		Gate:        evaluator,
		Reports:     reports,
		Automation:  automation,
		Incidents:   reporter,
		Events:      publisher,
		Logger:      logger.Named("controller"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	return ctrl, nil
}
