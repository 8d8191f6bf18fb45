// Package main implements the lvmgated daemon. It exposes the LVM2
// command gateway over an HTTP API and, when configured, NATS
// request/reply, with Prometheus metrics on a separate port.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/lvmgate/config"
	httpgw "github.com/c360/lvmgate/gateway/http"
	"github.com/c360/lvmgate/health"
	"github.com/c360/lvmgate/lvm2"
	"github.com/c360/lvmgate/metric"
	"github.com/c360/lvmgate/natsclient"
	"github.com/c360/lvmgate/service"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "lvmgated"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting lvmgated (LVM2 command gateway)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}
	safeCfg := config.NewSafeConfig(cfg)

	ctx := context.Background()
	metricsRegistry := metric.NewMetricsRegistry()

	// The engine handle is released exactly once, on the way out.
	defer lvm2.Teardown()

	gateway := lvm2.NewGateway(
		lvm2.WithLogger(logger.With("component", "lvm2-gateway")),
		lvm2.WithMetrics(metricsRegistry),
		lvm2.WithReportFlags(cfg.LVM.ReportFlags),
	)

	// Metrics server
	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				slog.Error("Failed to stop metrics server", "error", err)
			}
		}()
		slog.Info("Metrics server started", "address", metricsServer.Address())
	}

	// NATS command service, only when URLs are configured
	var natsClient *natsclient.Client
	var commandService *service.CommandService
	if len(cfg.NATS.URLs) > 0 {
		natsClient, commandService, err = setupNATS(ctx, safeCfg, cfg, gateway, logger, metricsRegistry)
		if err != nil {
			return err
		}
		defer func() {
			_ = commandService.Stop(5 * time.Second)
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := natsClient.Close(closeCtx); err != nil {
				slog.Error("Failed to close NATS client", "error", err)
			}
		}()
	}

	// HTTP API
	var httpServer *httpgw.Server
	if cfg.HTTP.Enabled {
		httpServer, err = httpgw.NewServer(safeCfg, gateway,
			httpgw.WithLogger(logger),
			httpgw.WithMetrics(metricsRegistry),
			httpgw.WithHealthFunc(healthFunc(commandService, natsClient)),
		)
		if err != nil {
			return fmt.Errorf("create HTTP server: %w", err)
		}
		if err := httpServer.Start(ctx); err != nil {
			return fmt.Errorf("start HTTP server: %w", err)
		}
		defer func() {
			if err := httpServer.Stop(cliCfg.ShutdownTimeout); err != nil {
				slog.Error("Failed to stop HTTP server", "error", err)
			}
		}()
	}

	slog.Info("lvmgated started successfully")

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()
	<-signalCtx.Done()

	slog.Info("Received shutdown signal")
	return nil
}

// setupNATS connects the NATS client and starts the command service
func setupNATS(
	ctx context.Context,
	safeCfg *config.SafeConfig,
	cfg *config.Config,
	gateway *lvm2.Gateway,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*natsclient.Client, *service.CommandService, error) {
	natsClient, err := natsclient.NewClient(cfg.NATS.URLs,
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metricsRegistry.CoreMetrics()),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password),
		natsclient.WithToken(cfg.NATS.Token),
		natsclient.WithName(appName),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.Connect(connectCtx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	commandService, err := service.NewCommandService(safeCfg, natsClient, gateway,
		service.WithLogger(logger),
		service.WithMetrics(metricsRegistry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create command service: %w", err)
	}
	if err := commandService.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start command service: %w", err)
	}

	return natsClient, commandService, nil
}

// healthFunc aggregates engine, service and connection health for the
// HTTP health endpoint.
func healthFunc(commandService *service.CommandService, natsClient *natsclient.Client) httpgw.HealthFunc {
	monitor := health.NewMonitor()
	return func() health.Status {
		monitor.Update("lvm2-engine", service.EngineHealth())
		if commandService != nil {
			monitor.Update(commandService.Name(), commandService.Health())
		}
		if natsClient != nil {
			if natsClient.IsHealthy() {
				monitor.UpdateHealthy("nats", "Connected")
			} else {
				monitor.UpdateDegraded("nats", "Not connected")
			}
		}
		return monitor.AggregateHealth(appName)
	}
}
