package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/providerfactory"
	"mercator-hq/ganymede/pkg/server"
	"mercator-hq/ganymede/pkg/tasks"
	"mercator-hq/ganymede/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede server",
	Long: `Start the Ganymede server with the specified configuration.

The server exposes background completion tasks under /v1/responses, model
catalog queries under /v1/models, and operational status endpoints under
/status.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8080

  # Validate config without starting the server
  ganymede run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload gateway options when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	reg, err := providerfactory.BuildRegistry(cfg.Providers, logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gw := gateway.New(reg, cfg.Gateway, logger, promReg)
	defer gw.Shutdown()

	var store tasks.Store
	if cfg.Tasks.StorePath != "" {
		store, err = tasks.NewSQLiteStore(cfg.Tasks.StorePath)
		if err != nil {
			return err
		}
	}

	manager := tasks.NewManager(gw, reg, store, logger)
	defer manager.Close()

	scheduler := cron.New()
	if cfg.Catalog.RefreshSchedule != "" && reg.Universal() != "" {
		if err := reg.ScheduleRefresh(scheduler, cfg.Catalog.RefreshSchedule); err != nil {
			return fmt.Errorf("schedule catalog refresh: %w", err)
		}
	}
	if cfg.Tasks.PruneSchedule != "" {
		pruneAfter := cfg.Tasks.PruneAfter
		if _, err := scheduler.AddFunc(cfg.Tasks.PruneSchedule, func() {
			manager.PruneTerminal(pruneAfter)
		}); err != nil {
			return fmt.Errorf("schedule task pruning: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			return err
		}
		go watcher.Watch(func(next *config.Config) {
			gw.UpdateConfig(patchFromOptions(next.Gateway))
		})
		defer watcher.Stop()
	}

	srv := server.New(cfg.Server, gw, reg, manager, promReg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// patchFromOptions converts a full options struct into a patch touching
// every runtime-adjustable field, for config hot reload.
func patchFromOptions(o gateway.Options) *gateway.OptionsPatch {
	return &gateway.OptionsPatch{
		Strategy:            &o.Strategy,
		EnableFallback:      &o.EnableFallback,
		MaxFallbackAttempts: &o.MaxFallbackAttempts,
		FallbackDelay:       &o.FallbackDelay,
		RateLimit:           &o.RateLimit,
		RateLimitWindow:     &o.RateLimitWindow,
		CacheEnabled:        &o.CacheEnabled,
		CacheTTL:            &o.CacheTTL,
		BreakerThreshold:    &o.BreakerThreshold,
		BreakerTimeout:      &o.BreakerTimeout,
		MaxCostPerRequest:   &o.MaxCostPerRequest,
		BudgetAlert:         &o.BudgetAlert,
	}
}
