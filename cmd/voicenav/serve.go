package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/app"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/observe"
)

func serveCmd() *cobra.Command {
	var (
		configPath    string
		watchInterval time.Duration
		noWatch       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Long: `Run the HTTP and WebSocket server.

The config file is polled for changes; the log level, matcher options,
corrections and extra phrases are applied without a restart. SIGHUP forces
an immediate reload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, watchInterval, noWatch)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().DurationVar(&watchInterval, "watch-interval", config.DefaultWatchInterval, "how often to poll the config file")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable config hot reload")
	return cmd
}

func runServe(parent context.Context, configPath string, watchInterval time.Duration, noWatch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, level, logFile := newLogger(cfg.Server)
	defer logFile.Close()
	slog.SetDefault(logger)

	slog.Info("voicenav starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cmp.Or(cfg.Telemetry.ServiceVersion, version),
		SampleRatio:    cfg.Telemetry.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(ctx, cfg, app.WithLogLevel(level))
	if err != nil {
		return err
	}

	if !noWatch {
		watcher, err := config.NewWatcher(configPath, func(_, next *config.Config) {
			if err := application.ApplyConfig(next); err != nil {
				slog.Error("config reload failed", "err", err)
			}
		}, config.WithInterval(watchInterval))
		if err != nil {
			return err
		}
		defer watcher.Stop()
		go reloadOnHangup(ctx, watcher)
	}

	slog.Info("server ready; press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}

// reloadOnHangup forces a config reload on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			slog.Info("SIGHUP received, reloading config")
			if err := w.Reload(); err != nil {
				slog.Error("config reload failed", "err", err)
			}
		}
	}
}
