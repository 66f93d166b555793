package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/config"
)

const (
	version           = "v0.1.0"
	defaultConfigPath = "config/camera-render.yaml"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	logFormat := flag.String("log-format", "json", "Log format: json or text")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("camera-render %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch *logFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log format %s (must be json or text)\n", *logFormat)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting camera-render",
		"version", version,
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to create camera-render", "error", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.Run(ctx)
	}()

	runErr := waitForExit(sigChan, errChan, cancel)
	if runErr != nil {
		slog.Error("capture failed", "error", runErr)
	}

	slog.Info("shutting down gracefully", "timeout", cfg.ShutdownTimeout())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}

	slog.Info("camera-render stopped successfully")
}

// waitForExit blocks until a shutdown signal arrives or Run returns on its
// own, and cancels the run context either way so background goroutines
// stop before Shutdown waits for them.
func waitForExit(sigChan <-chan os.Signal, errChan <-chan error, cancel context.CancelFunc) error {
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		runErr = <-errChan
	case runErr = <-errChan:
	}
	cancel()
	return runErr
}
