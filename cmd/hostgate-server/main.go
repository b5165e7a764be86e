package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yndnr/hostgate/internal/core/service"
	"github.com/yndnr/hostgate/internal/infra/buildinfo"
	"github.com/yndnr/hostgate/internal/infra/confine"
	"github.com/yndnr/hostgate/internal/infra/confloader"
	"github.com/yndnr/hostgate/internal/infra/shutdown"
	"github.com/yndnr/hostgate/internal/server/config"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "hostgate.json", "Configuration file, relative to -root")
		rootDir     = flag.String("root", ".", "Server root holding configuration, TLS material and plugins")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("hostgate-server " + buildinfo.String())
		return nil
	}

	log, err := logger.New(logConfig(*rootDir, *configFile))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting hostgate-server",
		"version", info.Version,
		"commit", info.Commit,
		"root", *rootDir,
		"config", *configFile)

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)

	ctrl, err := service.New(service.Options{
		ConfigPath: *configFile,
		Root:       *rootDir,
		EnvPrefix:  confloader.DefaultEnvPrefix,
		Logger:     log,
		Metrics:    metric.Global(),
		Fatal:      shutdownHandler.Fail,
	})
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	if err := ctrl.Start(context.Background()); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(fmt.Errorf("start: %w", err), ctrl.Shutdown(shutdownCtx))
	}

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down listeners")
		return ctrl.Shutdown(ctx)
	})
	shutdownHandler.OnReload(func() {
		log.Info("reload requested by signal")
		_, _ = ctrl.Reconfig()
	})

	log.Info("server started",
		"plain", ctrl.PlainAddr(),
		"secure", ctrl.SecureAddr(),
		"admin", ctrl.AdminAddr(),
		"ops", ctrl.OpsAddr())
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// logConfig reads the log section ahead of the controller so that startup
// messages already use the configured format. Anything unreadable falls
// back to the defaults; the controller reports the problem itself.
func logConfig(rootDir, configFile string) logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Output = os.Stdout

	root, err := confine.NewRoot(rootDir)
	if err != nil {
		return cfg
	}
	path, err := root.Resolve(configFile)
	if err != nil {
		return cfg
	}
	parsed, err := config.Parse(path, confloader.DefaultEnvPrefix)
	if err != nil {
		return cfg
	}
	if parsed.Log.Level != "" {
		cfg.Level = parsed.Log.Level
	}
	if parsed.Log.Format != "" {
		cfg.Format = parsed.Log.Format
	}
	return cfg
}
