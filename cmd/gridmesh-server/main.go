package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/gridmesh/internal/infra/buildinfo"
	"github.com/yndnr/gridmesh/internal/infra/confloader"
	"github.com/yndnr/gridmesh/internal/infra/oom"
	"github.com/yndnr/gridmesh/internal/infra/shutdown"
	"github.com/yndnr/gridmesh/internal/node"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
	"github.com/yndnr/gridmesh/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	overrides := map[string]any{}
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Func("set", "Override a configuration key, e.g. -set log.level=debug (repeatable)", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return fmt.Errorf("want key=value, got %q", s)
		}
		overrides[key] = value
		return nil
	})
	flag.Parse()

	if *showVersion {
		fmt.Printf("gridmesh-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting gridmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"go", info.GoVersion,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	oom.SetHandler(oom.NewFreeMemoryHandler(log))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)
	n, err := node.New(node.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: metric.Global(),
		OnTerminate: func(err error) {
			shutdownHandler.Trigger(shutdown.Immediate, err)
		},
	})
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}
	shutdownHandler.OnShutdown(n.Shutdown)

	if err := n.Start(context.Background()); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	var g errgroup.Group
	if *configFile != "" {
		w, err := watchConfig(*configFile, overrides, log)
		if err != nil {
			log.Warn("configuration reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error { return w.Stop() })
			g.Go(func() error {
				w.Start()
				return nil
			})
		}
	}

	g.Go(func() error {
		log.Info("node running, press Ctrl+C to stop", "address", n.ThisAddress().String())
		req, err := shutdownHandler.Wait()
		if err != nil {
			log.Error("shutdown error", "error", err)
		}
		if req.Mode == shutdown.Immediate && req.Reason != nil {
			return errors.Join(fmt.Errorf("node terminated: %w", req.Reason), err)
		}
		if err == nil {
			log.Info("node stopped gracefully")
		}
		return err
	})
	return g.Wait()
}

// loadConfig layers the file, GRIDMESH_ environment variables and -set
// overrides on top of the defaults and verifies the result.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// watchConfig applies log level changes from the configuration file while
// the node runs. Other settings need a restart.
func watchConfig(configFile string, overrides map[string]any, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(configFile); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := loadConfig(configFile, overrides)
		if err != nil {
			log.Warn("configuration reload failed", "error", err)
			return
		}
		if level := logger.LevelName(logger.ParseLevel(cfg.Log.Level)); level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", level)
		}
	})
	return w, nil
}
