package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/tracelens/internal/config"
	"github.com/HerbHall/tracelens/internal/console"
	"github.com/HerbHall/tracelens/internal/logcapture"
	"github.com/HerbHall/tracelens/internal/perf/host"
	"github.com/HerbHall/tracelens/internal/perf/monitor"
	"github.com/HerbHall/tracelens/internal/plugin"
	"github.com/HerbHall/tracelens/internal/server"
	"github.com/HerbHall/tracelens/internal/version"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tracelens:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tracelens", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to configuration file")
	addr := flags.String("addr", "", "listen address (overrides server.host and server.port)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := flags.Bool("version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.Info())
		return nil
	}

	v, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
		return fmt.Errorf("bind log-level flag: %w", err)
	}

	logger, err := newLogger(v.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Log capture sees both the console facade and every zap record written
	// through appLogger. Perf reporters log through the base logger so their
	// own output never lands in the capture buffer.
	cons := console.New(logger.Named("app"))
	svc := logcapture.New(cons, logger.Named("logcapture"), logcapture.DefaultOptions())
	appLogger := logger.WithOptions(zap.WrapCore(svc.Core))

	appLogger.Info("tracelens starting", zap.String("version", version.Short()))

	rt := host.NewRuntime(host.RuntimeOptions{
		URL:               v.GetString("app.url"),
		UserAgent:         version.UserAgent(uuid.NewString()),
		FrameRate:         v.GetInt("app.frame_rate"),
		LongTaskThreshold: v.GetDuration("app.long_task_threshold"),
		Logger:            logger.Named("host"),
	})
	rt.MarkNavigation(host.PhaseRequestStart)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		logcapture.NewCollector(svc),
	)

	registry := plugin.NewRegistry(logger)
	plugins := []plugin.Plugin{
		logcapture.NewModule(svc),
		monitor.NewModule(monitor.ModuleOptions{
			Host:       rt,
			Registerer: promReg,
			HTTPClient: &http.Client{Transport: rt.Transport(nil), Timeout: 10 * time.Second},
		}),
	}
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := registry.InitAll(v); err != nil {
		return err
	}
	rt.MarkNavigation(host.PhaseResponseStart)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	rt.MarkNavigation(host.PhaseDOMContentLoadedEventEnd)

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			appLogger.Info("configuration changed, reloading", zap.String("file", e.Name))
			registry.ReloadAll(v)
		})
		v.WatchConfig()
	}

	listen := *addr
	if listen == "" {
		listen = v.GetString("server.host") + ":" + v.GetString("server.port")
	}
	srv := server.New(listen, registry, promReg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cons.Warn("tracelens shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		registry.StopAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	rt.MarkNavigation(host.PhaseLoadEventEnd)
	cons.Info("tracelens ready, listening on", listen)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("tracelens stopped")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
