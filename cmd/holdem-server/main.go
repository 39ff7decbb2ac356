package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/cardroomlabs/holdem/internal/events"
	"github.com/cardroomlabs/holdem/internal/server"
)

var CLI struct {
	Config   string `short:"c" default:"holdem-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Listen address host (overrides config)"`
	Port     int    `short:"p" help:"Listen port (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadServerConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		kctx.Exit(1)
	}

	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.Port != 0 {
		cfg.Server.Port = CLI.Port
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	logger.Info("starting holdem server", "addr", addr, "tables", len(cfg.Tables))

	clock := quartz.NewReal()
	registry := prometheus.NewRegistry()
	metrics := server.NewMetrics(registry)
	store := events.NewStore(func() time.Time { return clock.Now() })
	cm := server.NewConnectionManager()
	broadcaster := server.NewBroadcaster(cm, logger, metrics)
	timers := server.NewTimerService(clock, logger)
	orch := server.NewOrchestrator(logger, clock, store, timers, broadcaster, metrics)

	for _, tc := range cfg.Tables {
		t := orch.CreateTable(tc)
		logger.Info("table ready",
			"id", t.ID,
			"name", tc.Name,
			"stakes", fmt.Sprintf("%d/%d", tc.SmallBlind, tc.BigBlind),
			"max_players", tc.MaxPlayers)
	}

	srv := server.NewServer(addr, logger, orch, cm, broadcaster, timers, store, metrics, registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		orch.Shutdown()
		broadcaster.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "err", err)
		kctx.Exit(1)
	}
}
