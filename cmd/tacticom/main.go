package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tacticom/internal/admin"
	"tacticom/internal/audit"
	"tacticom/internal/bridge"
	"tacticom/internal/commander"
	"tacticom/internal/commands"
	"tacticom/internal/config"
	"tacticom/internal/llm"
	"tacticom/internal/state"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	bridgeAddr := flag.String("bridge-addr", "", "override bridge listen address")
	adminAddr := flag.String("admin-addr", "", "override admin listen address")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *bridgeAddr != "" {
		cfg.Bridge.Addr = *bridgeAddr
	}
	if *adminAddr != "" {
		cfg.Admin.Addr = *adminAddr
	}

	var aud *audit.Store
	if cfg.AuditDSN != "" {
		aud, err = audit.NewPostgres(cfg.AuditDSN)
		if err != nil {
			log.Warn("audit store fell back to memory", "err", err)
			aud = audit.New()
		}
	} else {
		aud = audit.NewFromEnv()
	}
	defer aud.Close()

	st := state.NewManager(cfg)
	providers := llm.NewManager(cfg.Providers, st.APIKey, nil, log)
	queue := commands.NewQueue(cfg.Decision.MaxCommandsPerBatch, log)
	cmd := commander.New(cfg, st, providers, queue, aud, log)

	bridgeSrv := bridge.NewServer(cmd, st, aud, log)
	bridgeMux := http.NewServeMux()
	bridgeMux.HandleFunc(cfg.Bridge.Path, bridgeSrv.Handler())
	bridgeHTTP := &http.Server{Addr: cfg.Bridge.Addr, Handler: bridgeMux}

	adminSrv := admin.NewServer(cfg.Admin.Addr,
		admin.NewMux(admin.NewHandlers(cmd, st, aud, log)), log)

	errc := make(chan error, 2)
	go func() {
		log.Info("bridge listening", "addr", cfg.Bridge.Addr, "path", cfg.Bridge.Path)
		if err := bridgeHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	go func() {
		if err := adminSrv.Start(); err != nil {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		log.Error("server error", "err", err)
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = bridgeHTTP.Shutdown(ctx)
	_ = adminSrv.Shutdown(ctx)
}
