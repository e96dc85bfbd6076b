// blackboxd is the voice credential assistant daemon. main wires the
// dependencies and owns the process lifecycle; all behavior lives in the
// internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"blackbox/internal/catalog"
	"blackbox/internal/health"
	"blackbox/internal/orchestrator"
	"blackbox/internal/platform/config"
	"blackbox/internal/platform/httpserver"
	"blackbox/internal/platform/logger"
	"blackbox/internal/platform/metrics"
	"blackbox/internal/resolve"
	"blackbox/internal/resolve/llm"
	"blackbox/internal/session"
	"blackbox/internal/transport/ws"
	"blackbox/internal/vault"
)

// idleTick bounds how late after the idle deadline the auto-lock can fire.
const idleTick = 5 * time.Second

func main() {
	configPath := pflag.String("config", "/mnt/nvme/blackbox/config.yaml", "path to the daemon config file")
	envFile := pflag.String("env-file", "", "optional .env file with BLACKBOX_* overrides")
	logLevel := pflag.String("log-level", "", "override the configured log level")
	pflag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fatal("load env file: " + err.Error())
		}
	}

	cfg, err := config.FromFile(*configPath)
	if err != nil {
		fatal(err.Error())
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log := logger.New(cfg.Log.Level)
	m := metrics.New()

	sites, err := catalog.OpenFileStore(cfg.Catalog.Path)
	if err != nil {
		log.Error("open catalog", "path", cfg.Catalog.Path, "err", err)
		os.Exit(1)
	}

	vaultStore, err := vault.OpenSQLiteStore(cfg.Vault.Path)
	if err != nil {
		log.Error("open vault store", "path", cfg.Vault.Path, "err", err)
		os.Exit(1)
	}
	defer vaultStore.Close()

	sess := session.NewManager(cfg.Vault.IdleTimeout(),
		session.WithLogger(log),
		session.WithAutoLockHook(m.IdleLocks.Inc))

	vaultSvc, err := vault.New(vaultStore, sess,
		vault.WithLogger(log),
		vault.WithMetrics(m),
		vault.WithKDFParams(vault.KDFParams{
			TimeCost:    cfg.Vault.KDF.TimeCost,
			MemoryKiB:   cfg.Vault.KDF.MemoryKiB,
			Parallelism: cfg.Vault.KDF.Parallelism,
		}))
	if err != nil {
		log.Error("build vault", "err", err)
		os.Exit(1)
	}

	engineOpts := []resolve.Option{resolve.WithLogger(log), resolve.WithMetrics(m)}
	if cfg.LLM.Enabled {
		engineOpts = append(engineOpts,
			resolve.WithDisambiguator(llm.New(cfg.LLM.BaseURL, cfg.LLM.Model), cfg.LLM.Timeout()))
		log.Info("disambiguation model enabled", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
	}
	engine, err := resolve.NewEngine(sites, resolve.Params{
		AcceptThreshold:  cfg.Resolver.AcceptThreshold,
		LLMThreshold:     cfg.Resolver.LLMThreshold,
		ConfirmThreshold: cfg.Resolver.ConfirmThreshold,
		LiteralWeight:    cfg.Resolver.LiteralWeight,
		PhoneticWeight:   cfg.Resolver.PhoneticWeight,
		TopK:             cfg.Resolver.TopK,
		HeuristicBudget:  cfg.Resolver.HeuristicBudget(),
	}, engineOpts...)
	if err != nil {
		log.Error("build resolution engine", "err", err)
		os.Exit(1)
	}

	orch, err := orchestrator.New(engine, vaultSvc, sites,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(m),
		orchestrator.WithTurnDeadline(cfg.Turn.Deadline()))
	if err != nil {
		log.Error("build orchestrator", "err", err)
		os.Exit(1)
	}

	bridge, err := ws.New(orch, vaultSvc, sess, ws.WithLogger(log))
	if err != nil {
		log.Error("build ws bridge", "err", err)
		os.Exit(1)
	}

	wsSrv := httpserver.New(cfg.Listen.WS, bridge)
	statusSrv := httpserver.New(cfg.Listen.Status, health.NewRouter(sess, vaultSvc, sites, log))

	errCh := make(chan error, 2)
	go func() {
		log.Info("ws bridge listening", "addr", cfg.Listen.WS)
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info("status listener", "addr", cfg.Listen.Status)
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// The ticker guarantees the idle lock fires even when no turn arrives
	// to trip the deadline check inside WithKey.
	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				sess.ExpireIfIdle(now)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("listener failed", "err", err)
	}
	close(done)

	// Lock first so the key is wiped even if shutdown stalls.
	vaultSvc.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wsSrv.Shutdown(ctx); err != nil {
		log.Warn("ws shutdown", "err", err)
	}
	if err := statusSrv.Shutdown(ctx); err != nil {
		log.Warn("status shutdown", "err", err)
	}
	log.Info("bye")
}

func fatal(msg string) {
	os.Stderr.WriteString("blackboxd: " + msg + "\n")
	os.Exit(1)
}
