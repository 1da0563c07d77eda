// Command inspectord runs the property-inspection assistant: a deterministic
// fast path plus an LLM fallback over one shared tool registry, exposed as a
// JSON chat endpoint and a Twilio WhatsApp webhook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inspection/pkg/ack"
	"inspection/pkg/assist"
	"inspection/pkg/config"
	"inspection/pkg/domain"
	"inspection/pkg/fastpath"
	"inspection/pkg/gateway"
	"inspection/pkg/logx"
	"inspection/pkg/metrics"
	"inspection/pkg/session"
	"inspection/pkg/tools"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides config)")
		seedPath   = flag.String("seed", "", "YAML seed fixture to load at startup (overrides config)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if err := run(*configPath, *addr, *dbPath, *seedPath, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "inspectord: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, dbPath, seedPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if seedPath != "" {
		cfg.Database.Seed = seedPath
	}

	logx.SetDebug(debug, nil)
	logger := logx.NewLogger("inspectord")

	recorder := metrics.NewRecorder()

	store, err := domain.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if cfg.Database.Seed != "" {
		if err := store.LoadSeed(ctx, cfg.Database.Seed); err != nil {
			return fmt.Errorf("failed to load seed %s: %w", cfg.Database.Seed, err)
		}
		logger.Info("loaded seed fixture %s", cfg.Database.Seed)
	}

	sessions := newSessionStore(cfg.Redis, logger)

	env := tools.NewEnv(sessions, store, cfg.DefaultCountryCode)
	registry := tools.NewCatalog(env)
	registry.SetObserver(recorder.Tool)

	fast := fastpath.New(sessions, registry, store, fastpath.Options{
		PlainYesNo: cfg.FastPath.PlainYesNo,
	})

	var assistant gateway.Assistant
	if cfg.LLM.APIKey != "" {
		orchestrator, err := assist.NewFromConfig(&cfg.LLM, registry)
		if err != nil {
			return err
		}
		orchestrator.SetToolRoundObserver(recorder.LLMRound)
		assistant = orchestrator
		logger.Info("assistant enabled: %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	} else {
		logger.Warn("no LLM API key set, running fast path only")
	}

	var sender gateway.Sender
	if cfg.Twilio.AccountSID != "" {
		twilioSender, err := gateway.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
		if err != nil {
			return err
		}
		sender = twilioSender
		logger.Info("twilio sender enabled from %s", cfg.Twilio.From)
	} else {
		sender = gateway.NewLogSender()
	}

	acks := ack.New(cfg.Ack.Enabled, cfg.Ack.Delay(), cfg.Ack.LeadTime())
	turn := gateway.NewTurn(fast, assistant, acks, cfg.Ack.Message, sender, recorder)

	mux := http.NewServeMux()
	mux.Handle("/v1/chat", gateway.NewChatHandler(turn))
	mux.Handle("/webhooks/whatsapp", gateway.NewWhatsAppHandler(turn, sender))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newSessionStore picks redis when configured and falls back to the
// in-memory store otherwise.
func newSessionStore(cfg config.RedisConfig, logger *logx.Logger) session.Store {
	if cfg.Addr == "" {
		logger.Info("no redis configured, using in-memory session store")
		return session.NewMemoryStore()
	}
	store, err := session.NewRedisStore(cfg.Addr, cfg.DB, cfg.KeyPrefix)
	if err != nil {
		logger.Warn("redis unavailable (%v), falling back to in-memory sessions", err)
		return session.NewMemoryStore()
	}
	logger.Info("using redis session store at %s", cfg.Addr)
	return store
}
