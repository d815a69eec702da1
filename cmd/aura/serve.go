package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/auralabs/aura/pkg/agent"
	"github.com/auralabs/aura/pkg/bus"
	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/latex"
	"github.com/auralabs/aura/pkg/logging"
	"github.com/auralabs/aura/pkg/notify"
	"github.com/auralabs/aura/pkg/provider"
	"github.com/auralabs/aura/pkg/research"
	"github.com/auralabs/aura/pkg/server"
	"github.com/auralabs/aura/pkg/storage"
	"github.com/auralabs/aura/pkg/tools"
)

// lateDecider lets the Telegram forwarder act on the store even though
// the forwarder must be constructed first (the hub takes its forwarders
// before the store takes the hub).
type lateDecider struct {
	store atomic.Pointer[hitl.Store]
}

func (d *lateDecider) Approve(operationID string, modifiedArgs map[string]any) error {
	s := d.store.Load()
	if s == nil {
		return fmt.Errorf("store not ready")
	}
	return s.Approve(operationID, modifiedArgs)
}

func (d *lateDecider) Reject(operationID, reason string) error {
	s := d.store.Load()
	if s == nil {
		return fmt.Errorf("store not ready")
	}
	return s.Reject(operationID, reason)
}

func runServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (default ~/.aura/config.yaml)")
	bind := fs.String("bind", "", "override the bind address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}

	logger, err := logging.New(cfg.Logging.Dir, ulid.Make().String())
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	db, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	var eventBus bus.MessageBus
	switch cfg.Bus.Kind {
	case "nats":
		eventBus, err = bus.NewNATSBus(bus.Config{URL: cfg.Bus.URL})
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
	default:
		eventBus = bus.NewMemoryBus()
	}
	defer eventBus.Close()

	decider := &lateDecider{}
	forwarders := []notify.Forwarder{notify.NewBusForwarder(eventBus, logger)}
	var telegram *notify.TelegramForwarder
	if cfg.Notify.SlackWebhook != "" {
		slack, err := notify.NewSlackForwarder(notify.SlackConfig{
			WebhookURL: cfg.Notify.SlackWebhook,
			Channel:    cfg.Notify.SlackChannel,
		}, logger)
		if err != nil {
			return fmt.Errorf("configure slack: %w", err)
		}
		forwarders = append(forwarders, slack)
	}
	if cfg.Notify.TelegramBotToken != "" {
		telegram, err = notify.NewTelegramForwarder(notify.TelegramConfig{
			BotToken: cfg.Notify.TelegramBotToken,
			ChatID:   cfg.Notify.TelegramChatID,
		}, decider, logger)
		if err != nil {
			return fmt.Errorf("configure telegram: %w", err)
		}
		forwarders = append(forwarders, telegram)
	}

	hub := notify.NewHub(logger, forwarders...)
	auditListener := storage.NewAuditListener(db, logger)
	waiters := hitl.NewWaiters()
	metricsListener := server.NewMetricsListener()

	store := hitl.NewStore(hitl.StoreConfig{
		DefaultTimeout: cfg.Approval.Timeout,
		Retention:      cfg.Approval.Retention,
	}, hub, auditListener, waiters, metricsListener)
	decider.store.Store(store)

	registry := tools.NewRegistry()
	gate := hitl.NewGate(store, registry, waiters,
		hitl.GateMode(cfg.Approval.Mode), cfg.Approval.BlockTimeout)
	executor := hitl.NewExecutor(store, hub, logger)
	sweeper := hitl.NewSweeper(store, cfg.Approval.SweepInterval, logger)

	compiler := latex.NewCommandCompiler(cfg.Latex.MaxConcurrent, cfg.Latex.Timeout, logger)
	arxiv := research.NewArxivClient(logger)
	providers := provider.NewManager(cfg.Providers.OpenRouterKey, cfg.Providers.Custom, cfg.Providers.Active)
	ag := agent.New(providers, registry, gate, logger)
	sessions := agent.NewSessionManager()

	srv := server.New(server.Deps{
		Config:    cfg,
		Store:     store,
		Executor:  executor,
		Hub:       hub,
		Audit:     db,
		Providers: providers,
		Compiler:  compiler,
		Arxiv:     arxiv,
		Agent:     ag,
		Sessions:  sessions,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error { return sweeper.Run(ctx) })
	if telegram != nil {
		g.Go(func() error { return telegram.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info(logging.CategorySession, "serve", "backend running", map[string]any{
		"bind": cfg.Server.Bind,
		"mode": cfg.Approval.Mode,
		"bus":  cfg.Bus.Kind,
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
