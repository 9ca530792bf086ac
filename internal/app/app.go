// Package app constructs and runs the bot: config, logging, storage,
// transport, and the admission/broadcast/sweep engines around them.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"gatebot/internal/admission"
	"gatebot/internal/broadcast"
	"gatebot/internal/config"
	"gatebot/internal/dedup"
	"gatebot/internal/health"
	"gatebot/internal/membership"
	"gatebot/internal/router"
	"gatebot/internal/storage"
	"gatebot/internal/sweep"
	"gatebot/internal/transport"
	"gatebot/internal/transport/telegram"
	logx "gatebot/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logsvc *logx.Service
	log    logx.Logger

	store   storage.Store
	adapter transport.Adapter
	sweeper *sweep.Sweeper
	router  *router.Router
	healthd *health.Server

	updates chan transport.Update
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logsvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})

	a := &App{
		cfgm:    cfgm,
		logsvc:  logsvc,
		log:     log,
		updates: make(chan transport.Update, 256),
	}
	if err := a.build(cfg); err != nil {
		_ = logsvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.store = store

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	a.adapter = adapter

	callTimeout, err := config.ParseDurationOrDefault("sweep.call_timeout", cfg.Sweep.CallTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	oracle := membership.NewOracle(membership.Config{
		ChannelID:   cfg.Channel.ID,
		CallTimeout: callTimeout,
	}, adapter, a.log.With(logx.String("comp", "membership")))

	window, err := config.ParseDurationField("dedup.window", cfg.Dedup.Window)
	if err != nil {
		return err
	}
	guard := dedup.New(window, cfg.Dedup.MaxEntries)

	adm := admission.NewController(admission.Config{GroupID: cfg.Group.ID},
		oracle, adapter, store, a.log.With(logx.String("comp", "admission")))

	engine := broadcast.NewEngine(broadcast.Config{
		ChannelID:       cfg.Channel.ID,
		ChannelUsername: cfg.Channel.Username,
		AdminID:         cfg.Admin.ID,
		RatePerSec:      cfg.Broadcast.RatePerSec,
	}, adapter, store, guard, a.log.With(logx.String("comp", "broadcast")))

	a.sweeper = sweep.New(sweep.Config{
		GroupID:     cfg.Group.ID,
		Schedule:    cfg.Sweep.Schedule,
		CallTimeout: callTimeout,
	}, oracle, adapter, store, a.log.With(logx.String("comp", "sweep")))

	a.router = router.New(router.Config{
		AdminID:         cfg.Admin.ID,
		AdminUsername:   cfg.Admin.Username,
		ChannelID:       cfg.Channel.ID,
		ChannelUsername: cfg.Channel.Username,
		GroupID:         cfg.Group.ID,
		GroupInviteLink: cfg.Group.InviteLink,
	}, adapter, adm, engine, a.sweeper, store, a.log.With(logx.String("comp", "router")))

	a.healthd = health.New(health.Config{
		Enabled: cfg.Health.Enabled,
		Addr:    cfg.Health.Addr,
	}, a.log.With(logx.String("comp", "health")))

	return nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return fmt.Errorf("adapter: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(ctx, a.updates)
	}()

	if err := a.sweeper.Start(ctx); err != nil {
		return err
	}
	if err := a.healthd.Start(); err != nil {
		return err
	}

	// Re-apply the logging section when the config file changes on disk.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.cfgm.Watch(ctx, a.log.With(logx.String("comp", "config")), func(cfg *config.Config) {
			a.logsvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
			})
		})
		if err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("gatebot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sweeper.Stop(ctx)
	_ = a.adapter.Stop(ctx)
	_ = a.healthd.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("gatebot stopped")
	return a.logsvc.Close()
}
