// Package app wires the relay pipeline together and owns its lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"trackrelay/internal/config"
	"trackrelay/internal/gate"
	"trackrelay/internal/relay"
	"trackrelay/internal/server"
	"trackrelay/internal/storage"
	"trackrelay/internal/telegram"
	logx "trackrelay/pkg/logx"
)

type App struct {
	cfg *config.Config
	log logx.Logger

	store   storage.Store // may be nil
	tg      *telegram.Client
	tracker *relay.Tracker
	queue   *relay.Queue
	gate    *gate.Gate
	srv     *server.Server
	cron    *cron.Cron
}

func New(cfg *config.Config, log logx.Logger) (*App, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	a := &App{cfg: cfg, log: log}

	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
	}

	tg, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		Channel: cfg.Telegram.Channel,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	a.tg = tg

	quiet, err := config.ParseDurationOrDefault("relay.quiet_interval", cfg.Relay.QuietInterval, relay.DefaultQuietInterval)
	if err != nil {
		return nil, err
	}
	pace, err := config.ParseDurationOrDefault("relay.pace", cfg.Relay.Pace, relay.DefaultPace)
	if err != nil {
		return nil, err
	}

	a.tracker = &relay.Tracker{}
	disp := relay.NewDispatcher(tg, a.tracker, cfg.Telegram.Channel, pace, a.store,
		log.With(logx.String("comp", "dispatch")))
	a.queue = relay.NewQueue(quiet, disp, log.With(logx.String("comp", "queue")))
	a.gate = gate.New(cfg.Telegram.OwnerChatID, a.queue, tg, a.store,
		log.With(logx.String("comp", "gate")))

	readTO, err := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	if err != nil {
		return nil, err
	}
	writeTO, err := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	if err != nil {
		return nil, err
	}
	a.srv = server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  readTO,
		WriteTimeout: writeTO,
	}, cfg.Telegram.Token, a.gate, log.With(logx.String("comp", "http")))

	if err := a.setupRetention(); err != nil {
		return nil, err
	}

	return a, nil
}

// Start registers the webhook (fatal on failure: the bot is deaf without it)
// and brings up the HTTP server and background jobs.
func (a *App) Start(ctx context.Context) error {
	a.queue.Start(ctx)

	hookURL := a.cfg.Telegram.PublicURL + "/" + a.cfg.Telegram.Token
	if err := a.tg.SetWebhook(ctx, hookURL); err != nil {
		return fmt.Errorf("webhook registration: %w", err)
	}

	if err := a.srv.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	if a.cron != nil {
		a.cron.Start()
	}

	a.log.Info("trackrelay started",
		logx.String("channel", a.cfg.Telegram.Channel),
		logx.Int64("owner", a.cfg.Telegram.OwnerChatID),
	)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	if err := a.srv.Stop(ctx); err != nil {
		a.log.Warn("http shutdown", logx.Err(err))
	}
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn("queue drain wait", logx.Err(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("trackrelay stopped")
	return nil
}
