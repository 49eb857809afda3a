// Package app wires seekbot together: config, logging, transport, the
// session hub, the upstream client, and the auxiliary services.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"seekbot/internal/bot"
	"seekbot/internal/config"
	"seekbot/internal/notifier"
	pprofsvc "seekbot/internal/observability/pprof"
	"seekbot/internal/report"
	rtsup "seekbot/internal/runtime/supervisor"
	"seekbot/internal/session"
	"seekbot/internal/stats"
	"seekbot/internal/storage"
	kit "seekbot/internal/transport"
	"seekbot/internal/transport/telegram"
	"seekbot/internal/upstream"
	"seekbot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter  *telegram.Adapter
	store    *session.Store
	hub      *session.Hub
	bot      *bot.Service
	notify   *notifier.Service
	audit    storage.Store
	reporter *report.Service
	pprof    *pprofsvc.Service
	st       *stats.Stats

	sup *rtsup.Supervisor
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// The adapter is built before the log service because the service's
	// telegram sink sends through it; the adapter itself logs to console.
	boot := logx.NewConsole(cfg.Logging.Level)

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, boot)
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg), adapter)
	logSvc.SetTelegramTarget(cfg.Telegram.LogChatID)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	store := session.NewStore()

	gate, err := gateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	hub := session.NewHub(store, gate, log.With(logx.String("comp", "hub")))

	client, err := upstreamFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	notify := notifier.New(notifier.Config{}, adapter, log.With(logx.String("comp", "notifier")))

	var audit storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		audit, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}

	st := stats.New()

	botSvc := bot.New(botOptions(cfg), bot.Deps{
		Adapter: adapter,
		Members: adapter,
		Store:   store,
		Hub:     hub,
		Client:  client,
		Notify:  notify,
		Audit:   audit,
		Stats:   st,
		Log:     log.With(logx.String("comp", "bot")),
	})

	a := &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		adapter: adapter,
		store:   store,
		hub:     hub,
		bot:     botSvc,
		notify:  notify,
		audit:   audit,
		st:      st,
	}

	if cfg.Report != nil && cfg.Report.Enabled {
		var send report.Notify
		if cfg.Report.ToOperator && cfg.Telegram.OperatorID != 0 {
			operator := cfg.Telegram.OperatorID
			send = func(text string) {
				_ = notify.Notify(kit.ChatTarget{ChatID: operator}, text, nil)
			}
		}
		rep, err := report.New(report.Config{Schedule: cfg.Report.Schedule}, st, store, send,
			log.With(logx.String("comp", "report")))
		if err != nil {
			return nil, err
		}
		a.reporter = rep
	}

	if cfg.Pprof != nil && cfg.Pprof.Enabled {
		a.pprof = pprofsvc.New(pprofsvc.Config{Enabled: true, Addr: cfg.Pprof.Addr},
			log.With(logx.String("comp", "pprof")))
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "app"))))

	a.notify.Start(a.sup.Context())
	if err := a.bot.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}
	a.pprof.Start()
	if a.reporter != nil {
		a.reporter.Start()
	}

	a.sup.Go("config.watch", a.cfgMgr.Watch)
	cfgCh := a.cfgMgr.Subscribe(2)
	a.sup.Go0("config.apply", func(ctx context.Context) {
		defer a.cfgMgr.Unsubscribe(cfgCh)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("seekbot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.reporter != nil {
		a.reporter.Stop()
	}
	err := a.bot.Stop(ctx)
	a.notify.Stop(ctx)
	a.pprof.Stop(ctx)
	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
	a.log.Info("seekbot stopped")
	_ = a.logSvc.Close()
	return err
}

// applyConfig applies the reloadable parts of a new config: log sinks and
// levels, admission policy, dispatcher knobs. Token and upstream changes
// need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(loggingConfig(cfg))
	a.logSvc.SetTelegramTarget(cfg.Telegram.LogChatID)

	gate, err := gateFromConfig(cfg)
	if err != nil {
		a.log.Warn("config apply: bad gate settings", logx.Err(err))
		return
	}
	a.hub.SetGate(gate)
	a.bot.ApplyOptions(botOptions(cfg))
	a.log.Info("config applied")
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func gateFromConfig(cfg *config.Config) (session.Gate, error) {
	cooldown, err := config.ParseDurationOrDefault("limits.cooldown", cfg.Limits.Cooldown, 60*time.Second)
	if err != nil {
		return session.Gate{}, err
	}
	return session.Gate{
		Cooldown: cooldown,
		Operator: session.UserID(cfg.Telegram.OperatorID),
	}, nil
}

func botOptions(cfg *config.Config) bot.Options {
	return bot.Options{
		OperatorID:  cfg.Telegram.OperatorID,
		Channel:     cfg.Telegram.Channel,
		MaxChunkLen: cfg.Limits.MaxChunkLen,
	}
}

func upstreamFromConfig(cfg *config.Config, log logx.Logger) (*upstream.Client, error) {
	timeout, err := config.ParseDurationOrDefault("upstream.timeout", cfg.Upstream.Timeout, 60*time.Second)
	if err != nil {
		return nil, err
	}
	retryDelay, err := config.ParseDurationOrDefault("upstream.retry_delay", cfg.Upstream.RetryDelay, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return upstream.New(upstream.Config{
		APIKey:  cfg.Upstream.APIKey,
		BaseURL: cfg.Upstream.BaseURL,
		Model:   cfg.Upstream.Model,
		Referer: cfg.Upstream.Referer,
		Title:   cfg.Upstream.Title,
		Timeout: timeout,
		Retry: upstream.RetryPolicy{
			MaxAttempts: cfg.Upstream.MaxRetries,
			Delay:       retryDelay,
		},
	}, log.With(logx.String("comp", "upstream"))), nil
}
