// Package app wires the services together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cfremind/internal/bot"
	"cfremind/internal/config"
	"cfremind/internal/contest"
	"cfremind/internal/reminder"
	"cfremind/internal/store"
	"cfremind/internal/transport"
	"cfremind/internal/transport/telegram"
	"cfremind/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config

	log  logx.Logger
	logs *logx.Service

	adapter  transport.Adapter
	subs     *store.Store
	contests *contest.Client
	sched    *reminder.Scheduler
	router   *bot.Router

	sup     *Supervisor
	updates chan transport.Update
}

// New builds the full service graph. The only fatal condition is a missing
// bot token; everything else starts degraded and logs.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	}
	if token == "" {
		return nil, errors.New("telegram bot token not set (telegram.token or $TELEGRAM_BOT_TOKEN)")
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	adapter, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: config.MustDuration(cfg.Telegram.PollTimeout),
	}, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	logs, log := logx.New(logx.Config{
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
	}, adapter)
	if cfg.Telegram.LogChatID != 0 {
		logs.SetTelegramTarget(cfg.Telegram.LogChatID)
	}
	log = log.With(logx.String("comp", "app"))

	subs := store.Open(cfg.Store.Path, logs.Logger().With(logx.String("comp", "store")))

	contests := contest.New(contest.Config{
		APIURL:  cfg.Contests.APIURL,
		SiteURL: cfg.Contests.SiteURL,
		Timeout: config.MustDuration(cfg.Contests.Timeout),
	}, logs.Logger().With(logx.String("comp", "contest")))

	deliverer := reminder.NewDeliverer(reminder.DeliveryConfig{
		SiteURL:     cfg.Contests.SiteURL,
		SendTimeout: config.MustDuration(cfg.Reminders.SendTimeout),
		RatePerSec:  cfg.Reminders.RatePerSec,
	}, adapter, subs, logs.Logger().With(logx.String("comp", "delivery")))

	sched := reminder.New(reminder.Config{
		Catalog:       leadTimes(cfg.Reminders.LeadTimes),
		Grace:         config.MustDuration(cfg.Reminders.Grace),
		CheckInterval: config.MustDuration(cfg.Contests.CheckInterval),
		Workers:       cfg.Reminders.Workers,
		QueueSize:     cfg.Reminders.QueueSize,
		JobTimeout:    config.MustDuration(cfg.Reminders.JobTimeout),
	}, deliverer.Deliver, logs.Logger().With(logx.String("comp", "reminder")))

	router := bot.New(bot.Deps{
		Adapter:  adapter,
		Store:    subs,
		Contests: contests,
		Catalog:  sched.Catalog(),
		Resched:  sched.Kick,
		Log:      logs.Logger().With(logx.String("comp", "bot")),
	})

	return &App{
		cfgPath:  cfgPath,
		cfg:      cfg,
		log:      log,
		logs:     logs,
		adapter:  adapter,
		subs:     subs,
		contests: contests,
		sched:    sched,
		router:   router,
		updates:  make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, a.log)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.adapter.SetCommands(ctx, a.router.Commands()); err != nil {
		a.log.Warn("menu command publish failed", logx.Err(err))
	}

	a.sched.Start(a.sup.Context(), a.reconcile)

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return config.Watch(c, a.cfgPath, a.onConfigReload, func(err error) {
			a.log.Warn("config reload rejected", logx.Err(err))
		})
	})

	a.log.Info("app started", logx.Int("subscribers", a.subs.Len()))
	return nil
}

// reconcile is one reconciliation pass: fetch the contest list, then ensure
// jobs exist for every still-future reminder window. Any failure degrades to
// "no contests this cycle" and never escapes.
func (a *App) reconcile(ctx context.Context) {
	contests, err := a.contests.Upcoming(ctx)
	if err != nil {
		a.log.Warn("contest check failed; skipping cycle", logx.Err(err))
		return
	}
	if len(contests) == 0 {
		a.log.Info("no upcoming contests found")
		return
	}
	n := a.sched.Reconcile(contests, time.Now().UTC())
	a.log.Info("contest check done",
		logx.Int("upcoming", len(contests)),
		logx.Int("newly_scheduled", n),
		logx.Int("pending", a.sched.Pending()))
}

// onConfigReload re-applies the logging section only. Catalog, intervals,
// and the store path are fixed for the process lifetime.
func (a *App) onConfigReload(cfg *config.Config) {
	a.logs.Apply(logx.Config{
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
	})
	a.logs.SetTelegramTarget(cfg.Telegram.LogChatID)
	a.log.Info("logging config reloaded", logx.String("level", cfg.Logging.Level))
}

// Stop shuts components down in dependency order, each step bounded so one
// component cannot stall the whole stop.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(stepCtx)
		}()
		select {
		case <-done:
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("step", name))
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) { a.sched.Stop(c) })
	step("adapter", 2*time.Second, func(c context.Context) { _ = a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) { _ = a.sup.Wait(c) })
	_ = a.logs.Close()

	a.log.Info("stopped")
	return nil
}

func leadTimes(in []config.LeadTimeConfig) []reminder.LeadTime {
	if len(in) == 0 {
		return nil // scheduler falls back to the default catalog
	}
	out := make([]reminder.LeadTime, 0, len(in))
	for _, lt := range in {
		out = append(out, reminder.LeadTime{
			Label:  lt.Label,
			Before: config.MustDuration(lt.Before),
		})
	}
	return out
}
