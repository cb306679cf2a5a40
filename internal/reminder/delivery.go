package reminder

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"cfremind/internal/store"
	"cfremind/internal/transport"
	"cfremind/pkg/logx"
)

// startedSlack is how far past the start instant a contest is still treated
// as "about to start". Protects against clock drift and scheduling delay
// firing a reminder for a contest that is already running.
const startedSlack = time.Minute

type DeliveryConfig struct {
	SiteURL     string
	SendTimeout time.Duration
	RatePerSec  int // Telegram flood limit; sends are paced below it
}

// Deliverer fans a fired reminder out to every current subscriber. Each
// recipient is attempted independently; permanently unreachable recipients
// are pruned from the store on the spot.
type Deliverer struct {
	cfg     DeliveryConfig
	adapter transport.Adapter
	subs    *store.Store
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time
}

func NewDeliverer(cfg DeliveryConfig, adapter transport.Adapter, subs *store.Store, log logx.Logger) *Deliverer {
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://codeforces.com"
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	return &Deliverer{
		cfg:     cfg,
		adapter: adapter,
		subs:    subs,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
		now:     time.Now,
	}
}

// Deliver sends one fired reminder to all current subscribers. It never
// returns an error: every failure mode is logged and absorbed here.
func (d *Deliverer) Deliver(ctx context.Context, job Job) {
	ids := d.subs.Snapshot()
	if len(ids) == 0 {
		d.log.Debug("no subscribers to notify", logx.String("job", job.Key.String()))
		return
	}

	// Re-check at fire time: a contest already underway gets no reminder.
	if !job.Contest.StartsAt.After(d.now().Add(-startedSlack)) {
		d.log.Info("contest already started; reminder suppressed",
			logx.String("job", job.Key.String()),
			logx.String("contest", job.Contest.Name))
		return
	}

	text := renderReminder(job, d.cfg.SiteURL)
	opt := &transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}

	sent, removed, failed := 0, 0, 0
	for _, id := range ids {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Warn("delivery aborted", logx.String("job", job.Key.String()), logx.Err(err))
			break
		}
		err := d.sendOne(ctx, transport.ChatTarget{ChatID: id}, text, opt)
		switch {
		case err == nil:
			sent++
		case transport.RecipientGone(err):
			// Permanent: unsubscribe on the spot. Idempotent remove + save.
			d.subs.Remove(id)
			removed++
			d.log.Info("unreachable recipient removed", logx.Int64("chat_id", id), logx.Err(err))
		default:
			// Recoverable or unknown: keep the subscriber, no retry. The next
			// lead-time reminder for this contest is the de facto retry.
			failed++
			d.log.Warn("reminder send failed", logx.Int64("chat_id", id), logx.Err(err))
		}
	}

	d.log.Info("reminder delivered",
		logx.String("job", job.Key.String()),
		logx.String("contest", job.Contest.Name),
		logx.Int("sent", sent),
		logx.Int("removed", removed),
		logx.Int("failed", failed))
}

func (d *Deliverer) sendOne(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.adapter.SendText(sctx, to, text, opt)
}
