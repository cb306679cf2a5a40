package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cfremind/internal/contest"
	"cfremind/pkg/logx"
)

// Key is the composite identity of a reminder job. Scheduling the same
// (contest, label) pair twice is a no-op; this is the idempotence anchor.
type Key struct {
	ContestID int64
	Label     string
}

func (k Key) String() string {
	return fmt.Sprintf("contest_%d_reminder_%s", k.ContestID, k.Label)
}

// Job is one pending reminder: fire FireAt, deliver for Contest.
type Job struct {
	Key     Key
	FireAt  time.Time
	Contest contest.Contest
}

// DeliverFunc runs a fired job. ctx carries the per-job timeout.
type DeliverFunc func(ctx context.Context, job Job)

type Config struct {
	Catalog       []LeadTime
	Grace         time.Duration // misfire tolerance; late beyond this, the job is abandoned
	CheckInterval time.Duration // periodic reconcile tick
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
}

type task struct {
	name string
	run  func(ctx context.Context)
}

// Scheduler owns the one-shot reminder timers and the periodic reconcile
// tick. Fired work is executed on a small worker pool so a slow delivery
// cannot delay other timers.
type Scheduler struct {
	cfg     Config
	log     logx.Logger
	deliver DeliverFunc
	now     func() time.Time

	mu        sync.Mutex
	timers    map[Key]*time.Timer
	cron      *cron.Cron
	queue     chan task
	stopCh    chan struct{}
	reconcile func(ctx context.Context)

	wg sync.WaitGroup
}

func New(cfg Config, deliver DeliverFunc, log logx.Logger) *Scheduler {
	if len(cfg.Catalog) == 0 {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 4 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Scheduler{
		cfg:     cfg,
		log:     log,
		deliver: deliver,
		now:     time.Now,
		timers:  map[Key]*time.Timer{},
	}
}

func (s *Scheduler) Catalog() []LeadTime { return s.cfg.Catalog }

// Start launches the workers and the periodic reconcile tick, and enqueues
// one immediate reconcile pass so newly started processes catch up at once.
func (s *Scheduler) Start(ctx context.Context, reconcile func(ctx context.Context)) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan task, s.cfg.QueueSize)
	s.reconcile = reconcile

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.CheckInterval)
	if _, err := s.cron.AddFunc(spec, func() {
		s.enqueue(task{name: "contest.check", run: reconcile})
	}); err != nil {
		// "@every <duration>" only fails on a malformed interval, which the
		// config layer already rejected.
		s.log.Error("periodic check registration failed", logx.Err(err))
	}
	s.cron.Start()
	s.mu.Unlock()

	s.enqueue(task{name: "contest.check.startup", run: reconcile})
	s.log.Info("scheduler started",
		logx.Int("workers", s.cfg.Workers),
		logx.Duration("check_interval", s.cfg.CheckInterval),
		logx.Duration("grace", s.cfg.Grace))
}

// Kick enqueues an extra reconcile pass (e.g. right after a subscribe).
func (s *Scheduler) Kick() {
	s.mu.Lock()
	reconcile := s.reconcile
	started := s.stopCh != nil
	s.mu.Unlock()
	if !started || reconcile == nil {
		return
	}
	s.enqueue(task{name: "contest.check.kick", run: reconcile})
}

// Stop halts the tick, drops all pending timers, and waits for in-flight
// jobs up to the ctx deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	c := s.cron
	s.cron = nil
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
	s.mu.Unlock()

	// Wait for a mid-run tick outside the lock; the tick body takes s.mu.
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; in-flight jobs abandoned")
	}
}

// Reconcile ensures every (future contest, catalog entry) pair whose fire
// instant is still ahead has exactly one pending job. Safe to call
// repeatedly; existing keys and past windows are skipped. Returns the number
// of jobs newly created in this call.
func (s *Scheduler) Reconcile(contests []contest.Contest, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return 0
	}

	created := 0
	for _, c := range contests {
		if !c.StartsAt.After(now) {
			continue
		}
		for _, lt := range s.cfg.Catalog {
			fireAt := c.StartsAt.Add(-lt.Before)
			key := Key{ContestID: c.ID, Label: lt.Label}
			if !fireAt.After(now) {
				continue // window already passed
			}
			if _, ok := s.timers[key]; ok {
				continue // already scheduled
			}
			job := Job{Key: key, FireAt: fireAt, Contest: c}
			s.timers[key] = time.AfterFunc(fireAt.Sub(now), func() { s.fire(job) })
			created++
			s.log.Info("reminder scheduled",
				logx.String("job", key.String()),
				logx.String("contest", c.Name),
				logx.Time("fire_at", fireAt))
		}
	}
	return created
}

// Scheduled reports whether a job with this key is pending.
func (s *Scheduler) Scheduled(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Pending returns the number of pending jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(job Job) {
	s.mu.Lock()
	if _, ok := s.timers[job.Key]; !ok {
		// removed by Stop; stale callback
		s.mu.Unlock()
		return
	}
	delete(s.timers, job.Key)
	s.mu.Unlock()

	if late := s.now().Sub(job.FireAt); late > s.cfg.Grace {
		s.log.Warn("reminder misfired beyond grace; abandoned",
			logx.String("job", job.Key.String()),
			logx.Duration("late", late))
		return
	}
	s.enqueue(task{
		name: "reminder." + job.Key.String(),
		run:  func(ctx context.Context) { s.deliver(ctx, job) },
	})
}

func (s *Scheduler) enqueue(t task) {
	s.mu.Lock()
	queue := s.queue
	stopped := s.stopCh == nil
	s.mu.Unlock()
	if stopped || queue == nil {
		return
	}
	select {
	case queue <- t:
	default:
		s.log.Warn("scheduler queue full, dropping task", logx.String("task", t.name))
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		stopCh := s.stopCh
		queue := s.queue
		s.mu.Unlock()
		if stopCh == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.exec(ctx, t)
		}
	}
}

// exec runs one task with the per-job timeout and panic isolation. Errors in
// a task must never take the scheduler down.
func (s *Scheduler) exec(ctx context.Context, t task) {
	runCtx := ctx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", logx.String("task", t.name), logx.Any("panic", r))
		}
	}()
	start := time.Now()
	t.run(runCtx)
	s.log.Debug("task done", logx.String("task", t.name), logx.Duration("took", time.Since(start)))
}
