package reminder

import (
	"context"
	"testing"
	"time"

	"cfremind/internal/contest"
	"cfremind/pkg/logx"
)

func startedScheduler(t *testing.T, cfg Config, deliver DeliverFunc) *Scheduler {
	t.Helper()
	if deliver == nil {
		deliver = func(ctx context.Context, job Job) {}
	}
	s := New(cfg, deliver, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, func(ctx context.Context) {})
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
		cancel()
	})
	return s
}

func upcomingContest(id int64, startsIn time.Duration) contest.Contest {
	return contest.Contest{
		ID:       id,
		Name:     "Test Round",
		StartsAt: time.Now().UTC().Add(startsIn).Truncate(time.Second),
		Duration: 2 * time.Hour,
		Phase:    contest.PhaseBefore,
	}
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()
	s := startedScheduler(t, Config{}, nil)
	now := time.Now().UTC()
	contests := []contest.Contest{upcomingContest(100, 48*time.Hour)}

	if n := s.Reconcile(contests, now); n != 3 {
		t.Fatalf("first Reconcile = %d, want 3", n)
	}
	if n := s.Reconcile(contests, now); n != 0 {
		t.Fatalf("second Reconcile = %d, want 0", n)
	}
	if p := s.Pending(); p != 3 {
		t.Fatalf("Pending = %d, want 3", p)
	}
}

func TestReconcilePastWindowsSkipped(t *testing.T) {
	t.Parallel()
	s := startedScheduler(t, Config{}, nil)
	now := time.Now().UTC()

	// 30 minutes out: the 24h and 1h fire instants are already behind us.
	n := s.Reconcile([]contest.Contest{upcomingContest(200, 30*time.Minute)}, now)
	if n != 1 {
		t.Fatalf("Reconcile = %d, want 1", n)
	}
	if s.Scheduled(Key{ContestID: 200, Label: "1h"}) {
		t.Fatal("1h job scheduled although its window has passed")
	}
	if !s.Scheduled(Key{ContestID: 200, Label: "15m"}) {
		t.Fatal("15m job missing")
	}
}

func TestReconcileTwoHoursOut(t *testing.T) {
	t.Parallel()
	s := startedScheduler(t, Config{}, nil)
	now := time.Now().UTC()

	// Default catalog {24h,1h,15m}: only 1h and 15m windows are still ahead.
	if n := s.Reconcile([]contest.Contest{upcomingContest(300, 2*time.Hour)}, now); n != 2 {
		t.Fatalf("Reconcile = %d, want 2", n)
	}
}

func TestReconcileIgnoresStartedContest(t *testing.T) {
	t.Parallel()
	s := startedScheduler(t, Config{}, nil)
	now := time.Now().UTC()

	c := upcomingContest(400, -time.Minute)
	if n := s.Reconcile([]contest.Contest{c}, now); n != 0 {
		t.Fatalf("Reconcile = %d, want 0", n)
	}
}

func TestFireDelivers(t *testing.T) {
	t.Parallel()
	fired := make(chan Job, 1)
	cfg := Config{Catalog: []LeadTime{{Label: "soon", Before: 50 * time.Millisecond}}}
	s := startedScheduler(t, cfg, func(ctx context.Context, job Job) {
		select {
		case fired <- job:
		default:
		}
	})

	now := time.Now().UTC()
	c := contest.Contest{ID: 500, Name: "Fire Round", StartsAt: now.Add(150 * time.Millisecond), Phase: contest.PhaseBefore}
	if n := s.Reconcile([]contest.Contest{c}, now); n != 1 {
		t.Fatalf("Reconcile = %d, want 1", n)
	}

	select {
	case job := <-fired:
		if job.Key != (Key{ContestID: 500, Label: "soon"}) {
			t.Fatalf("fired job key = %+v", job.Key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
	if s.Scheduled(Key{ContestID: 500, Label: "soon"}) {
		t.Fatal("fired job still pending")
	}
}

func TestMisfireBeyondGraceAbandoned(t *testing.T) {
	t.Parallel()
	fired := make(chan Job, 1)
	cfg := Config{
		Catalog: []LeadTime{{Label: "soon", Before: 100 * time.Millisecond}},
		Grace:   time.Minute,
	}
	s := New(cfg, func(ctx context.Context, job Job) { fired <- job }, logx.Nop())
	// Pretend the process is 10 minutes late by the time the timer runs.
	s.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, func(ctx context.Context) {})
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
	}()

	now := time.Now().UTC()
	c := contest.Contest{ID: 600, Name: "Late Round", StartsAt: now.Add(150 * time.Millisecond), Phase: contest.PhaseBefore}
	if n := s.Reconcile([]contest.Contest{c}, now); n != 1 {
		t.Fatalf("Reconcile = %d, want 1", n)
	}

	select {
	case <-fired:
		t.Fatal("job fired although past the misfire grace window")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestKeyString(t *testing.T) {
	t.Parallel()
	k := Key{ContestID: 1234, Label: "15m"}
	if got := k.String(); got != "contest_1234_reminder_15m" {
		t.Fatalf("Key.String = %q", got)
	}
}
