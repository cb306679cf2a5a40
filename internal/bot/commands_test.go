package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cfremind/internal/contest"
	"cfremind/internal/store"
	"cfremind/internal/transport"
	"cfremind/pkg/logx"
)

type recordingAdapter struct {
	mu    sync.Mutex
	texts []string
}

func (a *recordingAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (a *recordingAdapter) Stop(ctx context.Context) error                               { return nil }
func (a *recordingAdapter) SetCommands(ctx context.Context, cmds []transport.BotCommand) error {
	return nil
}

func (a *recordingAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	return nil
}

func (a *recordingAdapter) lastText(t *testing.T) string {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.texts) == 0 {
		t.Fatal("no reply was sent")
	}
	return a.texts[len(a.texts)-1]
}

type fakeContests struct {
	contests []contest.Contest
	err      error
}

func (f *fakeContests) Upcoming(ctx context.Context) ([]contest.Contest, error) {
	return f.contests, f.err
}

func (f *fakeContests) Link(id int64) string {
	return fmt.Sprintf("https://codeforces.com/contests/%d", id)
}

type routerFixture struct {
	router   *Router
	adapter  *recordingAdapter
	subs     *store.Store
	contests *fakeContests
	resched  *int
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		adapter:  &recordingAdapter{},
		subs:     store.Open(filepath.Join(t.TempDir(), "subscribers.json"), logx.Nop()),
		contests: &fakeContests{},
		resched:  new(int),
	}
	f.router = New(Deps{
		Adapter:  f.adapter,
		Store:    f.subs,
		Contests: f.contests,
		Resched:  func() { *f.resched++ },
		Log:      logx.Nop(),
	})
	return f
}

func (f *routerFixture) send(text string) {
	f.router.dispatch(context.Background(), &transport.Message{ChatID: 42, FromID: 42, Text: text})
}

func TestSubscribeAddsAndTriggersResched(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.send("/subscribe")

	if !f.subs.Contains(42) {
		t.Fatal("chat 42 not subscribed")
	}
	if *f.resched != 1 {
		t.Fatalf("resched calls = %d, want 1", *f.resched)
	}
	if got := f.adapter.lastText(t); !strings.Contains(got, "now subscribed") {
		t.Fatalf("reply = %q", got)
	}
}

func TestSubscribeTwice(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.send("/subscribe")
	f.send("/subscribe")

	if *f.resched != 1 {
		t.Fatalf("resched calls = %d, want 1", *f.resched)
	}
	if got := f.adapter.lastText(t); !strings.Contains(got, "already subscribed") {
		t.Fatalf("reply = %q", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	f.subs.Add(42)

	f.send("/unsubscribe")

	if f.subs.Contains(42) {
		t.Fatal("chat 42 still subscribed")
	}
	if got := f.adapter.lastText(t); !strings.Contains(got, "unsubscribed") {
		t.Fatalf("reply = %q", got)
	}

	f.send("/unsubscribe")
	if got := f.adapter.lastText(t); !strings.Contains(got, "not subscribed") {
		t.Fatalf("reply after second unsubscribe = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.send("/frobnicate")

	if got := f.adapter.lastText(t); !strings.Contains(got, "/help") {
		t.Fatalf("reply = %q", got)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.send("hello there")

	f.adapter.mu.Lock()
	defer f.adapter.mu.Unlock()
	if len(f.adapter.texts) != 0 {
		t.Fatalf("replies = %v, want none", f.adapter.texts)
	}
}

func TestUpcomingRendersContests(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	start := time.Date(2026, 9, 12, 14, 35, 0, 0, time.UTC)
	for i := int64(1); i <= 7; i++ {
		f.contests.contests = append(f.contests.contests, contest.Contest{
			ID:       i,
			Name:     fmt.Sprintf("Round #%d", i),
			StartsAt: start.Add(time.Duration(i) * 24 * time.Hour),
			Duration: 2 * time.Hour,
			Phase:    contest.PhaseBefore,
		})
	}

	f.send("/upcoming")

	got := f.adapter.lastText(t)
	for _, want := range []string{
		"<b>Round #1</b>",
		"<b>Round #5</b>",
		"https://codeforces.com/contests/1",
		"Duration: 2h",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Round #6") {
		t.Fatalf("reply shows more than five contests:\n%s", got)
	}
}

func TestUpcomingUnavailable(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)
	f.contests.err = errors.New("codeforces api: status 502")

	f.send("/upcoming")

	if got := f.adapter.lastText(t); !strings.Contains(got, "Try again later") {
		t.Fatalf("reply = %q", got)
	}
}

func TestHelpListsAllCommands(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.send("/help")

	got := f.adapter.lastText(t)
	for _, cmd := range f.router.Commands() {
		if !strings.Contains(got, "/"+cmd.Command) {
			t.Fatalf("help missing /%s:\n%s", cmd.Command, got)
		}
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{text: "/subscribe", name: "subscribe", ok: true},
		{text: "/SUBSCRIBE", name: "subscribe", ok: true},
		{text: "/upcoming@MyReminderBot", name: "upcoming", ok: true},
		{text: "  /help extra args ", name: "help", args: []string{"extra", "args"}, ok: true},
		{text: "hello", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.text)
		if ok != tt.ok || name != tt.name || len(args) != len(tt.args) {
			t.Fatalf("parseCommand(%q) = %q, %v, %v", tt.text, name, args, ok)
		}
		for i := range tt.args {
			if args[i] != tt.args[i] {
				t.Fatalf("parseCommand(%q) args = %v, want %v", tt.text, args, tt.args)
			}
		}
	}
}
