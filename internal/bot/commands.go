// Package bot routes inbound transport updates to command handlers. The
// handlers only touch the subscriber store, the contest source, and the
// reminder scheduler; rendering stays plain request/response.
package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	"cfremind/internal/contest"
	"cfremind/internal/reminder"
	"cfremind/internal/store"
	"cfremind/internal/transport"
	"cfremind/pkg/logx"
)

const upcomingLimit = 5

// ContestSource is the slice of the contest client the handlers need.
type ContestSource interface {
	Upcoming(ctx context.Context) ([]contest.Contest, error)
	Link(id int64) string
}

type Deps struct {
	Adapter  transport.Adapter
	Store    *store.Store
	Contests ContestSource
	Catalog  []reminder.LeadTime

	// Resched triggers an asynchronous reconcile pass (used by /subscribe).
	Resched func()

	Log logx.Logger
}

type Request struct {
	Chat   transport.ChatTarget
	FromID int64
	Args   []string
}

type Command struct {
	Name        string
	Description string
	Handle      func(ctx context.Context, req *Request) error
}

type Router struct {
	deps   Deps
	order  []string
	routes map[string]Command
}

func New(deps Deps) *Router {
	r := &Router{deps: deps, routes: map[string]Command{}}
	r.register(Command{Name: "start", Description: "Welcome message and basic info", Handle: r.handleStart})
	r.register(Command{Name: "subscribe", Description: "Subscribe to contest reminders", Handle: r.handleSubscribe})
	r.register(Command{Name: "unsubscribe", Description: "Unsubscribe from reminders", Handle: r.handleUnsubscribe})
	r.register(Command{Name: "upcoming", Description: "Show upcoming contests", Handle: r.handleUpcoming})
	r.register(Command{Name: "help", Description: "Show help message", Handle: r.handleHelp})
	return r
}

func (r *Router) register(c Command) {
	r.order = append(r.order, c.Name)
	r.routes[c.Name] = c
}

// Commands lists the registered commands for the transport menu.
func (r *Router) Commands() []transport.BotCommand {
	out := make([]transport.BotCommand, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, transport.BotCommand{Command: name, Description: r.routes[name].Description})
	}
	return out
}

func (r *Router) reply(ctx context.Context, req *Request, text string, opt *transport.SendOptions) error {
	return r.deps.Adapter.SendText(ctx, req.Chat, text, opt)
}

func (r *Router) replyHTML(ctx context.Context, req *Request, text string) error {
	return r.reply(ctx, req, text, &transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true})
}

func (r *Router) handleStart(ctx context.Context, req *Request) error {
	labels := strings.Join(reminder.Labels(r.deps.Catalog), ", ")
	text := "Hi! I am your Codeforces Contest Reminder Bot. 🤖\n\n" +
		"Use /subscribe to get upcoming contest reminders.\n" +
		"Use /unsubscribe to stop receiving reminders.\n" +
		"Use /upcoming to see the next few contests.\n" +
		"Use /help to see this message again.\n\n" +
		"I will remind you " + labels + " before each contest."
	return r.reply(ctx, req, text, nil)
}

func (r *Router) handleHelp(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range r.order {
		fmt.Fprintf(&b, "/%s - %s\n", name, r.routes[name].Description)
	}
	return r.reply(ctx, req, strings.TrimRight(b.String(), "\n"), nil)
}

func (r *Router) handleSubscribe(ctx context.Context, req *Request) error {
	if !r.deps.Store.Add(req.Chat.ChatID) {
		return r.reply(ctx, req, "You are already subscribed. 👍", nil)
	}
	r.deps.Log.Info("chat subscribed", logx.Int64("chat_id", req.Chat.ChatID))
	if err := r.reply(ctx, req, "You are now subscribed to Codeforces contest reminders! 🎉", nil); err != nil {
		return err
	}
	// Catch reminders for contests published since the last periodic pass.
	if r.deps.Resched != nil {
		r.deps.Resched()
	}
	return nil
}

func (r *Router) handleUnsubscribe(ctx context.Context, req *Request) error {
	if !r.deps.Store.Remove(req.Chat.ChatID) {
		return r.reply(ctx, req, "You were not subscribed.", nil)
	}
	r.deps.Log.Info("chat unsubscribed", logx.Int64("chat_id", req.Chat.ChatID))
	return r.reply(ctx, req, "You have unsubscribed from reminders. You can /subscribe again anytime.", nil)
}

func (r *Router) handleUpcoming(ctx context.Context, req *Request) error {
	contests, err := r.deps.Contests.Upcoming(ctx)
	if err != nil {
		r.deps.Log.Warn("upcoming fetch failed", logx.Err(err))
	}
	if len(contests) == 0 {
		return r.reply(ctx, req, "No upcoming contests found or Codeforces is currently unavailable. Try again later.", nil)
	}

	var b strings.Builder
	b.WriteString("🗓️ Upcoming Codeforces Contests (max 5 shown):\n\n")
	for i, c := range contests {
		if i >= upcomingLimit {
			break
		}
		fmt.Fprintf(&b, "🔹 <b>%s</b>\n", html.EscapeString(c.Name))
		fmt.Fprintf(&b, "   📅 Starts: %s\n", c.StartString())
		fmt.Fprintf(&b, "   ⏳ Duration: %s\n", c.DurationString())
		fmt.Fprintf(&b, "   🔗 Link: %s\n\n", r.deps.Contests.Link(c.ID))
	}
	return r.replyHTML(ctx, req, strings.TrimRight(b.String(), "\n"))
}

func (r *Router) handleUnknown(ctx context.Context, req *Request) error {
	return r.reply(ctx, req, "Sorry, I didn't understand that command. Try /help", nil)
}
