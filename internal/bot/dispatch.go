package bot

import (
	"context"
	"strings"
	"time"

	"cfremind/internal/transport"
	"cfremind/pkg/logx"
)

const handlerTimeout = 30 * time.Second

// DispatchLoop consumes transport updates until ctx is done. Handler errors
// and panics are logged and never stop the loop.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Message == nil {
				continue
			}
			r.dispatch(ctx, up.Message)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, m *transport.Message) {
	name, args, ok := parseCommand(m.Text)
	if !ok {
		return // plain text, not a command
	}

	req := &Request{
		Chat:   transport.ChatTarget{ChatID: m.ChatID},
		FromID: m.FromID,
		Args:   args,
	}

	handle := r.handleUnknown
	if cmd, found := r.routes[name]; found {
		handle = cmd.Handle
	}

	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.deps.Log.Error("command handler panicked", logx.String("command", name), logx.Any("panic", rec))
		}
	}()
	if err := handle(hctx, req); err != nil {
		r.deps.Log.Warn("command handler failed", logx.String("command", name), logx.Err(err))
	}
}

// parseCommand splits "/cmd@BotName arg1 arg2" into ("cmd", [arg1 arg2]).
// ok is false for anything that is not a command message.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
