package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

const ParseModeHTML = "HTML"

// BotCommand is a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// Adapter is the messaging transport boundary. Implementations must make
// SendText honor ctx so callers can bound every outbound call.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// SetCommands publishes the command menu. Best-effort.
	SetCommands(ctx context.Context, cmds []BotCommand) error
}
