// Package logx wraps zerolog behind a small Logger/Service pair.
//
// The Service owns sink configuration (console, file, Telegram) and can
// re-apply it at runtime; Loggers handed out earlier keep writing to the
// updated sinks. The Telegram sink is rate limited and fully asynchronous so
// a slow chat can never stall logging.
package logx
