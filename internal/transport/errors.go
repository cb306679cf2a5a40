package transport

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// recipientGone is the closed set of Telegram API errors that mean a chat can
// never be reached again until the user re-subscribes on their own.
var recipientGone = []error{
	tele.ErrBlockedByUser,
	tele.ErrUserIsDeactivated,
	tele.ErrChatNotFound,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
	tele.ErrKickedFromChannel,
	tele.ErrNotStartedByUser,
}

// gonePhrases backs up the typed check for errors that arrive as plain text
// (older API variants, proxies). Matching is case-insensitive.
var gonePhrases = []string{
	"bot was blocked",
	"user is deactivated",
	"chat not found",
	"bot was kicked",
	"bot can't initiate conversation",
}

// RecipientGone reports whether a send failure is permanent for this
// recipient. Anything not in the closed set counts as recoverable.
func RecipientGone(err error) bool {
	if err == nil {
		return false
	}
	for _, known := range recipientGone {
		if errors.Is(err, known) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range gonePhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
