package telegram

import (
	"context"
	"errors"
	"time"
)

// ErrNotAuthorized means the configured session string is missing, expired or
// revoked. Re-authorization is manual, so callers treat this as fatal.
var ErrNotAuthorized = errors.New("telegram session is not authorized")

// Message is a chat message in provider-independent form. ChatID is the
// canonical id: negative for basic groups, -100… for channels and supergroups.
type Message struct {
	ChatID     int64
	MessageID  int64
	Date       time.Time
	SenderName *string
	Text       string
	HasMedia   bool
	MediaType  *string
	ChatTitle  string
}

// Handler consumes one live message. Returning an error logs the failure but
// never stops delivery.
type Handler func(ctx context.Context, msg Message) error

// Session is a long-lived connection to the Telegram account whose chats are
// being monitored. The account is used strictly read-only: implementations
// must never send messages, mark anything read or otherwise mutate state.
type Session interface {
	// Run connects, verifies authorization and then invokes ready. The
	// session stays connected until ready returns or ctx is cancelled.
	Run(ctx context.Context, ready func(ctx context.Context) error) error

	// Subscribe registers a handler for live messages. Must be called
	// before Run.
	Subscribe(h Handler)

	// History replays messages of one chat with id > minID, oldest first.
	History(ctx context.Context, chatID int64, minID int64, fn func(msg Message) error) error
}
