package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// DocumentStore persists chats, messages, standalone analyses and search
// logs. Implementations are safe for concurrent use and are meant to be
// created once per process.
type DocumentStore interface {
	CreateChat(ctx context.Context, userID, title string) (*Chat, error)
	// ListChats returns the user's chats, most recently updated first.
	ListChats(ctx context.Context, userID string) ([]Chat, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	// UpdateChatTitle renames a chat and bumps its LastUpdated.
	UpdateChatTitle(ctx context.Context, chatID, title string) error
	TouchChat(ctx context.Context, chatID string) error
	// DeleteChat removes the chat's messages and then the chat itself.
	DeleteChat(ctx context.Context, chatID string) error

	// ListMessages returns a chat's messages in timestamp order.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	// AppendMessage assigns the message ID and Timestamp and stores it.
	AppendMessage(ctx context.Context, msg *Message) error

	InsertAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error
	InsertURLLog(ctx context.Context, entry *URLLog) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// clock hands out strictly increasing millisecond timestamps so that two
// writes made back to back in one process never tie, even in stores that
// only keep millisecond precision.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithNow overrides the time source used for generated timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

func applyOptions(opts []Option) storeOptions {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
