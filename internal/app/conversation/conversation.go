package conversation

import (
	"sync"

	"github.com/samber/lo"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// ChangeKind says what changed in a Conversation.
type ChangeKind int

const (
	ChangeAppended ChangeKind = iota
	ChangeLoading
)

// Change is delivered to listeners after every mutation so views can refresh.
type Change struct {
	Kind    ChangeKind
	Message domain.Message // set for ChangeAppended
	Loading bool
}

// Conversation is the append-only message log of a session plus its loading flag.
// Insertion order is display order.
type Conversation struct {
	mu        sync.RWMutex
	messages  []domain.Message
	loading   bool
	listeners []func(Change)
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds msg at the end. Error messages are stored without citations.
func (c *Conversation) Append(msg domain.Message) {
	if msg.IsError {
		msg.Citations = nil
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Change{Kind: ChangeAppended, Message: msg, Loading: c.Loading()})
}

// SetLoading toggles the single in-flight indicator.
func (c *Conversation) SetLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Change{Kind: ChangeLoading, Loading: loading})
}

func (c *Conversation) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Messages returns a copy of every message in order.
func (c *Conversation) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SnapshotExcludingErrors returns the non-error messages in order.
// Error apologies are never replayed to the answering service.
func (c *Conversation) SnapshotExcludingErrors() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lo.Filter(c.messages, func(m domain.Message, _ int) bool {
		return !m.IsError
	})
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// OnChange registers fn; it is called synchronously after each mutation,
// with no Conversation or Session lock held.
func (c *Conversation) OnChange(fn func(Change)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// copy-on-write so mutations can iterate a stable slice without the lock
	next := make([]func(Change), 0, len(c.listeners)+1)
	next = append(next, c.listeners...)
	c.listeners = append(next, fn)
}

func notify(listeners []func(Change), ch Change) {
	for _, fn := range listeners {
		fn(ch)
	}
}
