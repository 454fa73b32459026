// Package events fans out account lifecycle notifications to in-process
// listeners such as lobby, presence or analytics components.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophmaster/internal/logging"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
)

type Kind int

const (
	LoggedIn Kind = iota + 1
	LoggedOut
	Registered
	EmailConfirmed
)

func (k Kind) String() string {
	switch k {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	case Registered:
		return "registered"
	case EmailConfirmed:
		return "email_confirmed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Event struct {
	Kind    Kind
	Account *models.Account
	PeerID  string
}

type Listener interface {
	HandleEvent(ctx context.Context, e Event)
}

type ListenerFunc func(ctx context.Context, e Event)

func (f ListenerFunc) HandleEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

// Bus delivers every published event to all current listeners in the
// publisher's goroutine. A panicking listener is logged and skipped.
type Bus struct {
	log logging.Logger

	mu        sync.RWMutex
	listeners map[int]Listener
	next      int
}

func NewBus(log logging.Logger) *Bus {
	return &Bus{log: log, listeners: make(map[int]Listener)}
}

func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()

	for _, l := range ls {
		b.deliver(ctx, l, e)
	}
}

func (b *Bus) deliver(ctx context.Context, l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(ctx, "event listener panicked", "kind", e.Kind.String(), "panic", r)
		}
	}()
	l.HandleEvent(ctx, e)
}
