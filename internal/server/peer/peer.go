// Package peer models one connected client independently of the transport
// carrying it: its negotiated session key, typed extension slots, and
// disconnect notification.
package peer

import (
	"sync"
)

// Peer is the view of a connection that request handlers work with.
type Peer interface {
	ID() string

	// Key returns the symmetric key negotiated by the handshake, or nil.
	Key() []byte

	Extension(name string) (any, bool)

	// AttachExtension stores v under name unless the slot is taken.
	AttachExtension(name string, v any) bool

	DetachExtension(name string)

	// OnDisconnect registers fn to run once when the peer goes away. If the
	// peer is already gone fn runs immediately. The returned func cancels
	// the subscription.
	OnDisconnect(fn func()) (unsubscribe func())
}

// Conn is the Peer implementation used by the transport.
type Conn struct {
	id string

	mu         sync.Mutex
	key        []byte
	extensions map[string]any
	handlers   map[int]func()
	nextID     int
	closed     bool
}

var _ Peer = (*Conn)(nil)

func NewConn(id string) *Conn {
	return &Conn{
		id:         id,
		extensions: make(map[string]any),
		handlers:   make(map[int]func()),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Key() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *Conn) SetKey(key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

func (c *Conn) Extension(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.extensions[name]
	return v, ok
}

func (c *Conn) AttachExtension(name string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.extensions[name]; taken {
		return false
	}
	c.extensions[name] = v
	return true
}

func (c *Conn) DetachExtension(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.extensions, name)
}

func (c *Conn) OnDisconnect(fn func()) func() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Close marks the peer as gone and runs the disconnect subscribers. Only
// the first call has any effect.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handlers := c.handlers
	c.handlers = nil
	c.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
