package vcursor

import (
	"sort"
	"sync"
)

// Handler receives inbound messages of one type.
type Handler func(Message)

// Channel is the bidirectional transport between participants. Send is
// best-effort; On registers a handler until its Subscription is released.
type Channel interface {
	Send(m Message) error
	On(t MessageType, h Handler) Subscription
}

// Mux keeps per-type handler registrations for Channel implementations.
// It is safe for concurrent use.
type Mux struct {
	mu       sync.Mutex
	next     int
	handlers map[MessageType]map[int]Handler
}

// On registers h for messages of type t.
func (x *Mux) On(t MessageType, h Handler) Subscription {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.handlers == nil {
		x.handlers = make(map[MessageType]map[int]Handler)
	}
	if x.handlers[t] == nil {
		x.handlers[t] = make(map[int]Handler)
	}
	id := x.next
	x.next++
	x.handlers[t][id] = h
	return NewSubscription(func() {
		x.mu.Lock()
		defer x.mu.Unlock()
		delete(x.handlers[t], id)
	})
}

// Dispatch calls every handler registered for m.Type, in registration order.
// Handlers run without the lock held so they may (un)subscribe.
func (x *Mux) Dispatch(m Message) {
	x.mu.Lock()
	ids := make([]int, 0, len(x.handlers[m.Type]))
	for id := range x.handlers[m.Type] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hs := make([]Handler, len(ids))
	for i, id := range ids {
		hs[i] = x.handlers[m.Type][id]
	}
	x.mu.Unlock()

	for _, h := range hs {
		h(m)
	}
}

// Handlers counts the registrations for t.
func (x *Mux) Handlers(t MessageType) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.handlers[t])
}

// MemoryHub is an in-process transport: every message sent by a member is
// delivered synchronously to all members, the sender included.
type MemoryHub struct {
	mu      sync.Mutex
	members map[*MemoryChannel]bool
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{members: make(map[*MemoryChannel]bool)}
}

// Join adds a new member channel to the hub.
func (h *MemoryHub) Join() *MemoryChannel {
	c := &MemoryChannel{hub: h}
	h.mu.Lock()
	h.members[c] = true
	h.mu.Unlock()
	return c
}

func (h *MemoryHub) broadcast(m Message) {
	h.mu.Lock()
	members := make([]*MemoryChannel, 0, len(h.members))
	for c := range h.members {
		members = append(members, c)
	}
	h.mu.Unlock()
	for _, c := range members {
		c.Dispatch(m)
	}
}

// MemoryChannel is one member of a MemoryHub.
type MemoryChannel struct {
	Mux
	hub *MemoryHub

	mu      sync.Mutex
	sent    []Message
	sendErr error
	closed  bool
}

func (c *MemoryChannel) Send(m Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, m)
	c.mu.Unlock()
	c.hub.broadcast(m)
	return nil
}

// Sent returns the messages this member has sent.
func (c *MemoryChannel) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

// SentOfType returns the sent messages of type t.
func (c *MemoryChannel) SentOfType(t MessageType) []Message {
	var out []Message
	for _, m := range c.Sent() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// FailSends makes subsequent sends return err; nil restores delivery.
func (c *MemoryChannel) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Leave removes the member from its hub.
func (c *MemoryChannel) Leave() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.hub.mu.Lock()
	delete(c.hub.members, c)
	c.hub.mu.Unlock()
}
