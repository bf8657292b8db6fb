package session

import "sync"

// Events emitted by the manager. StateChangedEvent fires on every
// transition and always precedes the more specific event for the same
// transition; the others carry transition-specific payloads so
// subscribers get statically typed data instead of a generic envelope.

type StateChangedEvent struct {
	SessionID string
	UserID    string
	From      State
	To        State
}

type QREvent struct {
	SessionID string
	Code      string // raw pairing string
	DataURI   string // rendered PNG data URI
}

type PairingCodeEvent struct {
	SessionID string
	Code      string
}

type AuthenticatedEvent struct {
	SessionID string
}

type ReadyEvent struct {
	SessionID   string
	PhoneNumber string
	PushName    string
}

type MessageEvent struct {
	SessionID string
	Message   Message
}

type DisconnectedEvent struct {
	SessionID string
	Reason    string
	Attempt   int // reconnect attempt that was scheduled, 0 if none
}

type ErrorEvent struct {
	SessionID string
	Reason    string
}

// EventHandler receives every manager event; implementations type-switch
// on the concrete event structs above and filter by session id.
type EventHandler func(evt interface{})

// dispatcher is a small id-keyed handler registry. Handlers are invoked
// synchronously in registration order, so per-session event ordering
// follows socket order.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   uint32
	handlers map[uint32]EventHandler
	order    []uint32
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[uint32]EventHandler)}
}

func (d *dispatcher) add(fn EventHandler) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.handlers[id] = fn
	d.order = append(d.order, id)
	return id
}

func (d *dispatcher) remove(id uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[id]; !ok {
		return false
	}
	delete(d.handlers, id)
	for i, hid := range d.order {
		if hid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

func (d *dispatcher) emit(evt interface{}) {
	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.order))
	for _, id := range d.order {
		handlers = append(handlers, d.handlers[id])
	}
	d.mu.RUnlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
