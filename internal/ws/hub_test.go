package ws

import (
	"testing"
	"time"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := &Client{hub: hub, send: make(chan WsEvent, 4)}
	b := &Client{hub: hub, send: make(chan WsEvent, 4)}
	hub.Register(a)
	hub.Register(b)

	hub.Publish(WsEvent{Event: EventReady, SessionID: "alice-1"})

	for _, c := range []*Client{a, b} {
		select {
		case evt := <-c.send:
			if evt.Event != EventReady || evt.SessionID != "alice-1" {
				t.Fatalf("got %+v", evt)
			}
			if evt.Timestamp.IsZero() {
				t.Fatal("Publish did not stamp the event")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("client never received the broadcast")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, send: make(chan WsEvent)} // zero buffer, never drained
	fast := &Client{hub: hub, send: make(chan WsEvent, 16)}
	hub.Register(slow)
	hub.Register(fast)

	hub.Publish(WsEvent{Event: EventQR, SessionID: "alice-1"})
	hub.Publish(WsEvent{Event: EventQR, SessionID: "alice-1"})

	// The fast client keeps receiving; the slow one's channel gets closed.
	for i := 0; i < 2; i++ {
		select {
		case <-fast.send:
		case <-time.After(2 * time.Second):
			t.Fatal("fast client starved")
		}
	}

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("slow client received instead of being dropped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow client channel never closed")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{hub: hub, send: make(chan WsEvent, 1)}
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed channel after unregister")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}
