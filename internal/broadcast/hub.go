// Package broadcast fans session events out to WebSocket subscribers.
//
// The hub keeps a per-session connection set and delivers each event to every
// subscriber of that session with a non-blocking send. A subscriber whose
// buffer is full misses the event; clients recover by refetching session
// state, so delivery stays at-most-once and publishers never stall.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/louisbranch/stylematch/internal/matchmaking/event"
)

// sendBuffer is the per-connection outbound queue depth.
const sendBuffer = 256

// Message is the WebSocket envelope format.
type Message struct {
	Type    event.Name      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one subscriber attached to a session's event stream.
type Connection struct {
	SessionID string
	Send      chan []byte
}

// NewConnection creates a subscriber for one session.
func NewConnection(sessionID string) *Connection {
	return &Connection{
		SessionID: sessionID,
		Send:      make(chan []byte, sendBuffer),
	}
}

// Hub manages session subscriptions and implements event.Broadcaster.
type Hub struct {
	mu sync.RWMutex
	// sessionID -> subscriber set
	subscribers map[string]map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	publish    chan event.Event
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		subscribers: make(map[string]map[*Connection]struct{}),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		publish:     make(chan event.Event, 256),
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.subscribers[conn.SessionID] == nil {
				h.subscribers[conn.SessionID] = make(map[*Connection]struct{})
			}
			h.subscribers[conn.SessionID][conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.subscribers[conn.SessionID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.subscribers, conn.SessionID)
					}
				}
			}
			h.mu.Unlock()

		case evt := <-h.publish:
			h.deliver(evt)
		}
	}
}

func (h *Hub) deliver(evt event.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal %s event: %v", evt.EventName(), err)
		return
	}
	data, err := json.Marshal(Message{Type: evt.EventName(), Payload: payload})
	if err != nil {
		log.Printf("marshal %s envelope: %v", evt.EventName(), err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.subscribers[evt.Session()] {
		select {
		case conn.Send <- data:
		default:
			// Buffer full, drop. The client resyncs from session state.
		}
	}
}

// Register attaches a subscriber to its session's stream.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister detaches a subscriber and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish implements event.Broadcaster. It never blocks the caller; if the
// dispatch queue is full the event is dropped.
func (h *Hub) Publish(evt event.Event) {
	if evt == nil {
		return
	}
	select {
	case h.publish <- evt:
	default:
		log.Printf("event queue full, dropping %s for session %s", evt.EventName(), evt.Session())
	}
}

// Close stops the dispatch loop. Registered connections keep their send
// channels open; callers tear down their own sockets.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount reports how many connections follow a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}
