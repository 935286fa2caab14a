package api

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/bockstake/stakepool/pool"
)

// wsEnvelope is the wire shape broadcast over the event websocket: the
// event's name plus its JSON-encoded payload, so clients can dispatch on
// "type" without needing the Go type registry.
type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventBus fans every pool.Event out to connected websocket clients. It
// implements pool.Emitter so a Manager can push directly into it.
type EventBus struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewEventBus constructs an EventBus. Call Run in its own goroutine before
// registering any connections.
func NewEventBus() *EventBus {
	return &EventBus{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run services the register/unregister/broadcast channels until the
// process exits; it never returns on its own.
func (eb *EventBus) Run() {
	for {
		select {
		case client := <-eb.register:
			eb.clients[client] = true

		case client := <-eb.unregister:
			if _, ok := eb.clients[client]; ok {
				delete(eb.clients, client)
				client.Close()
			}

		case message := <-eb.broadcast:
			for client := range eb.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(eb.clients, client)
					client.Close()
				}
			}
		}
	}
}

// Emit implements pool.Emitter: every event the engine produces is
// marshaled and pushed to the broadcast channel. Marshal failures are
// dropped rather than panicking an operation that has already succeeded.
func (eb *EventBus) Emit(ev pool.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	envelope, err := json.Marshal(wsEnvelope{Type: ev.EventName(), Data: data})
	if err != nil {
		return
	}
	eb.broadcast <- envelope
}

// Register adds a client connection to receive broadcasts.
func (eb *EventBus) Register(conn *websocket.Conn) {
	eb.register <- conn
}

// Unregister removes a client connection.
func (eb *EventBus) Unregister(conn *websocket.Conn) {
	eb.unregister <- conn
}
