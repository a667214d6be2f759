package main

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Message defines the structure of data exchanged via WebSocket.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	User    string          `json:"user,omitempty"`
}

// inbound pairs a message with the client it came from, so per-client replies
// (search results) can be routed back without broadcasting.
type inbound struct {
	msg    *Message
	client *Client
}

// Hub maintains the set of active clients, applies edit events to the
// session, and broadcasts resulting state changes to everyone.
type Hub struct {
	session *Session

	clients map[*Client]bool

	// Inbound messages from the clients.
	broadcast chan *inbound

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	log *logrus.Entry
}

func newHub(session *Session, log *logrus.Entry) *Hub {
	return &Hub{
		session:    session,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.WithField("user", client.user).Info("client registered")

			// Send current state to the new client.
			init := struct {
				Projection Projection `json:"projection"`
				Settings   Settings   `json:"settings"`
				Widths     []int      `json:"widths,omitempty"`
				Loaded     bool       `json:"loaded"`
			}{
				Projection: h.session.View("", 0),
				Settings:   h.session.Settings(),
				Widths:     h.session.Widths(),
				Loaded:     h.session.Loaded(),
			}
			payload, _ := json.Marshal(init)
			client.trySend(msgToBytes(&Message{Type: "INIT", Payload: payload, User: "system"}))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.shutdown()
				h.log.WithField("user", client.user).Info("client unregistered")
			}

		case in := <-h.broadcast:
			h.handle(in)
		}
	}
}

func (h *Hub) handle(in *inbound) {
	message := in.msg
	switch message.Type {
	case "SET_CELL":
		var edit struct {
			Key   string `json:"key"`
			Col   int    `json:"col"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(message.Payload, &edit); err != nil {
			h.log.WithError(err).Warn("unmarshal SET_CELL payload")
			return
		}
		if err := h.session.EditCell(edit.Key, edit.Col, edit.Value); err != nil {
			h.log.WithError(err).Warn("apply cell edit")
			return
		}
		payload, _ := json.Marshal(edit)
		h.broadcastAll(&Message{Type: "CELL_UPDATED", Payload: payload, User: message.User})

	case "CLEAR_EDITS":
		h.session.Reset()
		h.broadcastAll(&Message{Type: "EDITS_CLEARED", User: message.User})

	case "SET_SETTINGS":
		var settings Settings
		if err := json.Unmarshal(message.Payload, &settings); err != nil {
			h.log.WithError(err).Warn("unmarshal SET_SETTINGS payload")
			return
		}
		applied := h.session.UpdateSettings(settings)
		payload, _ := json.Marshal(applied)
		h.broadcastAll(&Message{Type: "SETTINGS_UPDATED", Payload: payload, User: message.User})

	case "SEARCH":
		// Debounced per client: a burst of keystrokes produces one projection.
		var query struct {
			Search string `json:"search"`
			Page   int    `json:"page"`
		}
		if err := json.Unmarshal(message.Payload, &query); err != nil {
			h.log.WithError(err).Warn("unmarshal SEARCH payload")
			return
		}
		client := in.client
		client.searchDebounce.Trigger(func() {
			projection := h.session.View(query.Search, query.Page)
			payload, _ := json.Marshal(projection)
			client.trySend(msgToBytes(&Message{Type: "VIEW", Payload: payload, User: "system"}))
		})

	default:
		h.log.WithField("type", message.Type).Warn("unknown message type")
	}
}

func (h *Hub) broadcastAll(msg *Message) {
	data := msgToBytes(msg)
	for client := range h.clients {
		if !client.trySend(data) {
			delete(h.clients, client)
			client.shutdown()
		}
	}
}

func msgToBytes(msg *Message) []byte {
	b, _ := json.Marshal(msg)
	return b
}
