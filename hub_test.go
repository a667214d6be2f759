package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return &Client{
		send:           make(chan []byte, 16),
		user:           "editor",
		searchDebounce: NewDebouncer(10 * time.Millisecond),
	}
}

func recvMessage(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func newTestHub(t *testing.T) (*Hub, *Session) {
	t.Helper()
	session := newTestSession(t)
	hub := newHub(session, newTestLogger().WithField("component", "hub"))
	return hub, session
}

func TestHubSetCellAppliesAndBroadcasts(t *testing.T) {
	hub, session := newTestHub(t)
	loadPeople(t, session)

	client := newTestClient()
	hub.clients[client] = true

	payload, _ := json.Marshal(map[string]interface{}{"key": "Bob", "col": 1, "value": "25"})
	hub.handle(&inbound{
		msg:    &Message{Type: "SET_CELL", Payload: payload, User: "editor"},
		client: client,
	})

	msg := recvMessage(t, client)
	assert.Equal(t, "CELL_UPDATED", msg.Type)
	assert.Equal(t, "editor", msg.User)

	v, ok := session.ledger.Get(MakeIdentity("Bob", 1))
	require.True(t, ok)
	assert.Equal(t, "25", v)
}

func TestHubClearEdits(t *testing.T) {
	hub, session := newTestHub(t)
	loadPeople(t, session)
	require.NoError(t, session.EditCell("Bob", 1, "25"))

	client := newTestClient()
	hub.clients[client] = true
	hub.handle(&inbound{msg: &Message{Type: "CLEAR_EDITS", User: "editor"}, client: client})

	msg := recvMessage(t, client)
	assert.Equal(t, "EDITS_CLEARED", msg.Type)
	assert.Equal(t, 0, session.ledger.Len())
}

func TestHubSetSettingsSanitizesAndBroadcasts(t *testing.T) {
	hub, _ := newTestHub(t)
	client := newTestClient()
	hub.clients[client] = true

	payload, _ := json.Marshal(Settings{RowsPerPage: 7, AutoSaveIntervalMinutes: 5})
	hub.handle(&inbound{msg: &Message{Type: "SET_SETTINGS", Payload: payload}, client: client})

	msg := recvMessage(t, client)
	assert.Equal(t, "SETTINGS_UPDATED", msg.Type)
	var applied Settings
	require.NoError(t, json.Unmarshal(msg.Payload, &applied))
	assert.Equal(t, 20, applied.RowsPerPage)
}

func TestHubSearchDebouncedPerClient(t *testing.T) {
	hub, session := newTestHub(t)
	loadPeople(t, session)

	client := newTestClient()
	other := newTestClient()
	hub.clients[client] = true
	hub.clients[other] = true

	// A burst of keystrokes produces a single VIEW reply, only to the
	// searching client.
	for _, text := range []string{"a", "al", "ali"} {
		payload, _ := json.Marshal(map[string]interface{}{"search": text, "page": 0})
		hub.handle(&inbound{msg: &Message{Type: "SEARCH", Payload: payload}, client: client})
	}

	msg := recvMessage(t, client)
	assert.Equal(t, "VIEW", msg.Type)
	var p Projection
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	require.Len(t, p.Rows, 2)
	assert.Equal(t, "Alice", p.Rows[1][0])

	select {
	case data := <-client.send:
		t.Fatalf("unexpected extra message: %s", data)
	case data := <-other.send:
		t.Fatalf("search reply leaked to another client: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSearchAfterShutdownDoesNotPanic(t *testing.T) {
	hub, session := newTestHub(t)
	loadPeople(t, session)

	client := newTestClient()
	hub.clients[client] = true
	payload, _ := json.Marshal(map[string]interface{}{"search": "ali", "page": 0})
	hub.handle(&inbound{msg: &Message{Type: "SEARCH", Payload: payload}, client: client})

	// The client disconnects before the debounce fires.
	client.shutdown()
	time.Sleep(50 * time.Millisecond)
}

func TestClientTrySendAfterShutdown(t *testing.T) {
	client := newTestClient()
	assert.True(t, client.trySend([]byte("x")))
	client.shutdown()
	assert.False(t, client.trySend([]byte("y")))
	// Shutdown is idempotent.
	client.shutdown()
}
