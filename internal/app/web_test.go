package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestStateEndpoint(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler(t.TempDir()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	hub.PublishState(State{Steps: 42, SleepStage: "rem"})

	resp, err = http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, int32(42), st.Steps)
	assert.Equal(t, "rem", st.SleepStage)
}

func TestWebsocketBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler(t.TempDir()))
	defer srv.Close()

	a := dialHub(t, srv)
	b := dialHub(t, srv)
	waitClients(t, hub, 2)

	hub.PublishEvent(Event{Algorithm: "flip", Value: 1, Label: "yes"})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var msg WSResponse
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "event", msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, "flip", msg.Event.Algorithm)
		assert.Nil(t, msg.State)
	}

	a.Close()
	waitClients(t, hub, 1)
}

func TestWebsocketStateRequest(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler(t.TempDir()))
	defer srv.Close()

	hub.PublishState(State{Steps: 7})

	conn := dialHub(t, srv)
	require.NoError(t, conn.WriteJSON(WSMessage{Action: "state"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg WSResponse
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, int32(7), msg.State.Steps)
}

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestHubMQTTCallbacks(t *testing.T) {
	hub := NewHub()

	hub.handleStateMessage(nil, fakeMessage{payload: []byte(`{"steps":3,"direction":"z+"}`)})
	st, ok := hub.LastState()
	require.True(t, ok)
	assert.Equal(t, int32(3), st.Steps)
	assert.Equal(t, "z+", st.Direction)

	hub.handleStateMessage(nil, fakeMessage{payload: []byte(`not json`)})
	st, _ = hub.LastState()
	assert.Equal(t, int32(3), st.Steps)
}
