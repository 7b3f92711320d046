package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is sent by browser clients.
type WSMessage struct {
	Action string `json:"action"` // state
}

// WSResponse is pushed to browser clients.
type WSResponse struct {
	Type  string `json:"type"` // event, state
	Event *Event `json:"event,omitempty"`
	State *State `json:"state,omitempty"`
}

// Hub fans engine output received over MQTT out to websocket clients and
// keeps the latest state snapshot for the REST endpoint.
type Hub struct {
	mu        sync.RWMutex
	clients   map[chan WSResponse]struct{}
	lastState *State
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan WSResponse]struct{})}
}

// clientBuffer bounds how far a slow client may fall behind before
// messages to it are dropped.
const clientBuffer = 64

func (h *Hub) subscribe() chan WSResponse {
	ch := make(chan WSResponse, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan WSResponse) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg WSResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			log.Warn("web: client too slow, dropping message")
		}
	}
}

// PublishEvent forwards one event to every client.
func (h *Hub) PublishEvent(ev Event) {
	h.broadcast(WSResponse{Type: "event", Event: &ev})
}

// PublishState records st as the latest snapshot and forwards it.
func (h *Hub) PublishState(st State) {
	h.mu.Lock()
	h.lastState = &st
	h.mu.Unlock()
	h.broadcast(WSResponse{Type: "state", State: &st})
}

// LastState returns the most recent snapshot.
func (h *Hub) LastState() (State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastState == nil {
		return State{}, false
	}
	return *h.lastState, true
}

// HandleState serves the latest snapshot as JSON.
func (h *Hub) HandleState(w http.ResponseWriter, r *http.Request) {
	st, ok := h.LastState()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// HandleWS streams events and state snapshots to one websocket client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// gorilla allows one concurrent writer; the read loop only forwards
	// requests here.
	requests := make(chan WSMessage)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(requests)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket read error: %v", err)
				}
				return
			}
			select {
			case requests <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case msg := <-ch:
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		case req, ok := <-requests:
			if !ok {
				return
			}
			if req.Action != "state" {
				continue
			}
			if st, ok := h.LastState(); ok {
				if err := conn.WriteJSON(WSResponse{Type: "state", State: &st}); err != nil {
					return
				}
			}
		}
	}
}

// Handler routes the API, the websocket and the static files in dir.
func (h *Hub) Handler(dir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", h.HandleState)
	mux.HandleFunc("/ws", h.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(dir)))
	return mux
}

// handleEventMessage and handleStateMessage are the MQTT callbacks.
func (h *Hub) handleEventMessage(_ mqtt.Client, msg mqtt.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		log.Printf("MQTT payload unmarshal error (event): %v", err)
		return
	}
	h.PublishEvent(ev)
}

func (h *Hub) handleStateMessage(_ mqtt.Client, msg mqtt.Message) {
	var st State
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		log.Printf("MQTT payload unmarshal error (state): %v", err)
		return
	}
	h.PublishState(st)
}

func RunWeb() error {
	cfg := config.Get()
	hub := NewHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to events and state
	subs := map[string]mqtt.MessageHandler{
		cfg.TopicEvents: hub.handleEventMessage,
		cfg.TopicState:  hub.handleStateMessage,
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("subscribed to MQTT topic %s", topic)
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, hub.Handler("web"))
}
