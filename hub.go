package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gammawatch/internal/notify"
)

/* ====================
   Websocket hub
   ==================== */

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

type wsClient struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
}

type statusMsg struct {
	Type  string `json:"type"` // "status"
	Level string `json:"level"`
	Text  string `json:"text"`
}

type eventMsg struct {
	Type  string       `json:"type"` // "alert"
	Alert notify.Event `json:"alert"`
}

type historyMsg struct {
	Type   string         `json:"type"` // "history"
	Alerts []notify.Event `json:"alerts"`
}

type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	history []notify.Event
	limit   int
}

func newHub(limit int) *hub {
	return &hub{
		clients: make(map[*wsClient]struct{}),
		history: make([]notify.Event, 0, limit),
		limit:   limit,
	}
}

func (h *hub) addHistory(ev notify.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, ev)
	if h.limit > 0 && len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
}

func (h *hub) getHistory() []notify.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]notify.Event, len(h.history))
	copy(out, h.history)
	return out
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- v:
		default:
		}
	}
}

// Publish records an alert event and pushes it to every connected client.
// Safe to hand to the sink as its broadcast callback.
func (h *hub) Publish(ev notify.Event) {
	h.addHistory(ev)
	h.broadcast(eventMsg{Type: "alert", Alert: ev})
}

func (h *hub) serveWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		cl := &wsClient{conn: conn, out: make(chan any, 256), done: make(chan struct{})}
		h.mu.Lock()
		h.clients[cl] = struct{}{}
		h.mu.Unlock()

		// writer
		go func() {
			ping := time.NewTicker(45 * time.Second)
			defer ping.Stop()
			for {
				select {
				case v := <-cl.out:
					_ = conn.WriteJSON(v)
				case <-ping.C:
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				case <-cl.done:
					return
				}
			}
		}()

		// greet + replay history
		select {
		case cl.out <- statusMsg{Type: "status", Level: "info", Text: "Connected"}:
		default:
		}
		select {
		case cl.out <- historyMsg{Type: "history", Alerts: h.getHistory()}:
		default:
		}

		// reader: only here to notice disconnects and answer pings
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		close(cl.done)
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
	}
}
