package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/trace"
)

// StreamMessage is one event sent to stream subscribers.
type StreamMessage struct {
	Seq  int     `json:"seq"`
	Time float64 `json:"time"`
	Kind string  `json:"kind"`
	Info string  `json:"info"`
	Data any     `json:"data,omitempty"`
}

// Hub is a sim.EventObserver broadcasting every event to WebSocket
// subscribers. A subscriber that falls behind loses messages.
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	seq    int
	closed bool
}

// NewHub creates a hub without subscribers.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[chan []byte]struct{}),
	}
}

// Notify implements sim.EventObserver.
func (h *Hub) Notify(_ *sim.Simulator, ev sim.Event, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := StreamMessage{Seq: h.seq, Time: ev.Time(), Kind: trace.Kind(ev), Info: ev.Info()}
	h.seq++
	if len(h.subs) == 0 {
		return
	}
	if _, ok := data.(*sim.AllocationResult); !ok {
		msg.Data = data
	}
	b, err := json.Marshal(msg)
	if err != nil {
		logrus.Warnf("stream: cannot encode %s: %v", msg.Kind, err)
		return
	}
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan []byte, 1024)
	h.subs[ch] = struct{}{}
	return ch, true
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// ServeHTTP upgrades the request and streams messages until either side closes.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, ok := h.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "run finished"), time.Now().Add(time.Second))
		return
	}
	defer h.unsubscribe(ch)

	// Reader: only used to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case b, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
