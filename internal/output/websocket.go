package output

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

const (
	clientBuffer = 8
	writeWait    = 10 * time.Second
)

// WebSocketOutput pushes messages to every connected browser over a websocket
type WebSocketOutput struct {
	running bool
	mu      sync.RWMutex

	upgrader websocket.Upgrader

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan Message]struct{}

	// Stats
	statsMu   sync.RWMutex
	sent      uint64
	dropped   uint64
	last      *Message
	startTime time.Time
}

// Stats is a snapshot of hub activity
type Stats struct {
	Running bool   `json:"running"`
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Uptime  string `json:"uptime"`
}

// NewWebSocketOutput creates a new websocket hub
func NewWebSocketOutput() *WebSocketOutput {
	return &WebSocketOutput{
		clients: make(map[chan Message]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local viewer pages may be opened from anywhere
			},
		},
	}
}

// Start marks the hub as accepting clients and messages
func (o *WebSocketOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("websocket output already running")
	}

	o.running = true

	o.statsMu.Lock()
	o.startTime = time.Now()
	o.sent = 0
	o.dropped = 0
	o.statsMu.Unlock()

	logger.WithComponent("output").Info().Msg("[WS] Output started")
	return nil
}

// Stop disconnects every client
func (o *WebSocketOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil
	}

	o.running = false

	o.clientsMu.Lock()
	for ch := range o.clients {
		close(ch)
	}
	o.clients = make(map[chan Message]struct{})
	o.clientsMu.Unlock()

	o.statsMu.RLock()
	sent := o.sent
	o.statsMu.RUnlock()

	logger.WithComponent("output").Info().Msgf("[WS] Output stopped after %d messages", sent)
	return nil
}

// Send broadcasts msg to all clients without waiting on any of them
func (o *WebSocketOutput) Send(msg Message) error {
	if !o.IsRunning() {
		return fmt.Errorf("websocket output not running")
	}

	var delivered, dropped uint64

	o.clientsMu.RLock()
	for ch := range o.clients {
		select {
		case ch <- msg:
			delivered++
		default:
			// Client is slow, skip this message
			dropped++
		}
	}
	o.clientsMu.RUnlock()

	o.statsMu.Lock()
	o.sent++
	o.dropped += dropped
	o.last = &msg
	o.statsMu.Unlock()

	logger.WithComponent("output").Debug().
		Str("event", msg.Event).
		Uint64("delivered", delivered).
		Uint64("dropped", dropped).
		Msg("[WS] Broadcast")

	return nil
}

// Name returns the output type name
func (o *WebSocketOutput) Name() string {
	return "WebSocket"
}

// IsRunning returns true if the output is active
func (o *WebSocketOutput) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// ClientCount returns the number of connected clients
func (o *WebSocketOutput) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

// Last returns the most recent message, if any
func (o *WebSocketOutput) Last() (Message, bool) {
	o.statsMu.RLock()
	defer o.statsMu.RUnlock()
	if o.last == nil {
		return Message{}, false
	}
	return *o.last, true
}

// Stats returns hub counters
func (o *WebSocketOutput) Stats() Stats {
	running := o.IsRunning()
	clients := o.ClientCount()

	o.statsMu.RLock()
	defer o.statsMu.RUnlock()

	uptime := "N/A"
	if running && !o.startTime.IsZero() {
		uptime = time.Since(o.startTime).Round(time.Second).String()
	}

	return Stats{
		Running: running,
		Clients: clients,
		Sent:    o.sent,
		Dropped: o.dropped,
		Uptime:  uptime,
	}
}

// Subscribe registers a client channel. The channel is closed by Unsubscribe
// or Stop, whichever comes first.
func (o *WebSocketOutput) Subscribe() (chan Message, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.running {
		return nil, fmt.Errorf("websocket output not running")
	}

	ch := make(chan Message, clientBuffer)

	o.clientsMu.Lock()
	o.clients[ch] = struct{}{}
	count := len(o.clients)
	o.clientsMu.Unlock()

	logger.WithComponent("output").Info().Msgf("[WS] New client connected (total: %d)", count)
	return ch, nil
}

// Unsubscribe removes a client channel
func (o *WebSocketOutput) Unsubscribe(ch chan Message) {
	o.clientsMu.Lock()
	_, ok := o.clients[ch]
	if ok {
		delete(o.clients, ch)
		close(ch)
	}
	count := len(o.clients)
	o.clientsMu.Unlock()

	if ok {
		logger.WithComponent("output").Info().Msgf("[WS] Client disconnected (remaining: %d)", count)
	}
}

// GetHTTPHandler returns an http.Handler that upgrades to a websocket and
// streams messages as JSON
func (o *WebSocketOutput) GetHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithComponent("output")

		if !o.IsRunning() {
			http.Error(w, "output not running", http.StatusServiceUnavailable)
			return
		}

		conn, err := o.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("[WS] Upgrade failed")
			return
		}
		defer conn.Close()

		messages, err := o.Subscribe()
		if err != nil {
			return
		}
		defer o.Unsubscribe(messages)

		// Drain reads so close frames are noticed
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
			case msg, ok := <-messages:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(writeWait))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug().Err(err).Msg("[WS] Write failed")
					return
				}
			case <-gone:
				return
			}
		}
	}
}
