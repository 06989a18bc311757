package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/bryanchriswhite/FocusLog/internal/config"
	"github.com/bryanchriswhite/FocusLog/internal/logger"
	"github.com/bryanchriswhite/FocusLog/internal/output"
	"github.com/bryanchriswhite/FocusLog/internal/tracker"
)

// SnapshotSource exposes the tracked window
type SnapshotSource interface {
	Snapshot() (tracker.Snapshot, bool)
}

// Server represents the HTTP API server
type Server struct {
	router     *mux.Router
	source     SnapshotSource
	hub        *output.WebSocketOutput
	configMgr  *config.Manager
	version    string

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new API server. configMgr may be nil.
func NewServer(source SnapshotSource, hub *output.WebSocketOutput, configMgr *config.Manager, version string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		source:    source,
		hub:       hub,
		configMgr: configMgr,
		version:   version,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Window state
	api.HandleFunc("/window/current", s.handleGetCurrentWindow).Methods("GET")

	// Dwell events
	api.HandleFunc("/events/stream", s.hub.GetHTTPHandler())
	api.HandleFunc("/events/last", s.handleLastEvent).Methods("GET")
	api.HandleFunc("/events/stats", s.handleStats).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logger.WithComponent("api").Info().Msgf("Starting server on http://localhost%s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Server) handleGetCurrentWindow(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.source.Snapshot()
	if !ok {
		http.Error(w, "No window tracked", http.StatusNotFound)
		return
	}

	writeJSON(w, snap)
}

func (s *Server) handleLastEvent(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.hub.Last()
	if !ok {
		http.Error(w, "No dwell recorded yet", http.StatusNotFound)
		return
	}

	writeJSON(w, msg)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.hub.Stats())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "No configuration loaded", http.StatusNotFound)
		return
	}

	writeJSON(w, s.configMgr.Get())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"output":  s.hub.IsRunning(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only serve HTML for root path
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexHTML))
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api") {
		http.NotFound(w, r)
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FocusLog</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            max-width: 900px;
            margin: 40px auto;
            padding: 20px;
            background: #f5f5f5;
        }
        .current {
            padding: 10px;
            background: #e8f5e9;
            border-left: 4px solid #4caf50;
            margin-bottom: 20px;
        }
        .event {
            background: white;
            padding: 16px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            margin-bottom: 16px;
        }
        .event h3 {
            margin: 0 0 4px 0;
            color: #333;
        }
        .meta {
            color: #666;
            font-size: 14px;
        }
        .event img {
            max-width: 100%;
            margin-top: 10px;
            border-radius: 4px;
        }
        .offline {
            color: #c62828;
        }
    </style>
</head>
<body>
    <h1>FocusLog</h1>
    <div class="current" id="current">Waiting for the first poll...</div>
    <div id="status" class="meta"></div>
    <div id="events"></div>
    <script>
        const events = document.getElementById('events');
        const status = document.getElementById('status');
        const current = document.getElementById('current');

        function render(msg) {
            if (msg.event !== 'tab-duration') return;
            const p = msg.payload;
            const card = document.createElement('div');
            card.className = 'event';
            const h = document.createElement('h3');
            h.textContent = p.app;
            const meta = document.createElement('div');
            meta.className = 'meta';
            meta.textContent = p.title + ' - ' + p.duration + 's';
            card.appendChild(h);
            card.appendChild(meta);
            if (p.screenshot) {
                const img = document.createElement('img');
                img.src = p.screenshot;
                card.appendChild(img);
            }
            events.prepend(card);
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + location.host + '/api/events/stream');
            ws.onopen = () => { status.textContent = 'Live'; status.className = 'meta'; };
            ws.onmessage = (e) => render(JSON.parse(e.data));
            ws.onclose = () => {
                status.textContent = 'Disconnected, retrying...';
                status.className = 'meta offline';
                setTimeout(connect, 2000);
            };
        }

        function poll() {
            fetch('/api/window/current')
                .then(r => r.ok ? r.json() : null)
                .then(s => {
                    if (s) current.textContent = s.window.owner_name + ' - ' + s.window.title + ' (' + s.dwell_seconds + 's)';
                })
                .catch(console.error);
        }

        connect();
        poll();
        setInterval(poll, 2000);
    </script>
</body>
</html>`
