package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inovacc/pagewright/internal/admin"
)

// Event types pushed to the admin panel.
const (
	EventConnected       = "connected"
	EventHeartbeat       = "heartbeat"
	EventContentChanged  = "content:changed"
	EventPublishStarted  = "publish:started"
	EventPublishFinished = "publish:finished"
	EventPublishFailed   = "publish:failed"
)

const sseHeartbeat = 30 * time.Second

// SSEEvent represents a server-sent event
type SSEEvent struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// SSEHub fans events out to every connected admin panel.
type SSEHub struct {
	clients    map[chan SSEEvent]bool
	broadcast  chan SSEEvent
	register   chan chan SSEEvent
	unregister chan chan SSEEvent
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewSSEHub creates a new SSE hub
func NewSSEHub(logger *slog.Logger) *SSEHub {
	return &SSEHub{
		clients:    make(map[chan SSEEvent]bool),
		broadcast:  make(chan SSEEvent, 100),
		register:   make(chan chan SSEEvent),
		unregister: make(chan chan SSEEvent),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's event loop. It returns when ctx is done and closes every
// client channel. Run must be called at most once.
func (h *SSEHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()

			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()

			h.logger.Debug("sse client connected", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			n := len(h.clients)
			h.mu.Unlock()

			h.logger.Debug("sse client disconnected", "clients", n)

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client <- event:
				default:
					// slow client, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for all connected clients
func (h *SSEHub) Broadcast(event SSEEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("sse broadcast channel full, dropping event", "type", event.Type)
	}
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// handleSSE streams hub events to one signed-in panel.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request, _ *admin.Session) {
	rc := http.NewResponseController(w)

	// the stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := make(chan SSEEvent, 10)

	select {
	case s.sseHub.register <- client:
	case <-s.sseHub.done:
		return
	case <-r.Context().Done():
		return
	}

	defer func() {
		select {
		case s.sseHub.unregister <- client:
		case <-s.sseHub.done:
		}
	}()

	if err := s.sendSSEEvent(w, rc, SSEEvent{
		Type:    EventConnected,
		Message: "SSE connection established",
		Data:    map[string]any{"timestamp": time.Now().Format(time.RFC3339)},
	}); err != nil {
		s.logger.Warn("sse not supported", "error", err)

		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-client:
			if !ok {
				return
			}

			if err := s.sendSSEEvent(w, rc, event); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := s.sendSSEEvent(w, rc, SSEEvent{
				Type:    EventHeartbeat,
				Message: "ping",
				Data:    map[string]any{"clients": s.sseHub.ClientCount()},
			}); err != nil {
				return
			}
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func (s *Server) sendSSEEvent(w http.ResponseWriter, rc *http.ResponseController, event SSEEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal sse event", "error", err)

		return nil
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}

	return rc.Flush()
}

// BroadcastEvent sends an event to all connected SSE clients
func (s *Server) BroadcastEvent(eventType, message string, data any) {
	if s.sseHub == nil {
		return
	}

	s.sseHub.Broadcast(SSEEvent{
		Type:    eventType,
		Message: message,
		Data:    data,
	})
}
