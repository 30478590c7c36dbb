package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"pulse/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerScope = 5000
	maxTotalConns    = 10000
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// FeedHub maps feed scopes to websocket clients.
type FeedHub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
	log        *observability.WSLogger
}

// NewFeedHub creates an empty hub.
func NewFeedHub() *FeedHub {
	return &FeedHub{
		conns: make(map[string]map[*Client]struct{}),
		log:   observability.NewWSLogger("feed"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *FeedHub) Name() string { return "feed hub" }

// Register adds a connection under scope.
func (h *FeedHub) Register(viewerID, scope string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[scope]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[scope] = m
	}
	if len(m) >= maxConnsPerScope {
		return nil, errors.New("scope connection limit reached")
	}

	client := NewClient(h, conn, viewerID, scope)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), viewerID, scope)
	return client, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call
// more than once.
func (h *FeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.Scope]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	close(client.Send)
	h.totalConns--
	observability.WebSocketConnectionsTotal.Dec()
	if len(m) == 0 {
		delete(h.conns, client.Scope)
	}
	h.log.LogDisconnect(context.Background(), client.ViewerID, client.Scope, "unregister")
}

// Count returns the number of clients in scope.
func (h *FeedHub) Count(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[scope])
}

// Dispatch delivers a vote event to every scope that should see it.
func (h *FeedHub) Dispatch(evt VoteEvent, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, scope := range evt.Scopes() {
		for c := range h.conns[scope] {
			c.TrySend(payload)
		}
	}
	observability.WebSocketEventsTotal.WithLabelValues(evt.Type).Inc()
}

// StartWiring subscribes the hub to vote events published by any instance.
func (h *FeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartVoteSubscriber(ctx, func(payload string) {
		evt, err := decodeVoteEvent(payload)
		if err != nil {
			log.Printf("dropping malformed vote event: %v", err)
			return
		}
		h.Dispatch(evt, []byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections
func (h *FeedHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for scope, clients := range h.conns {
		for client := range clients {
			if client.Conn != nil {
				if err := client.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
					log.Printf("failed to write close message on scope %s: %v", scope, err)
				}
				_ = client.Conn.Close()
			}
			close(client.Send)
			observability.WebSocketConnectionsTotal.Dec()
		}
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	h.log.LogLifecycle(context.Background(), "shutdown", nil)
	return nil
}
