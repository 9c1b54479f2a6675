package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard is same-host only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DecisionHub pushes newly appended monitoring decisions to websocket
// clients. The monitor jobs are separate processes, so the hub tails the
// shared decisions table instead of receiving events in-process.
type DecisionHub struct {
	decisions domain.DecisionRepository
	logger    *zap.Logger
	poll      time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	lastID  int64
}

func NewDecisionHub(decisions domain.DecisionRepository, logger *zap.Logger) *DecisionHub {
	return &DecisionHub{
		decisions: decisions,
		logger:    logger,
		poll:      2 * time.Second,
		clients:   make(map[*websocket.Conn]struct{}),
	}
}

func (h *DecisionHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	wsClients.Inc()

	// Reader goroutine only drains control frames and detects disconnect.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Run tails the decisions table and broadcasts new rows until ctx is done.
func (h *DecisionHub) Run(ctx context.Context) {
	if id, err := h.decisions.LastDecisionID(ctx); err == nil {
		h.lastID = id // only stream decisions made after startup
	}

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.broadcastNew(ctx)
		}
	}
}

func (h *DecisionHub) broadcastNew(ctx context.Context) {
	latest, err := h.decisions.LastDecisionID(ctx)
	if err != nil || latest <= h.lastID {
		return
	}

	decisions, err := h.decisions.ListDecisions(ctx, int(latest-h.lastID))
	if err != nil {
		h.logger.Warn("Failed to read new decisions", zap.Error(err))
		return
	}
	h.lastID = latest

	// ListDecisions returns newest-first; send oldest-first.
	for i := len(decisions) - 1; i >= 0; i-- {
		h.broadcast(decisions[i])
	}
}

func (h *DecisionHub) broadcast(d *domain.Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(d); err != nil {
			conn.Close()
			delete(h.clients, conn)
			wsClients.Dec()
		}
	}
}

func (h *DecisionHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		conn.Close()
		delete(h.clients, conn)
		wsClients.Dec()
	}
}

func (h *DecisionHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
		wsClients.Dec()
	}
}
