package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.market.GetAccountSnapshot(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch account snapshot", zap.Error(err))
		http.Error(w, "Failed to fetch account snapshot", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, map[string]any{
		"positions":      snap.Positions,
		"pending_orders": snap.PendingOrders,
		"account":        snap.Account,
		"fetched_at":     snap.FetchedAt,
	})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	decisions, err := s.decisions.ListDecisions(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list decisions", zap.Error(err))
		http.Error(w, "Failed to list decisions", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, decisions)
}

func (s *Server) handleRunners(w http.ResponseWriter, r *http.Request) {
	states, err := s.runners.ListRunnerStates(r.Context())
	if err != nil {
		s.logger.Error("Failed to list runner states", zap.Error(err))
		http.Error(w, "Failed to list runner states", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, states)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.trades.ListClosedTrades(r.Context(), 100)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
