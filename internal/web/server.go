package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/maksym/trade_sentinel/internal/domain"
)

// Server is the read-only status dashboard. It never takes the job lock:
// everything it serves comes from the gateway's read endpoints and the local
// sqlite history.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	market    domain.MarketDataGateway
	runners   domain.RunnerStateRepository
	decisions domain.DecisionRepository
	trades    domain.TradeRepository
	hub       *DecisionHub
	registry  *prometheus.Registry
	logger    *zap.Logger
}

func NewServer(
	port int,
	market domain.MarketDataGateway,
	runners domain.RunnerStateRepository,
	decisions domain.DecisionRepository,
	trades domain.TradeRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		market:    market,
		runners:   runners,
		decisions: decisions,
		trades:    trades,
		hub:       NewDecisionHub(decisions, logger),
		registry:  prometheus.NewRegistry(),
		logger:    logger,
	}
	s.registerMetrics()
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /decisions", s.handleDecisions)
	s.router.HandleFunc("GET /runners", s.handleRunners)
	s.router.HandleFunc("GET /trades", s.handleTrades)
	s.router.HandleFunc("GET /ws", s.hub.HandleWS)
	s.router.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.logger.Info("Starting dashboard server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
