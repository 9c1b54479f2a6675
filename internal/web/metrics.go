package web

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dashboard metrics are pull-based: the cron jobs are short-lived, so the
// long-running dashboard reads counts out of shared storage on every scrape
// instead of the jobs pushing samples.

var wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "trade_sentinel",
	Name:      "ws_clients",
	Help:      "Connected websocket decision-stream clients",
})

func (s *Server) registerMetrics() {
	s.registry.MustRegister(wsClients)

	factory := promauto.With(s.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "trade_sentinel",
		Name:      "runner_states",
		Help:      "Persisted runner trailing states",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		states, err := s.runners.ListRunnerStates(ctx)
		if err != nil {
			return -1
		}
		return float64(len(states))
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "trade_sentinel",
		Name:      "decisions_total",
		Help:      "Total monitoring decisions recorded",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		id, err := s.decisions.LastDecisionID(ctx)
		if err != nil {
			return -1
		}
		return float64(id)
	})
}
