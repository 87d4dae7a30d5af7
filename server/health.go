// Package server exposes the processor's observability surface: a JSON
// /health endpoint and the Prometheus /metrics handler on one listener.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatsProvider returns a named block of counters for the health response.
type StatsProvider func() map[string]interface{}

// PhaseProvider reports the pipeline phase used to derive overall status.
type PhaseProvider func() string

// HealthServer serves /health and /metrics.
type HealthServer struct {
	port   int
	logger *zap.Logger
	server *http.Server

	mu        sync.RWMutex
	providers map[string]StatsProvider
	phase     PhaseProvider
	startTime time.Time
}

// NewHealthServer creates a health server on the given port.
func NewHealthServer(port int, logger *zap.Logger) *HealthServer {
	return &HealthServer{
		port:      port,
		logger:    logger,
		providers: make(map[string]StatsProvider),
		startTime: time.Now(),
	}
}

// RegisterStats adds a named stats block to the health response.
func (hs *HealthServer) RegisterStats(name string, provider StatsProvider) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.providers[name] = provider
}

// SetPhaseProvider wires the pipeline phase into the status field.
func (hs *HealthServer) SetPhaseProvider(provider PhaseProvider) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.phase = provider
}

// Start begins serving in a background goroutine.
func (hs *HealthServer) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	hs.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", hs.port),
		Handler: mux,
	}

	go func() {
		hs.logger.Info("health endpoint listening",
			zap.Int("port", hs.port),
		)
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.logger.Error("health server error", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Shutdown(ctx)
}

func (hs *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	hs.mu.RLock()
	phase := "unknown"
	if hs.phase != nil {
		phase = hs.phase()
	}
	stats := make(map[string]interface{}, len(hs.providers))
	for name, provider := range hs.providers {
		stats[name] = provider()
	}
	hs.mu.RUnlock()

	status := "healthy"
	switch phase {
	case "failed":
		status = "unhealthy"
	case "backfilling", "idle":
		status = "starting"
	}

	response := map[string]interface{}{
		"status":         status,
		"phase":          phase,
		"uptime_seconds": int64(time.Since(hs.startTime).Seconds()),
		"stats":          stats,
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
