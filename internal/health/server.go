// Package health provides the health check endpoint of the watcher.
//
// This package implements:
//   - Poll outcome tracking
//   - Uptime monitoring
//   - A chi router serving GET /health
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"grievedesk/internal/logging"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const notStarted = "not started"

// Status is the JSON body of GET /health.
//
// Fields:
//   - Status: "healthy", or "degraded" when the last poll failed
//   - Uptime: Exact uptime as a duration string
//   - UptimeHuman: Rounded uptime for people (e.g., "3 hours")
//   - LastPollTime: When the last poll finished, empty before the first
//   - LastPollStatus: "success" or the error text
//   - Polls: Number of polls finished
//   - Announced: Tickets announced since start
type Status struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	UptimeHuman    string `json:"uptime_human"`
	LastPollTime   string `json:"last_poll_time"`
	LastPollStatus string `json:"last_poll_status"`
	Polls          int    `json:"polls"`
	Announced      int    `json:"announced"`
}

// Monitor tracks watcher health. It is safe for concurrent use.
type Monitor struct {
	now            func() time.Time
	startTime      time.Time
	lastPollTime   time.Time
	lastPollStatus string
	polls          int
	announced      int
	mu             sync.RWMutex
}

// NewMonitor creates a monitor whose uptime starts now. A nil clock means
// time.Now.
func NewMonitor(now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		now:            now,
		startTime:      now(),
		lastPollStatus: notStarted,
	}
}

// UpdatePollStatus records a finished poll.
func (m *Monitor) UpdatePollStatus(status string, announced int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPollTime = m.now()
	m.lastPollStatus = status
	m.polls++
	m.announced += announced
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	status := Status{
		Status:         "healthy",
		Uptime:         now.Sub(m.startTime).Truncate(time.Second).String(),
		UptimeHuman:    strings.TrimSpace(humanize.RelTime(m.startTime, now, "", "")),
		LastPollStatus: m.lastPollStatus,
		Polls:          m.polls,
		Announced:      m.announced,
	}
	if !m.lastPollTime.IsZero() {
		status.LastPollTime = m.lastPollTime.Format("2006-01-02 15:04:05")
	}
	if m.lastPollStatus != notStarted && m.lastPollStatus != "success" {
		status.Status = "degraded"
	}
	return status
}

// Router returns the health routes. Any origin may read them so a status
// page can poll the endpoint from a browser.
//
// Example response:
//
//	{
//	  "status": "healthy",
//	  "uptime": "1h2m3s",
//	  "uptime_human": "1 hour",
//	  "last_poll_time": "2026-01-15 10:30:00",
//	  "last_poll_status": "success",
//	  "polls": 13,
//	  "announced": 4
//	}
func Router(monitor *Monitor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(monitor.GetStatus())
	})
	return r
}

// Serve runs the health server on port until ctx is done, then shuts it
// down gracefully.
func Serve(ctx context.Context, monitor *Monitor, port string, logger *zap.SugaredLogger) error {
	logger = logging.OrNop(logger)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           Router(monitor),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("✓ Health check server started", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("⚠️  Health check server shutdown error", "error", err)
		}
		return nil
	}
}
