package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func getStatus(t *testing.T, h http.Handler) Status {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var s Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func TestHealthBeforeFirstPoll(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewMonitor(clock.Now)

	s := getStatus(t, Router(m))
	assert.Equal(t, "healthy", s.Status)
	assert.Equal(t, "not started", s.LastPollStatus)
	assert.Empty(t, s.LastPollTime)
	assert.Equal(t, "now", s.UptimeHuman)
	assert.Zero(t, s.Polls)
}

func TestHealthTracksPolls(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewMonitor(clock.Now)
	h := Router(m)

	clock.Advance(2 * time.Hour)
	m.UpdatePollStatus("success", 3)

	s := getStatus(t, h)
	assert.Equal(t, "healthy", s.Status)
	assert.Equal(t, "2h0m0s", s.Uptime)
	assert.Equal(t, "2 hours", s.UptimeHuman)
	assert.Equal(t, "2025-03-01 11:00:00", s.LastPollTime)
	assert.Equal(t, 1, s.Polls)
	assert.Equal(t, 3, s.Announced)

	clock.Advance(5 * time.Minute)
	m.UpdatePollStatus("error: portal unreachable", 0)

	s = getStatus(t, h)
	assert.Equal(t, "degraded", s.Status)
	assert.Equal(t, "error: portal unreachable", s.LastPollStatus)
	assert.Equal(t, 2, s.Polls)
	assert.Equal(t, 3, s.Announced)
}

func TestHealthAllowsCrossOriginReads(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://status.example.com")
	rec := httptest.NewRecorder()
	Router(NewMonitor(nil)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	Router(NewMonitor(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeStopsWithContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, NewMonitor(nil), port, nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
