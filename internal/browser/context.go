// Package browser drives a Chrome/Chromium page with ChromeDP to reach
// host capabilities that only exist inside a browser, such as speech
// recognition.
//
// The browser is started lazily on the first action and shared through a
// ContextHolder, so it can be restarted after a failure without the
// callers holding stale contexts.
package browser

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ContextHolder provides thread-safe access to a browser context.
//
// Thread-safety:
//   - All methods use mutex locking
//   - Context updates are atomic
type ContextHolder struct {
	mu     sync.RWMutex       // Protects ctx and cancel
	ctx    context.Context    // Current browser context
	cancel context.CancelFunc // Function to cancel current context
	logger *zap.SugaredLogger
}

// NewContextHolder creates a holder around a fresh browser context.
//
// No browser process is started until the first chromedp.Run.
func NewContextHolder(logger *zap.SugaredLogger) *ContextHolder {
	h := &ContextHolder{logger: logger}
	h.ctx, h.cancel = NewContext(logger)
	return h
}

// Get returns the current browser context.
func (h *ContextHolder) Get() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

// Set replaces the browser context, cancelling the old one first.
func (h *ContextHolder) Set(ctx context.Context, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Cancel old context to free resources
	if h.cancel != nil {
		h.cancel()
	}
	h.ctx = ctx
	h.cancel = cancel
}

// Restart swaps in a new browser context, closing the old browser.
func (h *ContextHolder) Restart() {
	h.logger.Warn("⚠️  Restarting browser context...")
	ctx, cancel := NewContext(h.logger)
	h.Set(ctx, cancel)
}

// Cancel cancels the current browser context and cleans up resources.
//
// This should be called on shutdown and is safe to call more than once.
func (h *ContextHolder) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// NewContext creates a new Chrome browser context whose debug output goes
// to logger.
func NewContext(logger *zap.SugaredLogger) (context.Context, context.CancelFunc) {
	logger.Debug("→ Creating new browser context...")

	ctx, cancel := chromedp.NewContext(
		context.Background(),
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Errorf),
	)

	logger.Debug("✓ Browser context created")
	return ctx, cancel
}
