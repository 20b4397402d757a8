// Package view holds the display-side helpers shared by the admin and
// intake controllers: notifications, reveal timing, busy controls and the
// set of display slots a surface offers.
package view

import (
	"sync"
	"time"
)

// Level is the visual style of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Toast is one transient notification.
type Toast struct {
	ID      int
	Message string
	Level   Level
	ShownAt time.Time
}

// ToasterOption configures a Toaster.
type ToasterOption func(*Toaster)

// ReplaceExisting makes a new toast dismiss the one currently shown.
func ReplaceExisting() ToasterOption {
	return func(t *Toaster) { t.replace = true }
}

// WithSink registers a callback invoked for every toast shown.
func WithSink(sink func(Toast)) ToasterOption {
	return func(t *Toaster) { t.sink = sink }
}

// Toaster shows toasts and dismisses each one after a fixed duration.
type Toaster struct {
	mu       sync.Mutex
	clock    Clock
	duration time.Duration
	replace  bool
	sink     func(Toast)

	nextID  int
	active  []Toast
	timers  map[int]Timer
	history []Toast
}

func NewToaster(clock Clock, duration time.Duration, opts ...ToasterOption) *Toaster {
	t := &Toaster{
		clock:    clock,
		duration: duration,
		timers:   make(map[int]Timer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show displays message and schedules its dismissal.
func (t *Toaster) Show(message string, level Level) Toast {
	t.mu.Lock()
	if t.replace {
		for id, timer := range t.timers {
			timer.Stop()
			delete(t.timers, id)
		}
		t.active = nil
	}

	t.nextID++
	toast := Toast{ID: t.nextID, Message: message, Level: level, ShownAt: t.clock.Now()}
	t.active = append(t.active, toast)
	t.history = append(t.history, toast)
	sink := t.sink
	t.mu.Unlock()

	// Scheduled outside the lock: a manual clock may fire synchronously
	timer := t.clock.AfterFunc(t.duration, func() { t.dismiss(toast.ID) })

	t.mu.Lock()
	if t.isActive(toast.ID) {
		t.timers[toast.ID] = timer
	}
	t.mu.Unlock()

	if sink != nil {
		sink(toast)
	}
	return toast
}

func (t *Toaster) dismiss(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, id)
	for i, toast := range t.active {
		if toast.ID == id {
			t.active = append(t.active[:i], t.active[i+1:]...)
			return
		}
	}
}

func (t *Toaster) isActive(id int) bool {
	for _, toast := range t.active {
		if toast.ID == id {
			return true
		}
	}
	return false
}

// Active returns the toasts currently on screen, oldest first.
func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.active...)
}

// History returns every toast ever shown, oldest first.
func (t *Toaster) History() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.history...)
}

// Last returns the most recent toast, if any.
func (t *Toaster) Last() (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return Toast{}, false
	}
	return t.history[len(t.history)-1], true
}
