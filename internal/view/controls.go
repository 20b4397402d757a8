package view

import (
	"sync"
	"time"
)

// Stagger is the reveal delay for row index when rows appear step apart.
func Stagger(index int, step time.Duration) time.Duration {
	if index < 0 {
		return 0
	}
	return time.Duration(index) * step
}

// Busy is a control that is disabled while a request is in flight.
type Busy struct {
	mu      sync.Mutex
	idle    string
	label   string
	holders int
}

// NewBusy returns an enabled control showing idleLabel.
func NewBusy(idleLabel string) *Busy {
	return &Busy{idle: idleLabel, label: idleLabel}
}

// Acquire disables the control and shows label. The returned release
// restores the idle state and is safe to call more than once. ok is false
// when the control was already busy, in which case release is a no-op.
func (b *Busy) Acquire(label string) (release func(), ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holders > 0 {
		return func() {}, false
	}
	return b.holdLocked(label), true
}

// Hold disables the control and shows label even when it is already busy.
// The control returns to idle once every holder has released.
func (b *Busy) Hold(label string) (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holdLocked(label)
}

func (b *Busy) holdLocked(label string) func() {
	b.holders++
	b.label = label

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.holders--
			if b.holders == 0 {
				b.label = b.idle
			}
		})
	}
}

// State reports whether the control is disabled and what it shows.
func (b *Busy) State() (disabled bool, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holders > 0, b.label
}

// Slots is the set of named display targets a surface provides.
// A nil Slots provides every slot.
type Slots map[string]bool

// NewSlots returns a surface providing exactly names.
func NewSlots(names ...string) Slots {
	s := make(Slots, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func (s Slots) Has(name string) bool {
	if s == nil {
		return true
	}
	return s[name]
}
