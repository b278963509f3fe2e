package geofilter

import (
	"slices"
	"sync"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// Tracker holds the last accepted position for a session.
// Only Offer writes to it; readers get copies.
type Tracker struct {
	thresholds Thresholds

	mu        sync.RWMutex
	last      *domain.PositionFix
	listeners []func(domain.PositionFix)
}

func NewTracker(th Thresholds) *Tracker {
	return &Tracker{thresholds: th}
}

// Offer runs the jitter filter against the current cell and replaces it on accept.
// Listeners are notified after the lock is released.
func (t *Tracker) Offer(fix domain.PositionFix) Decision {
	t.mu.Lock()
	decision := t.thresholds.Consider(fix, t.last)
	if decision == Reject {
		t.mu.Unlock()
		return Reject
	}

	accepted := fix
	t.last = &accepted
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(accepted)
	}
	return Accept
}

// Last returns a snapshot of the accepted position, if any.
func (t *Tracker) Last() (domain.PositionFix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.last == nil {
		return domain.PositionFix{}, false
	}
	return *t.last, true
}

// OnChange registers fn to be called with every accepted fix.
func (t *Tracker) OnChange(fn func(domain.PositionFix)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.listeners = append(t.listeners, fn)
}
