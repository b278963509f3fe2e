package preferences

import (
	"fmt"
	"sync"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// Store holds the single live Preferences value of a session.
type Store struct {
	mu    sync.RWMutex
	prefs domain.Preferences
}

// NewStore creates a store seeded with initial.
func NewStore(initial domain.Preferences) *Store {
	return &Store{prefs: initial}
}

func (s *Store) Get() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Set replaces the preferences wholesale. Only the route goal is validated.
func (s *Store) Set(next domain.Preferences) error {
	if !next.RouteGoal.Valid() {
		return fmt.Errorf("%w: unknown route goal %q", domain.ErrInvalidPreferences, next.RouteGoal)
	}

	s.mu.Lock()
	s.prefs = next
	s.mu.Unlock()
	return nil
}
