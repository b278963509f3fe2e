package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// Closer is anything the registry must release when it forgets it.
type Closer interface {
	Close()
}

// SessionStore keeps live sessions in memory. Sessions idle for longer than
// the TTL are evicted and closed; every Get refreshes the TTL.
// It is NOT persistent: a restart forgets every session.
type SessionStore[T Closer] struct {
	items *cache.Cache
}

// NewSessionStore creates a store. ttl <= 0 keeps sessions until deleted.
func NewSessionStore[T Closer](ttl time.Duration) *SessionStore[T] {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
	}

	c := cache.New(expiration, cleanup)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(T); ok {
			s.Close()
		}
	})

	return &SessionStore[T]{items: c}
}

func (s *SessionStore[T]) Put(id domain.SessionID, sess T) {
	s.items.Set(string(id), sess, cache.DefaultExpiration)
}

func (s *SessionStore[T]) Get(id domain.SessionID) (T, bool) {
	var zero T

	v, ok := s.items.Get(string(id))
	if !ok {
		return zero, false
	}
	sess, ok := v.(T)
	if !ok {
		return zero, false
	}

	// touch: an active session never expires. Replace fails if the janitor
	// evicted it in between, which keeps a closed session from coming back.
	_ = s.items.Replace(string(id), sess, cache.DefaultExpiration)
	return sess, true
}

// Delete forgets the session and closes it.
func (s *SessionStore[T]) Delete(id domain.SessionID) {
	s.items.Delete(string(id))
}

func (s *SessionStore[T]) Len() int {
	return s.items.ItemCount()
}

// Close closes every live session.
func (s *SessionStore[T]) Close() {
	for id := range s.items.Items() {
		s.items.Delete(id)
	}
}
