// Package location provides location sources backed by fixes reported by the client device.
package location

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

const subscriberBuffer = 16

type subscriber struct {
	ch     chan domain.LocationEvent
	gotFix bool
	timer  *time.Timer
}

// PushSource is a domain.LocationSource fed through Publish. Devices report
// fixes (or geolocation errors) over the API and the source fans them out.
//
// A subscription with a Timeout receives a timeout error when no fix arrived
// within that window, mirroring how device geolocation APIs behave.
type PushSource struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]*subscriber
	waiters []chan domain.PositionFix
}

func NewPushSource() *PushSource {
	return &PushSource{subs: make(map[int]*subscriber)}
}

// Publish delivers ev to every subscriber. Slow subscribers drop events
// rather than block the reporter.
func (p *PushSource) Publish(ev domain.LocationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.subs {
		if ev.Err == nil {
			s.gotFix = true
		}
		select {
		case s.ch <- ev:
		default:
		}
	}

	if ev.Err != nil {
		return
	}
	for _, w := range p.waiters {
		w <- ev.Fix
	}
	p.waiters = nil
}

func (p *PushSource) Watch(ctx context.Context, opts domain.WatchOptions) (<-chan domain.LocationEvent, func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	s := &subscriber{ch: make(chan domain.LocationEvent, subscriberBuffer)}
	p.subs[id] = s
	if opts.Timeout > 0 {
		s.timer = time.AfterFunc(opts.Timeout, func() { p.expire(id) })
	}
	p.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()

			if s.timer != nil {
				s.timer.Stop()
			}
			delete(p.subs, id)
			close(s.ch)
		})
	}
	return s.ch, unsubscribe
}

func (p *PushSource) expire(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.subs[id]
	if !ok || s.gotFix {
		return
	}
	select {
	case s.ch <- domain.LocationEvent{Err: &domain.LocationError{
		Code:    domain.LocationTimeout,
		Message: "no position reported in time",
	}}:
	default:
	}
}

// Current waits for the next published fix.
func (p *PushSource) Current(ctx context.Context, opts domain.WatchOptions) (domain.PositionFix, error) {
	w := make(chan domain.PositionFix, 1)
	p.mu.Lock()
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		t := time.NewTimer(opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case fix := <-w:
		return fix, nil
	case <-ctx.Done():
		p.dropWaiter(w)
		return domain.PositionFix{}, ctx.Err()
	case <-timeout:
		p.dropWaiter(w)
		return domain.PositionFix{}, &domain.LocationError{
			Code:    domain.LocationTimeout,
			Message: "no position reported in time",
		}
	}
}

func (p *PushSource) dropWaiter(w chan domain.PositionFix) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, cand := range p.waiters {
		if cand == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}
