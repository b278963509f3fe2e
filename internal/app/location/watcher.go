// Package location turns a device's location subscription into accepted positions.
package location

import (
	"context"
	"log/slog"
	"time"

	"github.com/PabloGalante/rumbo-agent/internal/app/geofilter"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// Target receives fixes; geofilter.Tracker implements it.
type Target interface {
	Offer(fix domain.PositionFix) geofilter.Decision
	Last() (domain.PositionFix, bool)
}

// Options configures the high-accuracy subscription and the degraded fallback.
type Options struct {
	MaxStaleness    time.Duration
	Timeout         time.Duration
	FallbackTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxStaleness:    0,
		Timeout:         30 * time.Second,
		FallbackTimeout: 30 * time.Second,
	}
}

// Watcher feeds a Target from a LocationSource until its context ends.
// Location errors never escape it.
type Watcher struct {
	source domain.LocationSource
	target Target
	opts   Options
	log    *slog.Logger

	fallbackTried bool
}

func NewWatcher(source domain.LocationSource, target Target, opts Options, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		source: source,
		target: target,
		opts:   opts,
		log:    log,
	}
}

// Run blocks until ctx is cancelled or the source closes the subscription.
// The subscription is always released before Run returns.
func (w *Watcher) Run(ctx context.Context) {
	events, unsubscribe := w.subscribe(ctx)
	w.loop(ctx, events, unsubscribe)
}

// Start subscribes before returning, so no fix published afterwards is missed,
// and watches in the background. The returned channel closes when watching ends.
func (w *Watcher) Start(ctx context.Context) <-chan struct{} {
	events, unsubscribe := w.subscribe(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.loop(ctx, events, unsubscribe)
	}()
	return done
}

func (w *Watcher) subscribe(ctx context.Context) (<-chan domain.LocationEvent, func()) {
	return w.source.Watch(ctx, domain.WatchOptions{
		HighAccuracy: true,
		MaxStaleness: w.opts.MaxStaleness,
		Timeout:      w.opts.Timeout,
	})
}

func (w *Watcher) loop(ctx context.Context, events <-chan domain.LocationEvent, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				w.handleError(ctx, ev.Err)
				continue
			}
			w.offer(ev.Fix, "watch")
		}
	}
}

func (w *Watcher) offer(fix domain.PositionFix, via string) {
	decision := w.target.Offer(fix)
	w.log.Debug("location fix considered",
		"via", via,
		"decision", decision.String(),
		"accuracy_m", fix.Accuracy,
	)
}

// handleError performs at most one low-accuracy request, and only when a
// timeout hits before any position was ever accepted.
func (w *Watcher) handleError(ctx context.Context, lerr *domain.LocationError) {
	log := w.log.With("code", lerr.Code)

	if lerr.Code != domain.LocationTimeout {
		log.Warn("location unavailable, continuing without it", "error", lerr.Message)
		return
	}
	if _, ok := w.target.Last(); ok || w.fallbackTried {
		log.Info("location timeout ignored")
		return
	}
	w.fallbackTried = true

	log.Info("high accuracy location timed out, trying low accuracy fallback")
	fix, err := w.source.Current(ctx, domain.WatchOptions{
		HighAccuracy: false,
		MaxStaleness: w.opts.MaxStaleness,
		Timeout:      w.opts.FallbackTimeout,
	})
	if err != nil {
		log.Warn("location fallback failed, continuing without location", "error", err)
		return
	}
	w.offer(fix, "fallback")
}
