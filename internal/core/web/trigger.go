package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/seckatie/sitesd/internal/client"
	"github.com/seckatie/sitesd/internal/metrics"
)

// Trigger outcomes recorded in metrics.
const (
	triggerOK        = "ok"
	triggerError     = "error"
	triggerCoalesced = "coalesced"
)

// SitesUpdater starts the backend content refresh.
type SitesUpdater interface {
	UpdateSites(ctx context.Context) (*client.SitesPage, error)
}

// TriggerConfig configures a RefreshTrigger.
type TriggerConfig struct {
	// Interval is the minimum spacing between UpdateSites calls.
	Interval time.Duration
	// Timeout bounds a single UpdateSites call.
	Timeout time.Duration
}

// RefreshTrigger turns "a page of sites was shown" signals into background
// UpdateSites calls. Signals never block the caller. At most one call runs
// and one more waits; signals arriving while one is already waiting are
// folded into it.
type RefreshTrigger struct {
	updater SitesUpdater
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics

	signals chan struct{}
	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewRefreshTrigger creates a trigger. Call Start to begin issuing calls.
func NewRefreshTrigger(updater SitesUpdater, cfg TriggerConfig, log *slog.Logger, m *metrics.Metrics) *RefreshTrigger {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RefreshTrigger{
		updater: updater,
		limiter: rate.NewLimiter(limit, 1),
		timeout: cfg.Timeout,
		log:     log,
		metrics: m,
		signals: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start runs the call loop until ctx is cancelled or Close is called.
// Starting twice, or after Close, does nothing.
func (t *RefreshTrigger) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true

	go func() {
		defer close(t.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-t.signals:
				if !ok {
					return
				}
				if err := t.limiter.Wait(ctx); err != nil {
					return
				}
				t.call(ctx)
			}
		}
	}()
}

func (t *RefreshTrigger) call(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.updater.UpdateSites(ctx); err != nil {
		t.log.Debug("background site update failed", "error", err)
		t.record(triggerError)
		return
	}
	t.record(triggerOK)
}

// ListFetched signals that a page of sites was fetched and shown.
func (t *RefreshTrigger) ListFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.signals <- struct{}{}:
	default:
		t.record(triggerCoalesced)
	}
}

// Close stops accepting signals and waits for a pending call to finish.
func (t *RefreshTrigger) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.signals)
	started := t.started
	t.mu.Unlock()
	if started {
		<-t.done
	}
}

func (t *RefreshTrigger) record(result string) {
	if t.metrics != nil {
		t.metrics.BackgroundTriggers.WithLabelValues(result).Inc()
	}
}
