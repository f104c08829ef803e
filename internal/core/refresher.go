package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seckatie/sitesd/internal/core/db"
)

// ResultHook observes the outcome of every background refresh.
type ResultHook func(site db.Site, err error)

// Refresher runs content refreshes on a fixed pool of workers fed by a
// bounded queue. A site that is already queued or in flight is not queued
// again, so repeated bulk triggers collapse into one fetch per site.
type Refresher struct {
	store   SiteStore
	opts    RefreshOptions
	log     *slog.Logger
	onDone  ResultHook
	queue   chan db.Site
	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool
	wg      sync.WaitGroup
	once    sync.Once
	// now is swapped in tests.
	now func() time.Time
}

// NewRefresher creates a refresher with a queue of queueSize slots.
func NewRefresher(store SiteStore, opts RefreshOptions, queueSize int, log *slog.Logger) *Refresher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Refresher{
		store:   store,
		opts:    opts,
		log:     log,
		queue:   make(chan db.Site, queueSize),
		pending: make(map[string]struct{}),
		now:     time.Now,
	}
}

// OnResult registers a hook called after each refresh attempt. It must be
// set before Start.
func (r *Refresher) OnResult(hook ResultHook) {
	r.onDone = hook
}

// Start launches n workers. They stop when ctx is cancelled or Close is called.
func (r *Refresher) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		workerID := i
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.log.Debug("refresh worker started", "worker", workerID)
			for {
				select {
				case <-ctx.Done():
					return
				case s, ok := <-r.queue:
					if !ok {
						return
					}
					r.process(ctx, workerID, s)
				}
			}
		}()
	}
}

func (r *Refresher) process(ctx context.Context, workerID int, s db.Site) {
	defer r.release(s.ID)

	r.log.Debug("refreshing site", "worker", workerID, "site", s.ID, "url", s.URL)
	err := RefreshAndPersist(ctx, r.store, s, r.opts)
	if err != nil {
		r.log.Warn("refresh failed", "worker", workerID, "site", s.ID, "url", s.URL, "error", err)
	} else {
		r.log.Info("site refreshed", "site", s.ID, "url", s.URL)
	}
	if r.onDone != nil {
		r.onDone(s, err)
	}
}

func (r *Refresher) release(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Enqueue queues a site without blocking. It returns false when the site is
// already pending or the queue is full.
func (r *Refresher) Enqueue(s db.Site) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, dup := r.pending[s.ID]; dup {
		return false
	}
	select {
	case r.queue <- s:
		r.pending[s.ID] = struct{}{}
		return true
	default:
		r.log.Warn("refresh queue full, site will be picked up by a later trigger", "site", s.ID)
		return false
	}
}

// EnqueueStale queues every site whose content is older than StaleAfter and
// returns how many were queued.
func (r *Refresher) EnqueueStale(ctx context.Context) (int, error) {
	sites, err := r.store.ListAllSites(ctx)
	if err != nil {
		return 0, err
	}
	now := r.now()
	queued := 0
	for _, s := range sites {
		if !IsOlderThanOneDay(s.Updated, now) {
			continue
		}
		if r.Enqueue(s) {
			queued++
		}
	}
	return queued, nil
}

// Pending reports how many sites are queued or in flight.
func (r *Refresher) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops accepting work and waits for workers to drain the queue.
func (r *Refresher) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	r.wg.Wait()
}
