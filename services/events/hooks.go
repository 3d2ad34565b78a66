package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/case-events/internal/observability"
	"github.com/upb/case-events/models"
	"go.uber.org/zap"
)

// Hook is notified of every captured event
type Hook func(ctx context.Context, entry *models.EventEntry) error

// hookDispatcher runs a Hook on a fixed pool of workers fed by a bounded
// queue. Failures and panics are logged and counted.
type hookDispatcher struct {
	hook    Hook
	queue   chan *models.EventEntry
	workers int
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

func newHookDispatcher(hook Hook, workers, queueSize int, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *hookDispatcher {
	return &hookDispatcher{
		hook:    hook,
		queue:   make(chan *models.EventEntry, queueSize),
		workers: workers,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Start launches the workers
func (d *hookDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.started = true
}

// Dispatch queues entry without blocking. It reports false when the
// queue is full or the dispatcher is stopped.
func (d *hookDispatcher) Dispatch(entry *models.EventEntry) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.stopped {
		return false
	}

	select {
	case d.queue <- entry:
		return true
	default:
		d.logger.Warn("notification queue full, dropping hook call",
			zap.String("event_id", entry.ID.String()),
			zap.String("event_type", entry.EventType),
		)
		d.metrics.HookFailed()
		return false
	}
}

// Stop closes the queue and waits for pending calls
func (d *hookDispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("notification hook stop timeout after %v", timeout)
	}
}

func (d *hookDispatcher) worker(id int) {
	defer d.wg.Done()
	for entry := range d.queue {
		if err := d.invoke(entry); err != nil {
			d.metrics.HookFailed()
			d.logger.Error("notification hook failed",
				zap.Int("worker_id", id),
				zap.String("event_id", entry.ID.String()),
				zap.String("event_type", entry.EventType),
				zap.Error(err),
			)
		}
	}
}

func (d *hookDispatcher) invoke(entry *models.EventEntry) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()

	return d.hook(ctx, entry)
}
