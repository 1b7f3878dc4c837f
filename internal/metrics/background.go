package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

// BackgroundPublisher publishes monitor summaries at regular intervals
// with context-based cancellation support.
type BackgroundPublisher struct {
	publisher  types.Publisher
	logger     *slog.Logger
	getSummary func() *types.MonitorSummary
	cancel     context.CancelFunc
	mu         sync.Mutex
	wg         sync.WaitGroup
	interval   time.Duration
}

// NewBackgroundPublisher creates a new background publisher.
// The summaryFn is called on each interval to build the summary to publish.
func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	summaryFn func() *types.MonitorSummary,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &BackgroundPublisher{
		publisher:  publisher,
		interval:   interval,
		logger:     logger.With("component", "metrics-background"),
		getSummary: summaryFn,
	}
}

// Start begins the background publishing loop. Calling Start on a running
// publisher does nothing. A stopped publisher may be started again.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil || b.interval <= 0 {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(runCtx)
	b.logger.Debug("Background summary publisher started", "interval", b.interval)
}

// Stop cancels the background loop and waits for it to exit.
func (b *BackgroundPublisher) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	b.wg.Wait()
	b.logger.Debug("Background summary publisher stopped")
}

// Running reports whether the loop is active.
func (b *BackgroundPublisher) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

func (b *BackgroundPublisher) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publish()
		}
	}
}

func (b *BackgroundPublisher) publish() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in summary publisher", "panic", r)
		}
	}()

	if b.getSummary == nil {
		return
	}

	if summary := b.getSummary(); summary != nil {
		b.publisher.PublishSummary(summary)
	}
}

// PublishNow triggers an immediate summary publish.
func (b *BackgroundPublisher) PublishNow() {
	b.publish()
}
