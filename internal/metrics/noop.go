package metrics

import (
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

// NoOpPublisher is a no-operation publisher for testing or when metrics are disabled.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string)           {}
func (p *NoOpPublisher) Incr(name string, tags ...string)                           {}
func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string)        {}
func (p *NoOpPublisher) PublishAlert(alert *types.Alert)                            {}
func (p *NoOpPublisher) PublishSummary(summary *types.MonitorSummary)               {}
func (p *NoOpPublisher) Close() error                                               { return nil }

var _ types.Publisher = (*NoOpPublisher)(nil)
