package metrics

import (
	"errors"
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

// MultiPublisher fans every call out to a fixed list of publishers in order.
type MultiPublisher struct {
	publishers []types.Publisher
}

// NewMultiPublisher combines publishers. Nil entries are skipped. With no
// publishers left it returns a NoOpPublisher; with exactly one it returns it unwrapped.
func NewMultiPublisher(publishers ...types.Publisher) types.Publisher {
	kept := make([]types.Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}

	switch len(kept) {
	case 0:
		return NewNoOpPublisher()
	case 1:
		return kept[0]
	}
	return &MultiPublisher{publishers: kept}
}

func (m *MultiPublisher) Gauge(name string, value float64, tags ...string) {
	for _, p := range m.publishers {
		p.Gauge(name, value, tags...)
	}
}

func (m *MultiPublisher) Incr(name string, tags ...string) {
	for _, p := range m.publishers {
		p.Incr(name, tags...)
	}
}

func (m *MultiPublisher) Timing(name string, duration time.Duration, tags ...string) {
	for _, p := range m.publishers {
		p.Timing(name, duration, tags...)
	}
}

func (m *MultiPublisher) Event(title, text, alertType string, tags ...string) {
	for _, p := range m.publishers {
		p.Event(title, text, alertType, tags...)
	}
}

func (m *MultiPublisher) PublishAlert(alert *types.Alert) {
	for _, p := range m.publishers {
		p.PublishAlert(alert)
	}
}

func (m *MultiPublisher) PublishSummary(summary *types.MonitorSummary) {
	for _, p := range m.publishers {
		p.PublishSummary(summary)
	}
}

// Close closes every publisher and joins their errors.
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ types.Publisher = (*MultiPublisher)(nil)
