package metrics

import (
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

// Timer measures an operation and reports it to a publisher when stopped.
type Timer struct {
	publisher types.Publisher
	now       func() time.Time
	start     time.Time
	name      string
	tags      []string
}

// NewTimer starts a timer that will record to the publisher when stopped.
func NewTimer(publisher types.Publisher, name string, tags ...string) *Timer {
	return NewTimerWithClock(publisher, time.Now, name, tags...)
}

// NewTimerWithClock is NewTimer with an injectable clock.
func NewTimerWithClock(publisher types.Publisher, now func() time.Time, name string, tags ...string) *Timer {
	return &Timer{
		publisher: publisher,
		now:       now,
		start:     now(),
		name:      name,
		tags:      tags,
	}
}

// Stop records the elapsed time as a timing metric and returns the duration.
// Extra tags are appended to the ones given at construction.
func (t *Timer) Stop(extraTags ...string) time.Duration {
	duration := t.Elapsed()
	t.publisher.Timing(t.name, duration, mergeTags(t.tags, extraTags)...)
	return duration
}

// Elapsed returns the time since the timer was started without recording.
func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}
