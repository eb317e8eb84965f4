// Package clock abstracts wall time so sweeps and expiry checks can be driven
// deterministically in tests.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Real returns the system clock. Times are UTC and truncated to milliseconds so they
// survive every persistence format unchanged.
func Real() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return Normalize(time.Now()) }

// Normalize converts t to UTC with millisecond precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Fake is a manually advanced clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: Normalize(start)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = Normalize(f.now.Add(d))
	f.mu.Unlock()
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = Normalize(t)
	f.mu.Unlock()
}
