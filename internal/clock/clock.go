// Package clock provides the time sources used by the connectivity
// manager: a monotonic millisecond counter and an NTP client.
package clock

import (
	"sync"
	"time"
)

// Monotonic is a free running millisecond counter. Millis wraps around
// like a hardware tick counter; compare marks by subtraction, never by
// ordering.
type Monotonic interface {
	Millis() uint32
	Sleep(d time.Duration)
}

// NewSystem returns a Monotonic backed by the runtime's monotonic clock,
// starting at zero.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// System is the Monotonic used outside of tests.
type System struct {
	start time.Time
}

// Millis returns the milliseconds elapsed since the clock was created.
func (s *System) Millis() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// Sleep pauses the calling goroutine.
func (s *System) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Elapsed returns the milliseconds between mark and now, correct across
// a single wrap of the counter.
func Elapsed(now, mark uint32) uint32 {
	return now - mark
}

// Manual is a Monotonic that only moves when told to. Sleep advances it
// instead of blocking.
type Manual struct {
	mu  sync.Mutex
	now uint32
}

// Millis returns the current reading.
func (m *Manual) Millis() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep advances the clock by d.
func (m *Manual) Sleep(d time.Duration) {
	m.Advance(d)
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += uint32(d.Milliseconds())
	m.mu.Unlock()
}

// Set moves the clock to ms.
func (m *Manual) Set(ms uint32) {
	m.mu.Lock()
	m.now = ms
	m.mu.Unlock()
}
