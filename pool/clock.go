package pool

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the engine's only source of time: a read-only, injected,
// monotonic millisecond counter. Production code wraps the system clock;
// tests wrap a benbjohnson/clock.Mock so traces can be driven deterministically
// (stake at T0, harvest at T0+60000, etc. -- see spec boundary scenarios).
type Clock interface {
	NowMs() int64
}

// SystemClock is the production Clock, backed by the real wall clock.
type SystemClock struct {
	underlying clock.Clock
}

// NewSystemClock returns a Clock backed by the real wall clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{underlying: clock.New()}
}

// NowMs returns the current time as milliseconds since the Unix epoch.
func (s *SystemClock) NowMs() int64 {
	return s.underlying.Now().UnixMilli()
}

// MockClock is a deterministic, test-only Clock. Zero value is not usable;
// construct with NewMockClock.
type MockClock struct {
	mock *clock.Mock
}

// NewMockClock returns a MockClock initialized to the given millisecond
// timestamp.
func NewMockClock(startMs int64) *MockClock {
	m := clock.NewMock()
	m.Set(time.UnixMilli(startMs))
	return &MockClock{mock: m}
}

// NowMs returns the mock's current millisecond timestamp.
func (m *MockClock) NowMs() int64 {
	return m.mock.Now().UnixMilli()
}

// Set jumps the mock clock to the given millisecond timestamp. Must be
// monotonically non-decreasing to stay faithful to a real clock.
func (m *MockClock) Set(ms int64) {
	m.mock.Set(time.UnixMilli(ms))
}

// Advance moves the mock clock forward by the given number of milliseconds.
func (m *MockClock) Advance(deltaMs int64) {
	m.mock.Add(time.Duration(deltaMs) * time.Millisecond)
}
