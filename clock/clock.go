package clock

import (
	"math"
	"sync"

	"golang.org/x/sys/unix"
)

// Millis is a point in time or an interval, in milliseconds.
// Instants wrap around, so they must only be compared through Elapsed.
type Millis uint32

// MaxElapsed is returned by Elapsed when since lies in the future.
const MaxElapsed Millis = math.MaxInt32

// Elapsed returns the time passed from since to now.
// The difference is taken modulo 2^32, which keeps it correct across a wrap of the counter.
// A negative difference saturates to MaxElapsed, so a stale timestamp always reads as long ago.
func Elapsed(now, since Millis) Millis {
	d := int32(now - since)
	if d < 0 {
		return MaxElapsed
	}
	return Millis(d)
}

// Clock is a monotonic millisecond counter.
type Clock interface {
	Now() Millis
}

// System reads CLOCK_MONOTONIC.
type System struct{}

func (System) Now() Millis {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return Millis(uint64(ts.Sec)*1000 + uint64(ts.Nsec)/1e6)
}

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now Millis
}

func NewManual(start Millis) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() Millis {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(now Millis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manual) Advance(d Millis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}
