// internal/status/tracker.go
package status

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/poller"
	mbtransport "github.com/tamzrod/weather-station/internal/transport/modbus"
)

// Tracker folds poll results into a Snapshot, one poll cycle at a time.
// Feed it poll items through Observe (or OnData / OnFailure) and drive Tick
// at 1 Hz, or call Run.
type Tracker struct {
	clock      clock.Clock
	staleAfter time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	snap     Snapshot
	lastData time.Time

	// cycle being folded, and whether any of its requests failed
	cycle       uint64
	cycleFailed bool
}

// NewTracker creates a tracker in HealthUnknown.
// staleAfter <= 0 disables stale detection.
func NewTracker(staleAfter time.Duration, clk clock.Clock, logger *zap.Logger) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		clock:      clk,
		staleAfter: staleAfter,
		logger:     logger.Named("status"),
		snap:       Snapshot{Health: HealthUnknown},
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// OnData records a successful read that stands alone (a one-request cycle).
func (t *Tracker) OnData(d poller.Data) {
	t.Observe(poller.Item{Data: d})
}

// OnFailure records a failed read that stands alone (a one-request cycle).
// seconds_in_error increments in Tick only.
func (t *Tracker) OnFailure(f poller.Failure) {
	t.Observe(poller.Item{Failure: &f})
}

// Observe folds one poll item into the status.
// Any failure in a cycle reports HealthError at once. Recovery (OK and reset
// of the error counters) happens only when a cycle ends with every request
// successful.
func (t *Tracker) Observe(item poller.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if item.Cycle == 0 || item.Cycle != t.cycle {
		t.cycle = item.Cycle
		t.cycleFailed = false
	}

	if item.IsFailure() {
		t.cycleFailed = true
		if t.snap.Health == HealthDisabled {
			return
		}
		t.setHealth(HealthError)
		t.snap.LastErrorCode = ErrorCode(item.Failure.Err)
		return
	}

	t.lastData = t.clock.Now()
	if t.snap.Health == HealthDisabled || !item.EndsCycle() || t.cycleFailed {
		return
	}

	t.setHealth(HealthOK)
	// reset error state when healthy
	t.snap.LastErrorCode = 0
	t.snap.SecondsInError = 0
}

// Disable marks the station as not polling. Results are ignored until Enable.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.setHealth(HealthDisabled)
	t.snap.LastErrorCode = 0
	t.snap.SecondsInError = 0
}

// Enable leaves the disabled state; health is unknown until the next result.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health != HealthDisabled {
		return
	}
	t.setHealth(HealthUnknown)
	t.lastData = t.clock.Now()
}

// Tick advances time by one second.
// While not OK, SecondsInError counts up (saturating); OK turns Stale when
// no data arrived for staleAfter.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.snap.Health {
	case HealthDisabled, HealthUnknown:
		return
	case HealthOK:
		if t.staleAfter > 0 && t.clock.Since(t.lastData) >= t.staleAfter {
			t.setHealth(HealthStale)
		}
		return
	}

	if t.snap.SecondsInError < math.MaxUint16 {
		t.snap.SecondsInError++
	}
}

// Run calls Tick every second until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := t.clock.Ticker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// setHealth must be called with mu held.
func (t *Tracker) setHealth(h uint16) {
	if t.snap.Health == h {
		return
	}
	t.logger.Info("health changed",
		zap.String("from", HealthName(t.snap.Health)),
		zap.String("to", HealthName(h)),
	)
	t.snap.Health = h
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// Modbus exception responses yield their exception code.
// If the error does not expose a code, returns ErrorCodeGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	if code, ok := mbtransport.ExceptionCode(err); ok {
		return uint16(code)
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}

	return ErrorCodeGeneric
}
