// Package dailyaction tracks one action per address per rolling 24h window
// and answers unique-participant counts over arbitrary time ranges.
package dailyaction

import (
	"errors"
	"sync"
	"time"
)

// Window is the minimum spacing between two actions from the same address.
const Window = int64(24 * 60 * 60)

var (
	ErrTimeError = errors.New("dailyaction: time constraint violated")

	errNilState = errors.New("dailyaction tracker: state not configured")
)

// Mark records one performed action.
type Mark struct {
	Address   [20]byte `json:"address"`
	Timestamp int64    `json:"timestamp"`
}

type trackerState interface {
	DailyActionLast(addr [20]byte) (int64, bool)
	DailyActionAppend(mark Mark) error
	DailyActionMarks() ([]Mark, error)
}

// Tracker enforces the rolling-window uniqueness rule over a state backend.
type Tracker struct {
	// mu serializes whole operations so a concurrent Perform cannot slip
	// between the last-action read and the append.
	mu    sync.Mutex
	state trackerState
	nowFn func() int64
}

// NewTracker creates a tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState configures the state backend used by the tracker.
func (t *Tracker) SetState(state trackerState) { t.state = state }

// SetNowFunc overrides the time source, primarily for tests.
func (t *Tracker) SetNowFunc(now func() int64) {
	if now == nil {
		t.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	t.nowFn = now
}

func (t *Tracker) now() int64 {
	if t == nil || t.nowFn == nil {
		return time.Now().Unix()
	}
	return t.nowFn()
}

// Perform records an action for addr. A second action within the rolling 24h
// window fails with ErrTimeError.
func (t *Tracker) Perform(addr [20]byte) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.state.DailyActionLast(addr); ok && now-last < Window {
		return ErrTimeError
	}
	return t.state.DailyActionAppend(Mark{Address: addr, Timestamp: now})
}

// UniqueInPeriod counts the distinct addresses that acted within
// [start, end] inclusive.
func (t *Tracker) UniqueInPeriod(start, end int64) (uint64, error) {
	if t == nil || t.state == nil {
		return 0, errNilState
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if start > end {
		return 0, ErrTimeError
	}
	marks, err := t.state.DailyActionMarks()
	if err != nil {
		return 0, err
	}
	seen := make(map[[20]byte]struct{})
	for _, mark := range marks {
		if mark.Timestamp < start || mark.Timestamp > end {
			continue
		}
		seen[mark.Address] = struct{}{}
	}
	return uint64(len(seen)), nil
}
