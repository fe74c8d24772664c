package services

import (
	"sync"
	"time"

	"callnet/internal/core/domain"
)

// TimerKind distinguishes the scheduled tasks a call can carry.
type TimerKind string

const (
	TimerRinging        TimerKind = "ringing-timeout"
	TimerReconnectGrace TimerKind = "reconnect-grace"
	TimerEviction       TimerKind = "eviction"
)

type timerKey struct {
	call domain.CallID
	kind TimerKind
}

// TimerService schedules per-call tasks keyed by (callID, kind). Timers are
// explicit state: any transition that invalidates a timer cancels it by key,
// and a timer that fires after cancellation is a no-op.
type TimerService struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
}

func NewTimerService() *TimerService {
	return &TimerService{
		timers: make(map[timerKey]*time.Timer),
	}
}

// Schedule arms a timer for the call. An existing timer of the same kind is
// replaced.
func (t *TimerService) Schedule(callID domain.CallID, kind TimerKind, d time.Duration, fn func()) {
	key := timerKey{call: callID, kind: kind}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[key]; ok {
		existing.Stop()
	}

	var tm *time.Timer
	tm = time.AfterFunc(d, func() {
		t.mu.Lock()
		// A concurrent Cancel or Schedule may have removed or replaced this
		// timer; only the still-registered one runs its callback.
		cur, ok := t.timers[key]
		live := ok && cur == tm
		if live {
			delete(t.timers, key)
		}
		t.mu.Unlock()

		if live {
			fn()
		}
	})
	t.timers[key] = tm
}

// Cancel stops the timer of the given kind if armed. Idempotent.
func (t *TimerService) Cancel(callID domain.CallID, kind TimerKind) {
	key := timerKey{call: callID, kind: kind}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
}

// CancelAll stops every pending timer for the call.
func (t *TimerService) CancelAll(callID domain.CallID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		if key.call == callID {
			timer.Stop()
			delete(t.timers, key)
		}
	}
}

// Shutdown stops every pending timer. Used on process shutdown so no
// callback fires into torn-down services.
func (t *TimerService) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}

// Pending reports whether a timer of the given kind is armed.
func (t *TimerService) Pending(callID domain.CallID, kind TimerKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.timers[timerKey{call: callID, kind: kind}]
	return ok
}
