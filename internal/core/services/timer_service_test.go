package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerService_ScheduleFires(t *testing.T) {
	ts := NewTimerService()

	fired := make(chan struct{})
	ts.Schedule("call-1", TimerRinging, 10*time.Millisecond, func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	// A fired timer is no longer pending.
	assert.Eventually(t, func() bool {
		return !ts.Pending("call-1", TimerRinging)
	}, time.Second, 5*time.Millisecond)
}

func TestTimerService_CancelPreventsFire(t *testing.T) {
	ts := NewTimerService()

	var fired atomic.Bool
	ts.Schedule("call-1", TimerRinging, 20*time.Millisecond, func() {
		fired.Store(true)
	})
	ts.Cancel("call-1", TimerRinging)

	assert.False(t, ts.Pending("call-1", TimerRinging))
	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestTimerService_CancelIsIdempotent(t *testing.T) {
	ts := NewTimerService()

	ts.Cancel("call-1", TimerRinging)
	ts.Schedule("call-1", TimerRinging, time.Hour, func() {})
	ts.Cancel("call-1", TimerRinging)
	ts.Cancel("call-1", TimerRinging)
}

func TestTimerService_RescheduleReplaces(t *testing.T) {
	ts := NewTimerService()

	var first, second atomic.Bool
	ts.Schedule("call-1", TimerRinging, 30*time.Millisecond, func() {
		first.Store(true)
	})
	ts.Schedule("call-1", TimerRinging, 10*time.Millisecond, func() {
		second.Store(true)
	})

	time.Sleep(100 * time.Millisecond)
	assert.False(t, first.Load(), "replaced timer must not run")
	assert.True(t, second.Load())
}

func TestTimerService_KindsAreIndependent(t *testing.T) {
	ts := NewTimerService()

	ts.Schedule("call-1", TimerRinging, time.Hour, func() {})
	ts.Schedule("call-1", TimerEviction, time.Hour, func() {})

	ts.Cancel("call-1", TimerRinging)

	assert.False(t, ts.Pending("call-1", TimerRinging))
	assert.True(t, ts.Pending("call-1", TimerEviction))
}

func TestTimerService_CancelAllStopsEveryKind(t *testing.T) {
	ts := NewTimerService()

	ts.Schedule("call-1", TimerRinging, time.Hour, func() {})
	ts.Schedule("call-1", TimerEviction, time.Hour, func() {})
	ts.Schedule("call-2", TimerRinging, time.Hour, func() {})

	ts.CancelAll("call-1")

	assert.False(t, ts.Pending("call-1", TimerRinging))
	assert.False(t, ts.Pending("call-1", TimerEviction))
	assert.True(t, ts.Pending("call-2", TimerRinging), "other calls untouched")
}

func TestTimerService_ShutdownStopsEverything(t *testing.T) {
	ts := NewTimerService()

	var fired atomic.Bool
	ts.Schedule("call-1", TimerRinging, 20*time.Millisecond, func() {
		fired.Store(true)
	})
	ts.Schedule("call-2", TimerEviction, 20*time.Millisecond, func() {
		fired.Store(true)
	})

	ts.Shutdown()

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, ts.Pending("call-1", TimerRinging))
	assert.False(t, ts.Pending("call-2", TimerEviction))
}
