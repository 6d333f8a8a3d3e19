package monitor

import (
	"sync"
	"time"
)

// Timer runs a callback once after a delay. Arming it again replaces any
// pending callback.
type Timer interface {
	Arm(d time.Duration, fn func())
	Disarm()
}

// AfterFuncTimer is a Timer backed by time.AfterFunc.
type AfterFuncTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// NewAfterFuncTimer returns a disarmed timer.
func NewAfterFuncTimer() *AfterFuncTimer {
	return &AfterFuncTimer{}
}

func (t *AfterFuncTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fn)
}

func (t *AfterFuncTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
