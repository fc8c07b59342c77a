package wordjam

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// throttle rate-limits pushes to the remote session. Trigger arms a
// single timer per window; triggers while armed are dropped, not queued.
// When the window reopens the flush message lands in the update loop,
// which snapshots whatever state is current then — so of several calls in
// one window exactly one dispatch happens, with the latest state.
type throttle struct {
	interval time.Duration
	ch       chan<- tea.Msg
	flush    tea.Msg
	armed    bool
}

func newThrottle(interval time.Duration, ch chan<- tea.Msg, flush tea.Msg) *throttle {
	return &throttle{interval: interval, ch: ch, flush: flush}
}

// Trigger requests a push. A no-op while a flush is already pending.
func (t *throttle) Trigger() {
	if t.armed {
		return
	}
	t.armed = true
	time.AfterFunc(t.interval, func() {
		t.ch <- t.flush
	})
}

// Flushed reopens the window. The update loop calls it when handling the
// flush message, before dispatching the push.
func (t *throttle) Flushed() {
	t.armed = false
}

// Armed reports whether a flush is pending.
func (t *throttle) Armed() bool {
	return t.armed
}
