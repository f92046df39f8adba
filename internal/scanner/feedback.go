package scanner

import (
	"io"
	"sync"
	"time"
)

// feedbackHold is how long the detected flag stays raised after a pulse.
const feedbackHold = 500 * time.Millisecond

// Feedback drives the operator-visible detection cue: a short audible
// beep plus a detected flag that auto-clears. Overlapping pulses share a
// single timer slot, so the flag drops feedbackHold after the LAST pulse.
type Feedback struct {
	mu       sync.Mutex
	out      io.Writer
	hold     time.Duration
	detected bool
	timer    *time.Timer
	gen      uint64
}

func NewFeedback(out io.Writer) *Feedback {
	return &Feedback{out: out, hold: feedbackHold}
}

// Pulse raises the detected flag, emits the audio cue, and (re)arms the
// clear timer. A pulse while a timer is pending replaces it.
func (f *Feedback) Pulse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detected = true
	if f.out != nil {
		f.out.Write([]byte{0x07})
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	gen := f.gen
	f.timer = time.AfterFunc(f.hold, func() { f.clearAfterHold(gen) })
}

// clearAfterHold drops the flag only when gen still names the latest
// pulse. A timer that fired in the instant before being replaced must not
// clear the newer pulse's hold.
func (f *Feedback) clearAfterHold(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return
	}
	f.detected = false
	f.timer = nil
}

func (f *Feedback) Detected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detected
}

// Reset clears the flag and cancels any pending timer.
func (f *Feedback) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detected = false
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// Close stops the pending timer, if any.
func (f *Feedback) Close() {
	f.Reset()
}
