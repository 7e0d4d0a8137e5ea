// Package debounce turns a rapid stream of city-name edits into at most one
// weather fetch per quiescence window.
package debounce

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultWindow is the quiescence interval before a fetch is triggered.
	DefaultWindow = 800 * time.Millisecond
	// DefaultMinLength is the shortest trimmed city value worth fetching.
	DefaultMinLength = 2
)

// Token identifies one scheduled fetch. It is handed to the deliver callback
// when the window elapses and redeemed with Watcher.Elapsed.
type Token uint64

// Options configures a Watcher.
type Options struct {
	Window    time.Duration
	MinLength int
	Clock     clock.Clock

	// Clear is invoked synchronously by Change when the value is too short.
	Clear func()
	// Deliver is invoked on the timer's goroutine when a window elapses,
	// typically to post the token to the owner's event loop.
	Deliver func(Token)
}

// Watcher holds at most one pending timer. Change, Elapsed and Stop are meant
// to be called from a single owner goroutine; Deliver runs on the timer's own
// goroutine.
type Watcher struct {
	window    time.Duration
	minLength int
	clock     clock.Clock
	clear     func()
	deliver   func(Token)

	mu      sync.Mutex
	timer   *clock.Timer
	current Token
	value   string
	pending bool
	stopped bool
}

// New creates a Watcher. Zero options fall back to the defaults and the wall
// clock.
func New(opts Options) *Watcher {
	w := &Watcher{
		window:    opts.Window,
		minLength: opts.MinLength,
		clock:     opts.Clock,
		clear:     opts.Clear,
		deliver:   opts.Deliver,
	}
	if w.window <= 0 {
		w.window = DefaultWindow
	}
	if w.minLength <= 0 {
		w.minLength = DefaultMinLength
	}
	if w.clock == nil {
		w.clock = clock.New()
	}
	if w.clear == nil {
		w.clear = func() {}
	}
	if w.deliver == nil {
		w.deliver = func(Token) {}
	}
	return w
}

// Change records a new city value. Any previously scheduled fetch is
// cancelled. A value shorter than the minimum length (after trimming) clears
// immediately and schedules nothing; otherwise a fetch of the trimmed value is
// scheduled after the window. It reports whether a fetch was scheduled.
func (w *Watcher) Change(value string) bool {
	value = strings.TrimSpace(value)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.cancelLocked()

	if utf8.RuneCountInString(value) < w.minLength {
		w.mu.Unlock()
		w.clear()
		return false
	}

	w.current++
	tok := w.current
	w.value = value
	w.pending = true
	w.timer = w.clock.AfterFunc(w.window, func() { w.deliver(tok) })
	w.mu.Unlock()
	return true
}

// Elapsed redeems a delivered token. It returns the scheduled value only if
// tok is still the latest schedule and has not been cancelled or redeemed.
func (w *Watcher) Elapsed(tok Token) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || !w.pending || tok != w.current {
		return "", false
	}
	w.pending = false
	w.timer = nil
	return w.value, true
}

// Pending reports whether a fetch is scheduled and not yet redeemed.
func (w *Watcher) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Stop cancels any scheduled fetch; later calls to Change are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
	w.stopped = true
}

// cancelLocked stops the timer and invalidates its token. A timer that
// already fired and is racing to deliver is caught by Elapsed.
func (w *Watcher) cancelLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = false
	w.value = ""
}
