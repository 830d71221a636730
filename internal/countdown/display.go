package countdown

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the refresh rate of a mounted display.
const DefaultInterval = time.Second

type Option func(*Display)

func WithInterval(interval time.Duration) Option {
	return func(d *Display) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Display) { d.now = now }
}

// OnExpired sets the callback fired once per mount when the deadline is reached.
func OnExpired(fn func()) Option {
	return func(d *Display) { d.onExpired = fn }
}

// Display recomputes a countdown on a fixed interval while mounted.
//
// Start mounts it and Stop unmounts it. Each mount owns one goroutine and one
// ticker, both gone after Stop returns. Once the deadline is reached the
// expiry callback fires and the display stops ticking by itself. Callbacks
// run on the display's goroutine (or the caller's, for the first tick) and
// must not call Start or Stop.
type Display struct {
	deadline  time.Time
	interval  time.Duration
	now       func() time.Time
	onTick    func(Remaining)
	onExpired func()

	lifecycle sync.Mutex
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewDisplay(deadline time.Time, onTick func(Remaining), opts ...Option) *Display {
	d := &Display{
		deadline: deadline,
		interval: DefaultInterval,
		now:      time.Now,
		onTick:   onTick,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Display) Deadline() time.Time {
	return d.deadline
}

// Start mounts the display. The first tick is delivered before Start
// returns; an already expired deadline fires the expiry callback right away.
// Starting a running display does nothing.
func (d *Display) Start(ctx context.Context) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.Running() {
		return
	}
	if r := d.emit(); r.Expired {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	go d.run(runCtx, cancel, done)
}

// Stop unmounts the display and waits for its goroutine to exit.
func (d *Display) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the display is mounted and still ticking.
func (d *Display) Running() bool {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (d *Display) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r := d.emit(); r.Expired {
				return
			}
		}
	}
}

func (d *Display) emit() Remaining {
	r := Compute(d.deadline, d.now())
	if d.onTick != nil {
		d.onTick(r)
	}
	if r.Expired && d.onExpired != nil {
		d.onExpired()
	}
	return r
}
