// Package ramp implements the preemptable linear-ramp state machine
// (RampScheduler, §4.4) that drives a worker's remote setpoint from a start
// temperature to a target temperature at a bounded rate.
//
// Grounded on the teacher's internal/tasks/collector.go ticker-driven poll
// loop (time.Ticker over a cancellable context), generalised from a fixed
// periodic read into a linear trajectory with early termination on target
// arrival.
package ramp

import (
	"context"
	"math"
	"sync"
	"time"

	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

// SetpointSink receives the scheduler's remote-setpoint updates. Defined
// here (rather than imported from the worker package) so that ramp has no
// dependency on worker — worker depends on ramp, not the reverse.
type SetpointSink interface {
	SetRemoteSetpoint(value quantity.Quantity)
}

const tick = 1 * time.Second

// Scheduler drives one ramp to completion or cancellation. It is created on
// demand and discarded once finished; a new Scheduler is built for each
// startRamp call.
type Scheduler struct {
	tstart, tend float64 // kelvin
	rateAbs      float64 // kelvin per second, always >= 0
	sign         float64 // +1 or -1; 0 if tstart == tend
	sink         SetpointSink

	ch     chan quantity.Quantity
	cancel chan struct{}
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	state model.RampState
}

// New constructs a Scheduler that will drive from start to end at the given
// rate (must be a Rate-dimension quantity, kelvin/second internally). It does
// not start running until Start is called.
func New(start, end, rate quantity.Quantity, sink SetpointSink) *Scheduler {
	delta := end.Base() - start.Base()
	sign := 0.0
	switch {
	case delta > 0:
		sign = 1
	case delta < 0:
		sign = -1
	}
	return &Scheduler{
		tstart:  start.Base(),
		tend:    end.Base(),
		rateAbs: math.Abs(rate.Base()),
		sign:    sign,
		sink:    sink,
		ch:      make(chan quantity.Quantity),
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
		state:   model.RampNone,
	}
}

// Start launches the ramp's ticking goroutine. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.setState(model.RampRamping)
	go s.run(ctx)
}

// Observe returns the channel of emitted setpoint values. It is closed when
// the ramp completes, is cancelled, or ctx is done.
func (s *Scheduler) Observe() <-chan quantity.Quantity { return s.ch }

// Cancel requests the ramp stop; it is idempotent and non-blocking. Call
// Join afterwards to wait for the scheduler's goroutine to exit.
func (s *Scheduler) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// Join blocks until the scheduler's goroutine has exited.
func (s *Scheduler) Join() { <-s.done }

// State reports the ramp's current lifecycle state for RampStatus overlay.
func (s *Scheduler) State() model.RampState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st model.RampState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// run implements the §4.4 tick loop: current := Tstart + sign*rate*elapsed;
// once sign*(current-Tend) >= 0, jump to Tend exactly and finish.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)

	if s.sign == 0 {
		s.sink.SetRemoteSetpoint(quantity.Kelvin(s.tend))
		if !s.emit(ctx, quantity.Kelvin(s.tend)) {
			s.setState(model.RampStopped)
			return
		}
		s.setState(model.RampFinished)
		return
	}

	t0 := time.Now()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.cancel:
			s.setState(model.RampStopped)
			return
		case <-ctx.Done():
			s.setState(model.RampStopped)
			return
		case now := <-ticker.C:
			elapsed := now.Sub(t0).Seconds()
			current := s.tstart + s.sign*s.rateAbs*elapsed
			if s.sign*(current-s.tend) >= 0 {
				s.sink.SetRemoteSetpoint(quantity.Kelvin(s.tend))
				if !s.emit(ctx, quantity.Kelvin(s.tend)) {
					s.setState(model.RampStopped)
					return
				}
				s.setState(model.RampFinished)
				return
			}
			s.sink.SetRemoteSetpoint(quantity.Kelvin(current))
			if !s.emit(ctx, quantity.Kelvin(current)) {
				s.setState(model.RampStopped)
				return
			}
		}
	}
}

// emit delivers v to the broadcast channel, reporting false if the ramp was
// cancelled or ctx was done while trying to send (the caller must not emit
// further in that case).
func (s *Scheduler) emit(ctx context.Context, v quantity.Quantity) bool {
	select {
	case s.ch <- v:
		return true
	case <-s.cancel:
		return false
	case <-ctx.Done():
		return false
	}
}
