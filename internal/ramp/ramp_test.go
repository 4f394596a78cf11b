package ramp

import (
	"context"
	"sync"
	"testing"
	"time"

	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

type fakeSink struct {
	mu   sync.Mutex
	last quantity.Quantity
}

func (f *fakeSink) SetRemoteSetpoint(v quantity.Quantity) {
	f.mu.Lock()
	f.last = v
	f.mu.Unlock()
}

func (f *fakeSink) Last() quantity.Quantity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func TestSchedulerReachesTargetAndFinishes(t *testing.T) {
	sink := &fakeSink{}
	s := New(quantity.Kelvin(293.15), quantity.Kelvin(296.15), quantity.KelvinPerMinute(60), sink)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Start(ctx)

	var last quantity.Quantity
	for v := range s.Observe() {
		last = v
	}
	s.Join()

	if last.Base() != 296.15 {
		t.Fatalf("final emission = %v K, want 296.15", last.Base())
	}
	if s.State() != model.RampFinished {
		t.Fatalf("state = %v, want Finished", s.State())
	}
	if sink.Last().Base() != 296.15 {
		t.Fatalf("sink's last setpoint = %v, want 296.15", sink.Last().Base())
	}
}

func TestSchedulerCancelStopsEmissions(t *testing.T) {
	sink := &fakeSink{}
	// A large delta at a slow rate so the ramp is still running when cancelled.
	s := New(quantity.Kelvin(273.15), quantity.Kelvin(400), quantity.KelvinPerMinute(1), sink)

	ctx := context.Background()
	s.Start(ctx)

	time.Sleep(1500 * time.Millisecond)
	s.Cancel()
	s.Join()

	if s.State() != model.RampStopped {
		t.Fatalf("state = %v, want Stopped", s.State())
	}

	// Observe must be (or become) closed with no further sends possible.
	select {
	case _, ok := <-s.Observe():
		if ok {
			t.Fatal("received an emission after cancellation drained the channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Observe channel never closed after cancellation")
	}
}

func TestSchedulerNoOpWhenAlreadyAtTarget(t *testing.T) {
	sink := &fakeSink{}
	s := New(quantity.Kelvin(300), quantity.Kelvin(300), quantity.KelvinPerMinute(10), sink)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Start(ctx)

	select {
	case v, ok := <-s.Observe():
		if !ok {
			t.Fatal("channel closed with no emission")
		}
		if v.Base() != 300 {
			t.Fatalf("emission = %v, want 300", v.Base())
		}
	case <-time.After(time.Second):
		t.Fatal("no emission for a zero-delta ramp")
	}
	s.Join()
	if s.State() != model.RampFinished {
		t.Fatalf("state = %v, want Finished", s.State())
	}
}
