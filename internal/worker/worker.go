// Package worker implements AcquisitionWorker (§4.3): one per-device polling
// loop owning the device's driver, its stored remote setpoint and an
// optional active ramp.
//
// Grounded on the teacher's internal/collector/manager.go per-collector
// goroutine (start/stop, context cancellation, WaitGroup join) and
// internal/tasks/collector.go's ticker polling loop, generalised from a
// fixed-interval register scrape into the overlay-and-reassert loop of
// §4.3.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"eurotherm-supervisor/internal/driver"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
	"eurotherm-supervisor/internal/ramp"
)

// State is the worker's lifecycle state.
type State int

const (
	Idle State = iota
	Polling
	Draining
	Stopped
)

// Emit is called once per completed poll with the assembled record.
type Emit func(model.ProcessValues)

// Worker runs one device's acquisition loop. Exported so IOManager can hold
// a map of them; its exported methods are the only supported entry points
// from other packages.
type Worker struct {
	name   string
	drv    driver.ControllerDriver
	period time.Duration
	emit   Emit

	mu             sync.Mutex
	state          State
	remoteSetpoint quantity.Quantity
	activeRamp     *ramp.Scheduler

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Worker for device name, polling drv every period, with
// emit called on each completed poll. initialSetpoint seeds remoteSetpoint
// before the first poll.
func New(name string, drv driver.ControllerDriver, period time.Duration, initialSetpoint quantity.Quantity, emit Emit) *Worker {
	return &Worker{
		name:           name,
		drv:            drv,
		period:         period,
		emit:           emit,
		state:          Idle,
		remoteSetpoint: initialSetpoint,
		done:           make(chan struct{}),
	}
}

// Start transitions Idle→Polling and launches the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = Polling
	w.mu.Unlock()

	go w.pollLoop(ctx)
}

// Stop transitions Polling→Draining, cancels any active ramp, and blocks
// until the worker has joined (Draining→Stopped).
func (w *Worker) Stop() {
	w.mu.Lock()
	activeRamp := w.activeRamp
	cancel := w.cancel
	w.state = Draining
	w.mu.Unlock()

	if activeRamp != nil {
		activeRamp.Cancel()
		activeRamp.Join()
	}
	if cancel != nil {
		cancel()
	}
	<-w.done

	w.mu.Lock()
	w.state = Stopped
	w.mu.Unlock()
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	reading, err := w.drv.GetProcessValues(ctx)
	if err != nil {
		log.Printf("worker %s: poll failed: %v", w.name, err)
		return
	}

	w.mu.Lock()
	remoteSP := w.remoteSetpoint
	rampStatus := w.rampStatusLocked()
	w.mu.Unlock()

	record := model.ProcessValues{
		DeviceName:      w.name,
		Timestamp:       reading.Timestamp,
		ProcessValue:    reading.ProcessValue,
		Setpoint:        reading.Setpoint,
		WorkingSetpoint: reading.WorkingSetpoint,
		RemoteSetpoint:  remoteSP,
		WorkingOutput:   reading.WorkingOutput,
		Status:          reading.Status,
		RampStatus:      rampStatus,
	}
	if w.emit != nil {
		w.emit(record)
	}

	if reading.Status.Has(model.StatusLocalRemoteSPSelect) {
		if err := w.drv.WriteRemoteSetpoint(ctx, remoteSP); err != nil {
			log.Printf("worker %s: writeRemoteSetpoint failed: %v", w.name, err)
		}
	}
}

// rampStatusLocked must be called with w.mu held.
func (w *Worker) rampStatusLocked() model.RampState {
	if w.activeRamp == nil {
		return model.RampNone
	}
	return w.activeRamp.State()
}

// ToggleRemoteSetpoint forwards to the driver.
func (w *Worker) ToggleRemoteSetpoint(ctx context.Context, state driver.RemoteSetpointState) error {
	return w.drv.SelectRemoteSetpoint(ctx, state)
}

// SetRemoteSetpoint atomically swaps the worker's stored remote setpoint;
// the next poll writes it to the instrument (if LocalRemoteSPSelect holds).
// This also satisfies ramp.SetpointSink, letting a Scheduler drive the
// stored setpoint without ever touching the instrument itself directly.
func (w *Worker) SetRemoteSetpoint(value quantity.Quantity) {
	w.mu.Lock()
	w.remoteSetpoint = value
	w.mu.Unlock()
}

// AcknowledgeAllAlarms forwards to the driver.
func (w *Worker) AcknowledgeAllAlarms(ctx context.Context) error {
	return w.drv.AcknowledgeAllAlarms(ctx)
}

// StartRamp cancels and joins any active ramp, reads the current process
// value as the new ramp's start, and launches a fresh RampScheduler,
// returning its observable. The previous ramp's cancel/join happens outside
// the worker lock: startRamp never holds w.mu while waiting on another
// goroutine, so a plain sync.Mutex suffices where the distilled design
// called for a reentrant one (see DESIGN.md).
func (w *Worker) StartRamp(ctx context.Context, target quantity.Quantity, rate quantity.Quantity) (<-chan quantity.Quantity, error) {
	w.mu.Lock()
	oldRamp := w.activeRamp
	w.activeRamp = nil
	w.mu.Unlock()

	if oldRamp != nil {
		oldRamp.Cancel()
		oldRamp.Join()
	}

	reading, err := w.drv.GetProcessValues(ctx)
	if err != nil {
		return nil, err
	}

	newRamp := ramp.New(reading.ProcessValue, target, rate, w)

	w.mu.Lock()
	w.activeRamp = newRamp
	w.mu.Unlock()

	newRamp.Start(ctx)
	return newRamp.Observe(), nil
}

// StopRamp cancels and joins the active ramp, if any.
func (w *Worker) StopRamp() {
	w.mu.Lock()
	activeRamp := w.activeRamp
	w.mu.Unlock()
	if activeRamp == nil {
		return
	}
	activeRamp.Cancel()
	activeRamp.Join()
}

// State reports the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

var _ ramp.SetpointSink = (*Worker)(nil)
