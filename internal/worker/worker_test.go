package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"eurotherm-supervisor/internal/driver"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

type fakeDriver struct {
	mu           sync.Mutex
	pv           quantity.Quantity
	status       model.InstrumentStatus
	writes       []quantity.Quantity
	toggled      driver.RemoteSetpointState
	acked        int
	getPVCalls   int
	writeErr     error
}

func (d *fakeDriver) GetProcessValues(ctx context.Context) (driver.Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.getPVCalls++
	return driver.Reading{
		Timestamp:       time.Now(),
		ProcessValue:    d.pv,
		Setpoint:        d.pv,
		WorkingSetpoint: d.pv,
		WorkingOutput:   quantity.Percent(0),
		Status:          d.status,
	}, nil
}

func (d *fakeDriver) SelectRemoteSetpoint(ctx context.Context, state driver.RemoteSetpointState) error {
	d.mu.Lock()
	d.toggled = state
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) WriteRemoteSetpoint(ctx context.Context, value quantity.Quantity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, value)
	return d.writeErr
}

func (d *fakeDriver) AcknowledgeAllAlarms(ctx context.Context) error {
	d.mu.Lock()
	d.acked++
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) ReadStatus(ctx context.Context) (model.InstrumentStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, nil
}

func TestPollLoopEmitsAndReassertsWhenSelected(t *testing.T) {
	drv := &fakeDriver{pv: quantity.Celsius(20), status: (model.StatusLocalRemoteSPSelect).WithOk()}

	var emitted []model.ProcessValues
	var mu sync.Mutex
	w := New("d1", drv, 20*time.Millisecond, quantity.Celsius(50), func(pv model.ProcessValues) {
		mu.Lock()
		emitted = append(emitted, pv)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(emitted) == 0 {
		t.Fatal("no records emitted")
	}
	for _, pv := range emitted {
		if pv.DeviceName != "d1" {
			t.Errorf("emitted record has DeviceName %q, want d1", pv.DeviceName)
		}
		if pv.RemoteSetpoint.Base() == 0 {
			t.Errorf("emitted record missing overlay RemoteSetpoint")
		}
	}

	drv.mu.Lock()
	defer drv.mu.Unlock()
	if len(drv.writes) == 0 {
		t.Fatal("LocalRemoteSPSelect was set but writeRemoteSetpoint was never called")
	}
}

func TestPollLoopSkipsReassertWhenNotSelected(t *testing.T) {
	drv := &fakeDriver{pv: quantity.Celsius(20), status: model.StatusOk}

	w := New("d1", drv, 20*time.Millisecond, quantity.Celsius(50), func(model.ProcessValues) {})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(80 * time.Millisecond)
	cancel()
	w.Stop()

	drv.mu.Lock()
	defer drv.mu.Unlock()
	if len(drv.writes) != 0 {
		t.Fatalf("writeRemoteSetpoint called %d times without LocalRemoteSPSelect set", len(drv.writes))
	}
}

func TestSetRemoteSetpointTakesEffectOnNextPoll(t *testing.T) {
	drv := &fakeDriver{pv: quantity.Celsius(20), status: (model.StatusLocalRemoteSPSelect).WithOk()}
	w := New("d1", drv, 15*time.Millisecond, quantity.Celsius(0), func(model.ProcessValues) {})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	w.SetRemoteSetpoint(quantity.Celsius(77))
	time.Sleep(60 * time.Millisecond)
	cancel()
	w.Stop()

	drv.mu.Lock()
	defer drv.mu.Unlock()
	found := false
	for _, v := range drv.writes {
		if v.Base() == quantity.Celsius(77).Base() {
			found = true
		}
	}
	if !found {
		t.Fatal("writeRemoteSetpoint never observed the updated setpoint")
	}
}

func TestStartRampPreemptsPriorRamp(t *testing.T) {
	drv := &fakeDriver{pv: quantity.Kelvin(293.15), status: model.StatusOk}
	w := New("d1", drv, 50*time.Millisecond, quantity.Kelvin(293.15), func(model.ProcessValues) {})

	ctx := context.Background()
	w.Start(ctx)
	defer w.Stop()

	streamA, err := w.StartRamp(ctx, quantity.Kelvin(400), quantity.KelvinPerMinute(10))
	if err != nil {
		t.Fatalf("first StartRamp: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	streamB, err := w.StartRamp(ctx, quantity.Kelvin(310), quantity.KelvinPerMinute(60))
	if err != nil {
		t.Fatalf("second StartRamp: %v", err)
	}

	// A's stream must be fully drained (closed) by the time B is returned,
	// since StartRamp joins the old ramp before launching the new one.
	select {
	case _, ok := <-streamA:
		if ok {
			t.Fatal("ramp A still emitting after ramp B started")
		}
	default:
		t.Fatal("ramp A's stream not yet closed when ramp B started")
	}

	for range streamB {
	}
}
