package rpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"eurotherm-supervisor/internal/errs"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

func TestToStatusTranslatesKnownErrors(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{&errs.UnknownDevice{Name: "d1"}, codes.InvalidArgument},
		{&errs.BusError{Op: "read", Err: context.DeadlineExceeded}, codes.Unavailable},
		{&errs.ConfigError{Msg: "bad"}, codes.FailedPrecondition},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, c := range cases {
		got := status.Code(toStatus(c.err))
		if got != c.want {
			t.Errorf("toStatus(%v) code = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestToMessageConvertsQuantitiesToKelvinAndEpoch(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 500, time.UTC)
	pv := model.ProcessValues{
		DeviceName:      "d1",
		Timestamp:       ts,
		ProcessValue:    quantity.Celsius(25),
		Setpoint:        quantity.Kelvin(300),
		WorkingSetpoint: quantity.Kelvin(301),
		RemoteSetpoint:  quantity.Kelvin(302),
		WorkingOutput:   quantity.Percent(42),
		Status:          model.StatusOk | model.StatusAlarm2,
		RampStatus:      model.RampRamping,
	}
	msg := toMessage(pv)
	if msg.DeviceName != "d1" {
		t.Errorf("DeviceName = %q", msg.DeviceName)
	}
	if msg.ProcessValueK != 298.15 {
		t.Errorf("ProcessValueK = %v, want 298.15", msg.ProcessValueK)
	}
	if msg.TimestampSeconds != ts.Unix() || msg.TimestampNanos != int32(ts.Nanosecond()) {
		t.Errorf("timestamp = %d/%d, want %d/%d", msg.TimestampSeconds, msg.TimestampNanos, ts.Unix(), ts.Nanosecond())
	}
	wantStatus := int32(model.StatusOk | model.StatusAlarm2)
	if msg.Status != wantStatus {
		t.Errorf("Status = %d, want %d", msg.Status, wantStatus)
	}
	if msg.RampStatus != int32(model.RampRamping) {
		t.Errorf("RampStatus = %d, want %d", msg.RampStatus, model.RampRamping)
	}
}
