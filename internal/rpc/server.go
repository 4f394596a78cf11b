package rpc

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"eurotherm-supervisor/internal/driver"
	"eurotherm-supervisor/internal/errs"
	"eurotherm-supervisor/internal/iomanager"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

// Server implements EurothermServer over an IOManager. StreamProcessValues,
// GetProcessValues and ToggleRemoteSetpoint start the manager lazily (§4.7)
// rather than requiring a separate bring-up call; the other command handlers
// do not start it.
type Server struct {
	mgr       *iomanager.IOManager
	shutdown  func()
	startedAt time.Time
}

// NewServer constructs a Server bound to mgr. shutdown is invoked by
// StopServer to trigger the enclosing process's graceful shutdown; it must
// itself stop mgr (so active streams unblock) before or alongside tearing
// down the transport, or a connected streaming client will wedge the
// shutdown indefinitely.
func NewServer(mgr *iomanager.IOManager, shutdown func()) *Server {
	return &Server{mgr: mgr, shutdown: shutdown, startedAt: time.Now()}
}

var _ EurothermServer = (*Server)(nil)

// ServerHealthCheck is a liveness ping: the wire contract stays Empty->Empty
// (§4.7), but every call logs a humanized uptime/device-count line so an
// operator tailing the daemon's log can see the server age without a
// separate diagnostics RPC.
func (s *Server) ServerHealthCheck(ctx context.Context, in *Empty) (*Empty, error) {
	log.Printf("health check ok: started %s, %d device(s) configured",
		humanize.Time(s.startedAt), len(s.mgr.Devices()))
	return &Empty{}, nil
}

func (s *Server) StopServer(ctx context.Context, in *Empty) (*Empty, error) {
	if s.shutdown != nil {
		go s.shutdown()
	}
	return &Empty{}, nil
}

func (s *Server) StreamProcessValues(in *Empty, stream Eurotherm_StreamProcessValuesServer) error {
	ctx := stream.Context()
	if err := s.mgr.Start(ctx); err != nil {
		return toStatus(err)
	}
	ch, cancel, err := s.mgr.Subscribe()
	if err != nil {
		return toStatus(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case pv, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(toMessage(pv)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) GetProcessValues(ctx context.Context, in *DeviceRequest) (*ProcessValuesMessage, error) {
	if err := s.mgr.Start(ctx); err != nil {
		return nil, toStatus(err)
	}
	ch, cancel, err := s.mgr.Subscribe()
	if err != nil {
		return nil, toStatus(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		case pv, ok := <-ch:
			if !ok {
				return nil, status.Error(codes.Unavailable, "process value stream closed")
			}
			if pv.DeviceName == in.Device {
				return toMessage(pv), nil
			}
		}
	}
}

func (s *Server) ToggleRemoteSetpoint(ctx context.Context, in *ToggleRequest) (*Empty, error) {
	if err := s.mgr.Start(ctx); err != nil {
		return nil, toStatus(err)
	}
	state := driver.Disable
	if in.State == 1 {
		state = driver.Enable
	}
	if err := s.mgr.Toggle(ctx, in.Device, state); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) SetRemoteSetpoint(ctx context.Context, in *SetRemoteSetpointRequest) (*Empty, error) {
	if err := s.mgr.SetRemote(in.Device, quantity.Kelvin(in.ValueK)); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) StartTemperatureRamp(in *StartRampRequest, stream Eurotherm_StartTemperatureRampServer) error {
	ctx := stream.Context()
	ch, err := s.mgr.StartRamp(ctx, in.Device, quantity.Kelvin(in.TargetK), quantity.KelvinPerMinute(in.RateKPerMin))
	if err != nil {
		return toStatus(err)
	}
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&TemperatureRampValue{CurrentK: v.Base()}); err != nil {
				return err
			}
		}
	}
}

func (s *Server) StopTemperatureRamp(ctx context.Context, in *DeviceRequest) (*Empty, error) {
	if err := s.mgr.StopRamp(in.Device); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) AcknowledgeAllAlarms(ctx context.Context, in *DeviceRequest) (*Empty, error) {
	if err := s.mgr.Ack(ctx, in.Device); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// toMessage converts a polled record into its wire form (§6): temperatures
// and rates in kelvin, output in percent, status as a signed int32 bitset.
func toMessage(pv model.ProcessValues) *ProcessValuesMessage {
	return &ProcessValuesMessage{
		DeviceName:           pv.DeviceName,
		TimestampSeconds:     pv.Timestamp.Unix(),
		TimestampNanos:       int32(pv.Timestamp.Nanosecond()),
		ProcessValueK:        pv.ProcessValue.Base(),
		SetpointK:            pv.Setpoint.Base(),
		WorkingSetpointK:     pv.WorkingSetpoint.Base(),
		RemoteSetpointK:      pv.RemoteSetpoint.Base(),
		WorkingOutputPercent: pv.WorkingOutput.Base(),
		Status:               int32(pv.Status),
		RampStatus:           int32(pv.RampStatus),
	}
}

// toStatus translates internal error kinds to gRPC status codes (§7):
// UnknownDevice -> INVALID_ARGUMENT, BusError -> UNAVAILABLE, ConfigError ->
// FAILED_PRECONDITION, cancellation -> CANCELLED, deadline expiry ->
// DEADLINE_EXCEEDED, everything else -> INTERNAL.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var unknownDevice *errs.UnknownDevice
	if errors.As(err, &unknownDevice) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	var busErr *errs.BusError
	if errors.As(err, &busErr) {
		return status.Error(codes.Unavailable, err.Error())
	}
	var configErr *errs.ConfigError
	if errors.As(err, &configErr) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
