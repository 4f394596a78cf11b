package driver

import (
	"context"
	"math"
	"time"

	"eurotherm-supervisor/internal/bus"
	"eurotherm-supervisor/internal/errs"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

// Generic register map (1-based "Modicon" addresses), §4.2.
const (
	regPVIN  uint16 = 1
	regTGSP  uint16 = 2
	regWRKOP uint16 = 4
	regWKGSP uint16 = 5
	regMVIN  uint16 = 202
	regRmSP  uint16 = 26
	regLR    uint16 = 276
	regSTAT  uint16 = 75
	regAcALL uint16 = 274
)

const floatBatchCount = 5 // PVIN, TGSP, (reserved), WRKOP, WKGSP

const (
	maxAttempts   = 3
	retryInterval = 50 * time.Millisecond
)

// Generic is the Generic/Series3200 ControllerDriver implementation: it
// speaks the vendor's float-register indirection and integer status/setpoint
// registers over a shared SerialBus.
type Generic struct {
	bus         *bus.SerialBus
	unitAddress uint8
}

// NewGeneric constructs a Generic driver bound to unitAddress on bus b.
func NewGeneric(b *bus.SerialBus, unitAddress uint8) *Generic {
	return &Generic{bus: b, unitAddress: unitAddress}
}

func floatRegisterAddress(addr uint16) uint16 { return 0x8000 + 2*addr }

// decodeFloat32 unpacks one IEEE-754 float from two consecutive registers,
// low word first: bytes = pack(reg[k+1]) ++ pack(reg[k]) (§4.2).
func decodeFloat32(regs []uint16, k int) float32 {
	bits := uint32(regs[k+1])<<16 | uint32(regs[k])
	return math.Float32frombits(bits)
}

// withRetry runs fn up to maxAttempts times, sleeping retryInterval between
// attempts, and returns the last attempt's error unchanged (the bus already
// reports its failures as errs.BusError). A ctx cancellation while waiting to
// retry is returned as errs.BusError.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			return &errs.BusError{Op: op, Err: ctx.Err()}
		}
	}
	return lastErr
}

func (g *Generic) readFloatBatch(ctx context.Context) ([]float32, error) {
	var words []uint16
	err := withRetry(ctx, "readFloatBatch", func() error {
		var rerr error
		words, rerr = g.bus.ReadHolding(ctx, g.unitAddress, floatRegisterAddress(regPVIN), 2*floatBatchCount)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	out := make([]float32, floatBatchCount)
	for i := range out {
		out[i] = decodeFloat32(words, i*2)
	}
	return out, nil
}

func (g *Generic) readWord(ctx context.Context, op string, reg uint16) (uint16, error) {
	var words []uint16
	err := withRetry(ctx, op, func() error {
		var rerr error
		words, rerr = g.bus.ReadHolding(ctx, g.unitAddress, reg, 1)
		return rerr
	})
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

func (g *Generic) writeWord(ctx context.Context, op string, reg, value uint16) error {
	return withRetry(ctx, op, func() error {
		return g.bus.WriteHolding(ctx, g.unitAddress, reg, value)
	})
}

// ReadStatus reads STAT and LR and assembles the InstrumentStatus bitset.
func (g *Generic) ReadStatus(ctx context.Context) (model.InstrumentStatus, error) {
	bits, err := g.readWord(ctx, "readStatus", regSTAT)
	if err != nil {
		return 0, err
	}
	var status model.InstrumentStatus
	isSet := func(bit uint) bool { return bits&(1<<bit) != 0 }
	if isSet(0) {
		status |= model.StatusAlarm1
	}
	if isSet(1) {
		status |= model.StatusAlarm2
	}
	if isSet(2) {
		status |= model.StatusAlarm3
	}
	if isSet(3) {
		status |= model.StatusAlarm4
	}
	if isSet(5) {
		status |= model.StatusSensorBreak
	}
	if isSet(6) {
		status |= model.StatusLoopBreak
	}
	if isSet(7) {
		status |= model.StatusHeaterFail
	}
	if isSet(8) {
		status |= model.StatusLoadFail
	}
	if isSet(9) {
		status |= model.StatusProgramEnd
	}
	if isSet(10) {
		status |= model.StatusPVOutOfRange
	}
	if isSet(12) {
		status |= model.StatusNewAlarm
	}
	if isSet(13) {
		status |= model.StatusTimerRampRunning
	}
	if isSet(14) {
		status |= model.StatusRemoteSPFail
	}

	lr, err := g.readWord(ctx, "readLR", regLR)
	if err != nil {
		return 0, err
	}
	if lr != 0 {
		status |= model.StatusLocalRemoteSPSelect
	}

	return status.WithOk(), nil
}

// GetProcessValues reads PVIN..WKGSP in one batched transaction, then STAT
// and LR, per the §4.2 batched-poll rule. The timestamp is taken at the
// completion of the batched float read.
func (g *Generic) GetProcessValues(ctx context.Context) (Reading, error) {
	floats, err := g.readFloatBatch(ctx)
	if err != nil {
		return Reading{}, err
	}
	ts := time.Now()

	status, err := g.ReadStatus(ctx)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Timestamp:       ts,
		ProcessValue:    quantity.Celsius(float64(floats[regPVIN-1])),
		Setpoint:        quantity.Celsius(float64(floats[regTGSP-1])),
		WorkingSetpoint: quantity.Celsius(float64(floats[regWKGSP-1])),
		WorkingOutput:   quantity.Percent(float64(floats[regWRKOP-1])),
		Status:          status,
	}, nil
}

// SelectRemoteSetpoint enables or disables the external setpoint.
func (g *Generic) SelectRemoteSetpoint(ctx context.Context, state RemoteSetpointState) error {
	v := uint16(0)
	if state == Enable {
		v = 1
	}
	return g.writeWord(ctx, "selectRemoteSetpoint", regLR, v)
}

// WriteRemoteSetpoint rounds value to the nearest integer degree Celsius
// (round-half-away-from-zero) and writes it to RmSP. Out-of-range values are
// saturated to the uint16 register width and reported as errs.OutOfRange —
// the caller (the worker's poll loop) logs this at warn and continues.
//
// Known limitation (§9 open question): RmSP is an integer °C register, so
// ramp resolution is bounded to 1°C even though the ramp scheduler advances
// in fractional kelvin. A future driver variant for instruments that expose
// a float remote-setpoint register should use it instead.
func (g *Generic) WriteRemoteSetpoint(ctx context.Context, value quantity.Quantity) error {
	celsius, err := value.In("degC")
	if err != nil {
		return err
	}
	rounded := roundHalfAwayFromZero(celsius)

	var word uint16
	var rangeErr error
	switch {
	case rounded < 0:
		word = 0
		rangeErr = &errs.OutOfRange{Value: celsius, Clamped: 0}
	case rounded > 65535:
		word = 65535
		rangeErr = &errs.OutOfRange{Value: celsius, Clamped: 65535}
	default:
		word = uint16(rounded)
	}

	if err := g.writeWord(ctx, "writeRemoteSetpoint", regRmSP, word); err != nil {
		return err
	}
	return rangeErr
}

// AcknowledgeAllAlarms writes 1 to AcALL.
func (g *Generic) AcknowledgeAllAlarms(ctx context.Context) error {
	return g.writeWord(ctx, "acknowledgeAllAlarms", regAcALL, 1)
}

func roundHalfAwayFromZero(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return int64(math.Ceil(v - 0.5))
}
