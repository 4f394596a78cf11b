// Package bus implements the exclusive, serialised access to one physical
// Modbus RTU serial port (SerialBus, §4.1). A process-wide registry keys
// buses by port name so devices sharing a port share one bus.
//
// Grounded on the teacher's internal/collector/client.go RTU handler setup
// (github.com/goburrow/modbus + github.com/goburrow/serial) and
// internal/utils/rtu.go's serial-parameter defaulting, generalised from a
// per-collector connection into a per-port, single-worker transaction queue.
package bus

import (
	"context"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"

	"eurotherm-supervisor/internal/errs"
)

// transaction is one queued unit of work: run it on the bus's single
// worker goroutine and deliver the result.
type transaction struct {
	do   func(mb.Client) ([]uint16, error)
	resp chan result
}

type result struct {
	values []uint16
	err    error
}

// SerialBus serialises Modbus RTU transactions for every device sharing one
// physical port.
type SerialBus struct {
	port    string
	handler *mb.RTUClientHandler
	client  mb.Client

	queue chan transaction
	quit  chan struct{}
	wg    sync.WaitGroup
}

var (
	registryMu sync.Mutex
	registry   = map[string]*SerialBus{}
)

// Open returns the SerialBus for port, constructing and registering it on
// first use. A second Open of the same port name returns the existing bus —
// construction-returns-cached-instance, without global mutable driver state
// beyond this one registry (§9 design note).
func Open(port string, baudRate int) *SerialBus {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b, ok := registry[port]; ok {
		return b
	}
	h := mb.NewRTUClientHandler(port)
	h.BaudRate = baudRate
	if h.BaudRate == 0 {
		h.BaudRate = 9600
	}
	h.DataBits = 8
	h.StopBits = 1
	h.Parity = "N"
	h.Timeout = 2 * time.Second

	b := &SerialBus{
		port:    port,
		handler: h,
		client:  mb.NewClient(h),
		queue:   make(chan transaction),
		quit:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	registry[port] = b
	return b
}

func (b *SerialBus) run() {
	defer b.wg.Done()
	for {
		select {
		case tx := <-b.queue:
			values, err := tx.do(b.client)
			tx.resp <- result{values: values, err: err}
		case <-b.quit:
			return
		}
	}
}

func (b *SerialBus) submit(ctx context.Context, op string, do func(mb.Client) ([]uint16, error)) ([]uint16, error) {
	if err := b.ensureConnected(); err != nil {
		return nil, &errs.BusError{Op: op, Err: err}
	}
	resp := make(chan result, 1)
	select {
	case b.queue <- transaction{do: do, resp: resp}:
	case <-ctx.Done():
		return nil, &errs.BusError{Op: op, Err: ctx.Err()}
	case <-b.quit:
		return nil, &errs.BusError{Op: op, Err: context.Canceled}
	}
	select {
	case r := <-resp:
		if r.err != nil {
			return nil, &errs.BusError{Op: op, Err: r.err}
		}
		return r.values, nil
	case <-ctx.Done():
		return nil, &errs.BusError{Op: op, Err: ctx.Err()}
	}
}

func (b *SerialBus) ensureConnected() error {
	// goburrow's handler lazily dials on first transaction; Connect is
	// idempotent and cheap to call once per bus lifetime.
	return b.handler.Connect()
}

// ReadHolding reads count holding registers starting at register, for the
// given unit address. One attempt, no retry — retries live in the driver
// layer (§4.2).
func (b *SerialBus) ReadHolding(ctx context.Context, unitAddress uint8, register, count uint16) ([]uint16, error) {
	return b.submit(ctx, "readHolding", func(c mb.Client) ([]uint16, error) {
		b.handler.SlaveId = unitAddress
		raw, err := c.ReadHoldingRegisters(register, count)
		if err != nil {
			return nil, err
		}
		return bytesToWords(raw), nil
	})
}

// WriteHolding writes a single holding register.
func (b *SerialBus) WriteHolding(ctx context.Context, unitAddress uint8, register uint16, value uint16) error {
	_, err := b.submit(ctx, "writeHolding", func(c mb.Client) ([]uint16, error) {
		b.handler.SlaveId = unitAddress
		_, err := c.WriteSingleRegister(register, value)
		return nil, err
	})
	return err
}

// Close releases the bus's worker goroutine and underlying connection.
// Intended for test teardown; a production process keeps buses open for its
// lifetime via the registry.
func (b *SerialBus) Close() error {
	close(b.quit)
	b.wg.Wait()
	registryMu.Lock()
	if registry[b.port] == b {
		delete(registry, b.port)
	}
	registryMu.Unlock()
	return b.handler.Close()
}

func bytesToWords(raw []byte) []uint16 {
	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
	}
	return words
}
