// Package errs holds the error kinds shared by the acquisition, bus and RPC
// layers (§7 of the design: BadUnit lives in package quantity since it's
// raised only there).
package errs

import "fmt"

// ConfigError reports an invalid device configuration: a problem found by
// config.Load, or a duplicate device name or unknown driver kind found while
// starting the IOManager.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

// UnknownDevice is returned when a command names a device that isn't
// configured.
type UnknownDevice struct {
	Name string
}

func (e *UnknownDevice) Error() string { return fmt.Sprintf("unknown device %q", e.Name) }

// BusError wraps a Modbus transport failure: timeout, CRC mismatch or
// exception response, after retries (if any) are exhausted.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string { return fmt.Sprintf("bus error during %s: %v", e.Op, e.Err) }
func (e *BusError) Unwrap() error { return e.Err }

// OutOfRange reports a setpoint value that doesn't fit in the instrument's
// register width after rounding.
type OutOfRange struct {
	Value   float64
	Clamped int64
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("value %g out of range, clamped to %d", e.Value, e.Clamped)
}

// RpcFailed is the client-observed counterpart of a failed RPC call.
type RpcFailed struct {
	Method string
	Err    error
}

func (e *RpcFailed) Error() string { return fmt.Sprintf("rpc %s failed: %v", e.Method, e.Err) }
func (e *RpcFailed) Unwrap() error { return e.Err }

// AlreadyRunning is returned by lifecycle calls that require a stopped server.
type AlreadyRunning struct{}

func (e *AlreadyRunning) Error() string { return "server already running" }

// NotRunning is returned by lifecycle/command calls that require a running server.
type NotRunning struct{}

func (e *NotRunning) Error() string { return "server not running" }
