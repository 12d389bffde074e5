package errcode

import (
	"errors"

	"hlampctl-go/drivers/hlampctl"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Unavailable       Code = "unavailable"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"

	UnknownBus Code = "unknown_bus"
	BusInUse   Code = "bus_in_use"

	// Driver-level failures.
	InvalidChannel       Code = "invalid_channel"
	BusError             Code = "bus_error"
	UnsupportedTransport Code = "unsupported_transport"
	DeviceNotFound       Code = "device_not_found"
	ReadOnly             Code = "read_only"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches a code and operation to a cause. A nil cause yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: Of(err), Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, hlampctl.ErrInvalidChannel):
		return InvalidChannel
	case errors.Is(err, hlampctl.ErrBus):
		return BusError
	case errors.Is(err, hlampctl.ErrUnsupportedTransport):
		return UnsupportedTransport
	case errors.Is(err, hlampctl.ErrDeviceNotFound):
		return DeviceNotFound
	case errors.Is(err, hlampctl.ErrReadOnlyAttr):
		return ReadOnly
	case errors.Is(err, hlampctl.ErrInvalidInfo):
		return Unsupported
	default:
		return Error
	}
}
