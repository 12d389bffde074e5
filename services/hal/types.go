package hal

import (
	"context"

	"hlampctl-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address of a capability:
// hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

type CapabilitySpec struct {
	Domain string
	Kind   types.Kind
	Name   string
	Info   types.Info

	// PollEveryMs > 0 installs a default "read" schedule when the device is
	// built. Config pollers override it.
	PollEveryMs int
}

func (cs CapabilitySpec) Addr() CapAddr {
	return CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
}

// Device is what a builder hands to the HAL.
//
// Control is called from the HAL goroutine only. Verb "read" results are
// published as the capability value.
type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (any, error)
	Close() error // release claimed resources
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

// ---- Device → HAL telemetry ----

// Event is a device-initiated update. Err, when non-empty, publishes only a
// degraded status.
type Event struct {
	Addr    CapAddr
	Payload any
	TS      int64 // Unix ns
	Err     string
}

type EventEmitter interface {
	// Emit must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // set by the HAL
}
