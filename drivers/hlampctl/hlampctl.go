// Package hlampctl provides a driver for the hlampctl lamp controller, an I²C
// device with three logical channels behind one bus address:
//
//	ch0  analog voltage input   (reg 0x02, 12-bit signed, 3.3 V / 256 per LSB)
//	ch1  temperature input      (reg 0x01, raw code)
//	ch2  lamp enable output     (reg 0x03, bit0, read/write)
//
// All register traffic for a Device is serialised behind one lock; exactly
// one transaction is in flight at a time. The driver is integer-only.
package hlampctl

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Errors returned by the driver.
var (
	ErrInvalidChannel       = errors.New("hlampctl: invalid channel")
	ErrBus                  = errors.New("hlampctl: bus error")
	ErrUnsupportedTransport = errors.New("hlampctl: unsupported transport")
	ErrDeviceNotFound       = errors.New("hlampctl: device not found")
	ErrReadOnlyAttr         = errors.New("hlampctl: attribute is read-only")
	ErrInvalidInfo          = errors.New("hlampctl: unsupported attribute")
)

// Device ID tables used for binding.
var (
	i2cIDs     = []string{"hlampctl"}
	compatible = []string{"hlampctl"}
)

// Match reports whether a bus device name or compatible string binds to this
// driver.
func Match(name string) bool {
	for _, id := range i2cIDs {
		if id == name {
			return true
		}
	}
	for _, c := range compatible {
		if c == name {
			return true
		}
	}
	return false
}

// Config describes one device instance.
type Config struct {
	// Address is the 7-bit bus address. Required.
	Address uint16
	// Name is reported to the framework; defaults to "hlampctl".
	Name string
}

// Validate checks the fields New depends on.
func (c Config) Validate() error {
	if c.Address == 0 || c.Address > 0x7F {
		return errors.New("hlampctl: Address must be a 7-bit non-zero address")
	}
	return nil
}

// State is the lifecycle position of a session.
type State uint8

const (
	StateUninitialized State = iota
	StateProbing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Device is a live session with one physical hlampctl.
type Device struct {
	g     guard
	name  string
	state State
}

// New checks the transport, probes the device once and returns a ready
// session. On any failure no Device is returned.
func New(bus drivers.I2C, cfg Config) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !transportOK(bus) {
		return nil, ErrUnsupportedTransport
	}
	name := cfg.Name
	if name == "" {
		name = Name
	}
	d := &Device{
		g:     guard{bus: bus, addr: cfg.Address},
		name:  name,
		state: StateProbing,
	}
	if err := d.g.probe(); err != nil {
		d.state = StateFailed
		return nil, ErrDeviceNotFound
	}
	d.state = StateReady
	return d, nil
}

// Introspection.
func (d *Device) Name() string     { return d.name }
func (d *Device) Address() uint16  { return d.g.addr }
func (d *Device) State() State     { return d.state }
func (d *Device) NumChannels() int { return NumChannels }

// Read returns the decoded raw sample of a channel.
func (d *Device) Read(ch int) (int32, error) {
	c, ok := lookup(ch)
	if !ok {
		return 0, ErrInvalidChannel
	}
	v, err := d.g.readByte(c.Reg)
	if err != nil {
		return 0, err
	}
	return decode(c, uint32(v)), nil
}

// Write drives an output channel. Any value > 0 switches the enable on.
func (d *Device) Write(ch int, value int32) error {
	c, ok := lookup(ch)
	if !ok || c.Dir != DirOut {
		return ErrInvalidChannel
	}
	return d.g.writeByte(c.Reg, encodeEnable(value))
}

// ReadPhysical reads a channel and applies its scale.
func (d *Device) ReadPhysical(ch int) (Value, error) {
	raw, err := d.Read(ch)
	if err != nil {
		return Value{}, err
	}
	return Physical(channels[ch], raw), nil
}

// Enabled reports the lamp enable state.
func (d *Device) Enabled() (bool, error) {
	v, err := d.Read(2)
	return v == 1, err
}

// SetEnabled switches the lamp enable output.
func (d *Device) SetEnabled(on bool) error {
	var v int32
	if on {
		v = 1
	}
	return d.Write(2, v)
}
