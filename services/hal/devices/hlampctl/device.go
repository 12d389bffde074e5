package hlampctldev

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"hlampctl-go/drivers/hlampctl"
	"hlampctl-go/errcode"
	"hlampctl-go/services/hal"
	"hlampctl-go/types"
)

// Control verbs served in addition to the HAL's own read/poll verbs.
const (
	VerbSet       = "set"
	VerbInfo      = "info"
	VerbAttrRead  = "attr_read"
	VerbAttrWrite = "attr_write"
)

// Channel numbers behind each capability kind.
const (
	chVoltage = 0
	chTemp    = 1
	chSwitch  = 2
)

// Device exposes one lamp controller as three capabilities:
// <domain>/voltage/<name>, <domain>/temperature/<name> and
// <domain>/switch/<name>.
type Device struct {
	id     string
	params Params
	res    hal.Resources
	i2c    drivers.I2C

	aVolt hal.CapAddr
	aTemp hal.CapAddr
	aSw   hal.CapAddr

	dev *hlampctl.Device // nil until Init succeeds
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []hal.CapabilitySpec {
	return []hal.CapabilitySpec{
		{
			Domain: d.aVolt.Domain, Kind: types.KindVoltage, Name: d.aVolt.Name,
			Info:        d.info(chVoltage),
			PollEveryMs: d.params.SampleEveryMs,
		},
		{
			Domain: d.aTemp.Domain, Kind: types.KindTemperature, Name: d.aTemp.Name,
			Info:        d.info(chTemp),
			PollEveryMs: d.params.SampleEveryMs,
		},
		{
			Domain: d.aSw.Domain, Kind: types.KindSwitch, Name: d.aSw.Name,
			Info: d.info(chSwitch),
		},
	}
}

func (d *Device) info(ch int) types.Info {
	return types.Info{SchemaVersion: 1, Driver: hlampctl.Name, Detail: channelInfo(ch)}
}

// Init probes the device. On failure the bus claim is released so that a
// later config can retry the address.
func (d *Device) Init(context.Context) error {
	dev, err := hlampctl.New(d.i2c, hlampctl.Config{Address: d.params.Addr, Name: d.params.Name})
	if err != nil {
		d.release()
		return errcode.Wrap("hlampctl probe", err)
	}
	d.dev = dev
	return nil
}

func (d *Device) Close() error {
	d.release()
	d.dev = nil
	return nil
}

func (d *Device) release() {
	if d.i2c == nil {
		return
	}
	d.res.Reg.ReleaseI2C(d.id, hal.ResourceID(d.params.Bus), d.params.Addr)
	d.i2c = nil
}

func (d *Device) Control(a hal.CapAddr, verb string, payload any) (any, error) {
	if d.dev == nil {
		return nil, errcode.Unavailable
	}
	ch, ok := d.channelOf(a)
	if !ok {
		return nil, errcode.UnknownCapability
	}

	switch verb {
	case hal.VerbRead:
		return d.read(ch)
	case VerbInfo:
		return channelInfo(ch), nil
	case VerbSet:
		if ch != chSwitch {
			return nil, errcode.Unsupported
		}
		if payload == nil {
			return nil, errcode.InvalidPayload
		}
		p, err := hal.As[types.SwitchSet](deref(payload))
		if err != nil {
			return nil, err
		}
		if err := d.dev.SetEnabled(p.On); err != nil {
			return nil, err
		}
		// Publish the new state without waiting for a read.
		_ = d.res.Pub.Emit(hal.Event{Addr: d.aSw, Payload: types.SwitchValue{On: p.On}, TS: time.Now().UnixNano()})
		return nil, nil
	case VerbAttrRead:
		p, err := hal.As[types.AttrRead](deref(payload))
		if err != nil || p.Name == "" {
			return nil, errcode.InvalidPayload
		}
		v, err := d.dev.ReadAttr(p.Name)
		if err != nil {
			return nil, err
		}
		return types.AttrValue{Name: p.Name, Value: v}, nil
	case VerbAttrWrite:
		p, err := hal.As[types.AttrWrite](deref(payload))
		if err != nil || p.Name == "" {
			return nil, errcode.InvalidPayload
		}
		if err := d.dev.WriteAttr(p.Name, p.Value); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, errcode.Unsupported
	}
}

func (d *Device) read(ch int) (any, error) {
	switch ch {
	case chVoltage:
		raw, err := d.dev.Read(chVoltage)
		if err != nil {
			return nil, err
		}
		phys := hlampctl.Physical(hlampctl.Channels()[chVoltage], raw)
		return types.VoltageValue{Raw: raw, NanoV: phys.Nanos(), Volts: phys.String()}, nil
	case chTemp:
		raw, err := d.dev.Read(chTemp)
		if err != nil {
			return nil, err
		}
		return types.TemperatureValue{Raw: raw}, nil
	default:
		on, err := d.dev.Enabled()
		if err != nil {
			return nil, err
		}
		return types.SwitchValue{On: on}, nil
	}
}

func (d *Device) channelOf(a hal.CapAddr) (int, bool) {
	switch a {
	case d.aVolt:
		return chVoltage, true
	case d.aTemp:
		return chTemp, true
	case d.aSw:
		return chSwitch, true
	}
	return 0, false
}

// channelInfo describes one channel from the driver's table.
func channelInfo(ch int) types.ChannelInfo {
	c := hlampctl.Channels()[ch]
	ci := types.ChannelInfo{
		Channel:  c.Index,
		Register: c.Reg,
		Output:   c.Dir == hlampctl.DirOut,
		Scale:    hlampctl.Scale(c).String(),
	}
	if c.Has(hlampctl.InfoSampFreq) {
		ci.SampFreq = hlampctl.SamplingFrequencyAvailable()
	}
	for _, n := range hlampctl.AttrNames() {
		if hlampctl.AttrChannel(n) == ch {
			ci.Attrs = append(ci.Attrs, n)
		}
	}
	return ci
}

// deref lets callers pass payloads by pointer.
func deref(v any) any {
	switch x := v.(type) {
	case *types.SwitchSet:
		if x != nil {
			return *x
		}
	case *types.AttrRead:
		if x != nil {
			return *x
		}
	case *types.AttrWrite:
		if x != nil {
			return *x
		}
	}
	return v
}
