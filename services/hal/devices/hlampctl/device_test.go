package hlampctldev

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlampctl-go/bus"
	"hlampctl-go/errcode"
	"hlampctl-go/services/hal"
	"hlampctl-go/types"
)

// regBus answers SMBus byte-data traffic for one address.
type regBus struct {
	mu      sync.Mutex
	addr    uint16
	regs    map[byte]byte
	missing bool
}

func (b *regBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.missing || addr != b.addr {
		return errors.New("nack")
	}
	switch {
	case len(w) == 0 && len(r) == 1:
		r[0] = 0
	case len(w) == 1 && len(r) == 1:
		r[0] = b.regs[w[0]]
	case len(w) == 2 && len(r) == 0:
		b.regs[w[0]] = w[1]
	default:
		return errors.New("bad shape")
	}
	return nil
}

func (b *regBus) reg(r byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[r]
}

type rig struct {
	t    *testing.T
	conn *bus.Connection
	reg  *hal.BusRegistry
	dev  *regBus
}

func newRig(t *testing.T) *rig {
	t.Helper()
	b := bus.NewBus(64)
	dev := &regBus{addr: 0x40, regs: map[byte]byte{0x01: 0x2A, 0x02: 0xFF, 0x03: 0x00}}
	reg := hal.NewBusRegistry()
	reg.AddI2C("i2c1", dev)

	h := hal.NewHAL(b.NewConnection("hal"), hal.Resources{Reg: reg}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { h.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	return &rig{t: t, conn: b.NewConnection("test"), reg: reg, dev: dev}
}

func (r *rig) configure(params any) types.HALState {
	r.t.Helper()
	sub := r.conn.Subscribe(bus.T("hal", "state"))
	defer r.conn.Unsubscribe(sub)
	for len(sub.Channel()) > 0 {
		<-sub.Channel()
	}
	// Retained, like the config service: Run may not have subscribed yet.
	r.conn.Publish(r.conn.NewMessage(bus.T("config", "hal"), types.HALConfig{
		Devices: []types.HALDevice{{ID: "lamp0", Type: "hlampctl", Params: params}},
	}, true))
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return st
			}
		case <-deadline:
			r.t.Fatal("timeout waiting for hal ready")
		}
	}
}

func (r *rig) control(kind types.Kind, verb string, payload any) any {
	r.t.Helper()
	a := hal.CapAddr{Domain: "lamp", Kind: kind, Name: "lamp0"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := r.conn.RequestWait(ctx, r.conn.NewMessage(hal.CapCtrl(a, verb), payload, false))
	require.NoError(r.t, err)
	return reply.Payload
}

func TestDevice_ReadsAllChannels(t *testing.T) {
	r := newRig(t)
	st := r.configure(Params{Bus: "i2c1", Addr: 0x40})
	require.Empty(t, st.Error)

	// 0x0FF is positive in 12 bits: 255 * 12.890625 mV.
	assert.Equal(t, types.VoltageValue{Raw: 255, NanoV: 3_287_109_375, Volts: "3.287109375"},
		r.control(types.KindVoltage, hal.VerbRead, nil))
	assert.Equal(t, types.TemperatureValue{Raw: 0x2A}, r.control(types.KindTemperature, hal.VerbRead, nil))
	assert.Equal(t, types.SwitchValue{On: false}, r.control(types.KindSwitch, hal.VerbRead, nil))
}

func TestDevice_SetSwitch(t *testing.T) {
	r := newRig(t)
	r.configure(map[string]any{"bus": "i2c1", "addr": "0x40"})

	assert.Equal(t, types.OKReply{OK: true}, r.control(types.KindSwitch, VerbSet, types.SwitchSet{On: true}))
	assert.Equal(t, byte(1), r.dev.reg(0x03))
	assert.Equal(t, types.SwitchValue{On: true}, r.control(types.KindSwitch, hal.VerbRead, nil))

	assert.Equal(t, types.OKReply{OK: true}, r.control(types.KindSwitch, VerbSet, &types.SwitchSet{On: false}))
	assert.Equal(t, byte(0), r.dev.reg(0x03))

	assert.Equal(t, types.ErrorReply{Error: string(errcode.InvalidPayload)}, r.control(types.KindSwitch, VerbSet, nil))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.Unsupported)},
		r.control(types.KindVoltage, VerbSet, types.SwitchSet{On: true}))
}

func TestDevice_Attributes(t *testing.T) {
	r := newRig(t)
	r.configure(Params{Bus: "i2c1", Addr: 0x40})

	assert.Equal(t, types.AttrValue{Name: "in_voltage0_scale", Value: "0.012890625"},
		r.control(types.KindVoltage, VerbAttrRead, types.AttrRead{Name: "in_voltage0_scale"}))
	assert.Equal(t, types.AttrValue{Name: "name", Value: "lamp0"},
		r.control(types.KindVoltage, VerbAttrRead, types.AttrRead{Name: "name"}))

	assert.Equal(t, types.OKReply{OK: true},
		r.control(types.KindSwitch, VerbAttrWrite, types.AttrWrite{Name: "out_voltage2_raw", Value: "5"}))
	assert.Equal(t, byte(1), r.dev.reg(0x03))

	assert.Equal(t, types.ErrorReply{Error: string(errcode.ReadOnly)},
		r.control(types.KindVoltage, VerbAttrWrite, types.AttrWrite{Name: "in_voltage0_scale", Value: "1"}))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.ReadOnly)},
		r.control(types.KindVoltage, VerbAttrWrite, types.AttrWrite{Name: "in_voltage0_scale", Value: "abc"}))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.Unsupported)},
		r.control(types.KindVoltage, VerbAttrRead, types.AttrRead{Name: "in_current0_raw"}))
}

func TestDevice_Info(t *testing.T) {
	r := newRig(t)
	r.configure(Params{Bus: "i2c1", Addr: 0x40})

	ci, ok := r.control(types.KindVoltage, VerbInfo, nil).(types.ChannelInfo)
	require.True(t, ok)
	assert.Equal(t, uint8(0x02), ci.Register)
	assert.Equal(t, "0.012890625", ci.Scale)
	assert.Equal(t, "10", ci.SampFreq)
	assert.Contains(t, ci.Attrs, "in_voltage0_raw")

	sw, ok := r.control(types.KindSwitch, VerbInfo, nil).(types.ChannelInfo)
	require.True(t, ok)
	assert.True(t, sw.Output)
	assert.Empty(t, sw.SampFreq)
	assert.Equal(t, []string{"out_voltage2_raw"}, sw.Attrs)
}

func TestDevice_MissingDeviceReleasesClaim(t *testing.T) {
	r := newRig(t)
	r.dev.mu.Lock()
	r.dev.missing = true
	r.dev.mu.Unlock()

	st := r.configure(Params{Bus: "i2c1", Addr: 0x40})
	assert.Equal(t, string(errcode.DeviceNotFound), st.Error)
	_, held := r.reg.Owner("i2c1", 0x40)
	assert.False(t, held)
}

func TestDecodeParams(t *testing.T) {
	p, err := decodeParams(map[string]any{"bus": "i2c1", "addr": 64, "name": "desk", "sample_every_ms": "250"})
	require.NoError(t, err)
	assert.Equal(t, Params{Bus: "i2c1", Addr: 0x40, Name: "desk", SampleEveryMs: 250}, p)

	_, err = decodeParams(map[string]any{"bus": "i2c1", "adress": 64})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = decodeParams(nil)
	assert.Equal(t, errcode.InvalidParams, err)
}

func TestBuild_Validation(t *testing.T) {
	reg := hal.NewBusRegistry()
	reg.AddI2C("i2c1", &regBus{addr: 0x40, regs: map[byte]byte{}})
	in := hal.BuilderInput{ID: "x", Type: "hlampctl", Res: hal.Resources{Reg: reg}}

	for _, p := range []Params{{Addr: 0x40}, {Bus: "i2c1"}, {Bus: "i2c1", Addr: 0x80}} {
		in.Params = p
		_, err := builder{}.Build(context.Background(), in)
		assert.Equal(t, errcode.InvalidParams, err, "%+v", p)
	}

	in.Params = Params{Bus: "i2c1", Addr: 0x40}
	in.Type = "lm75"
	_, err := builder{}.Build(context.Background(), in)
	assert.Equal(t, errcode.Unsupported, err)
}
