package hlampctldev

import (
	"context"

	"github.com/go-viper/mapstructure/v2"

	"hlampctl-go/drivers/hlampctl"
	"hlampctl-go/errcode"
	"hlampctl-go/services/hal"
	"hlampctl-go/types"
)

// Params defines wiring and naming for one lamp controller.
type Params struct {
	Bus  string `mapstructure:"bus"`  // e.g. "i2c1" (required)
	Addr uint16 `mapstructure:"addr"` // 7-bit address (required)

	Name   string `mapstructure:"name"`   // capability name; defaults to the device id
	Domain string `mapstructure:"domain"` // defaults to "lamp"

	// SampleEveryMs > 0 polls the voltage and temperature inputs.
	SampleEveryMs int `mapstructure:"sample_every_ms"`
}

const defaultDomain = "lamp"

func init() { hal.RegisterBuilder(hlampctl.Name, builder{}) }

type builder struct{}

func (builder) Build(_ context.Context, in hal.BuilderInput) (hal.Device, error) {
	if !hlampctl.Match(in.Type) {
		return nil, errcode.Unsupported
	}
	p, err := decodeParams(in.Params)
	if err != nil {
		return nil, err
	}
	if p.Bus == "" || p.Addr == 0 || p.Addr > 0x7F || p.SampleEveryMs < 0 {
		return nil, errcode.InvalidParams
	}
	if p.Domain == "" {
		p.Domain = defaultDomain
	}
	if p.Name == "" {
		p.Name = in.ID
	}

	i2c, err := in.Res.Reg.ClaimI2C(in.ID, hal.ResourceID(p.Bus), p.Addr)
	if err != nil {
		return nil, err
	}

	return &Device{
		id:     in.ID,
		params: p,
		res:    in.Res,
		i2c:    i2c,
		aVolt:  hal.CapAddr{Domain: p.Domain, Kind: types.KindVoltage, Name: p.Name},
		aTemp:  hal.CapAddr{Domain: p.Domain, Kind: types.KindTemperature, Name: p.Name},
		aSw:    hal.CapAddr{Domain: p.Domain, Kind: types.KindSwitch, Name: p.Name},
	}, nil
}

// decodeParams accepts Params, *Params or a generic map as produced by the
// config loader. Numeric strings such as "0x40" are accepted for addr.
func decodeParams(v any) (Params, error) {
	switch x := v.(type) {
	case Params:
		return x, nil
	case *Params:
		if x == nil {
			return Params{}, errcode.InvalidParams
		}
		return *x, nil
	case nil:
		return Params{}, errcode.InvalidParams
	}
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Params{}, err
	}
	if err := dec.Decode(v); err != nil {
		return Params{}, &errcode.E{C: errcode.InvalidParams, Op: "hlampctl params", Msg: err.Error(), Err: err}
	}
	return p, nil
}
