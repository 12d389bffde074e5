package hlampctl

import "strconv"

// ValFormat tells how the two halves of a Value combine.
type ValFormat uint8

const (
	ValInt         ValFormat = iota // Int only
	ValIntPlusNano                  // Int + Nano/1e9
)

const nanoPerUnit = 1_000_000_000

// Value is an integer-only physical quantity. For ValIntPlusNano both halves
// carry the sign of the whole value.
type Value struct {
	Int    int32
	Nano   int32
	Format ValFormat
}

// IntValue wraps a plain integer.
func IntValue(v int32) Value { return Value{Int: v, Format: ValInt} }

// nanoValue splits a quantity given in nano-units.
func nanoValue(n int64) Value {
	return Value{
		Int:    int32(n / nanoPerUnit),
		Nano:   int32(n % nanoPerUnit),
		Format: ValIntPlusNano,
	}
}

// Nanos returns the value scaled to nano-units.
func (v Value) Nanos() int64 {
	if v.Format == ValInt {
		return int64(v.Int) * nanoPerUnit
	}
	return int64(v.Int)*nanoPerUnit + int64(v.Nano)
}

// String renders the value the way sysfs attributes do: "12" or "0.012890625".
func (v Value) String() string {
	if v.Format == ValInt {
		return strconv.FormatInt(int64(v.Int), 10)
	}
	i, n := int64(v.Int), int64(v.Nano)
	neg := i < 0 || n < 0
	if i < 0 {
		i = -i
	}
	if n < 0 {
		n = -n
	}
	frac := strconv.FormatInt(n, 10)
	for len(frac) < 9 {
		frac = "0" + frac
	}
	s := strconv.FormatInt(i, 10) + "." + frac
	if neg {
		s = "-" + s
	}
	return s
}

// SignExtend12 interprets the low 12 bits of raw as two's complement.
func SignExtend12(raw uint32) int32 {
	const shift = 31 - analogSign
	return int32((raw&analogMask)<<shift) >> shift
}

// decode turns a register value into the channel's raw sample.
func decode(c Channel, raw uint32) int32 {
	switch c.Kind {
	case KindAnalog:
		return SignExtend12(raw)
	case KindEnable:
		return int32(raw & enableMask)
	default:
		return int32(raw)
	}
}

// encodeEnable maps any requested level onto the enable register.
func encodeEnable(v int32) byte {
	if v > 0 {
		return 1
	}
	return 0
}

// Scale returns the per-LSB scale of a channel. Only the analog input has a
// real scale (volts per LSB); the others report 1.
func Scale(c Channel) Value {
	if c.Kind == KindAnalog {
		return nanoValue(AnalogNanoVPerLSB)
	}
	return IntValue(1)
}

// Physical converts a raw sample using the channel scale. Analog samples
// come back in volts as Int + Nano; the others are returned unchanged.
func Physical(c Channel, raw int32) Value {
	if c.Kind == KindAnalog {
		return nanoValue(int64(raw) * AnalogNanoVPerLSB)
	}
	return IntValue(raw)
}

// ScaleAvailable lists the selectable analog scales.
func ScaleAvailable() string { return Scale(channels[0]).String() }

// SamplingFrequencyAvailable lists the selectable sampling frequencies.
func SamplingFrequencyAvailable() string { return strconv.Itoa(SamplingFrequency) }
