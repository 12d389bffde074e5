package hlampctl

import (
	"sort"
	"strconv"
	"strings"
)

// ReadRaw is the framework read entry point: raw sample, scale or sampling
// frequency of a channel.
func (d *Device) ReadRaw(ch int, m InfoMask) (Value, error) {
	c, ok := lookup(ch)
	if !ok {
		return Value{}, ErrInvalidChannel
	}
	switch m {
	case InfoRaw:
		v, err := d.Read(ch)
		if err != nil {
			return Value{}, err
		}
		return IntValue(v), nil
	case InfoScale:
		return Scale(c), nil
	case InfoSampFreq:
		return IntValue(SamplingFrequency), nil
	default:
		return Value{}, ErrInvalidInfo
	}
}

// WriteRaw is the framework write entry point. Only the raw value of the
// enable output is writable.
func (d *Device) WriteRaw(ch int, v Value, m InfoMask) error {
	if _, ok := lookup(ch); !ok {
		return ErrInvalidChannel
	}
	switch m {
	case InfoRaw:
		return d.Write(ch, v.Int)
	case InfoScale, InfoSampFreq:
		return ErrReadOnlyAttr
	default:
		return ErrInvalidInfo
	}
}

// WriteRawFormat tells the framework how to parse a value written to an
// attribute.
func WriteRawFormat(ch int, m InfoMask) (ValFormat, error) {
	c, ok := lookup(ch)
	if !ok {
		return ValInt, ErrInvalidChannel
	}
	switch m {
	case InfoRaw, InfoSampFreq:
		return ValInt, nil
	case InfoScale:
		return Scale(c).Format, nil
	default:
		return ValInt, ErrInvalidInfo
	}
}

// SetSamplingFrequency always fails: the rate is fixed in hardware.
func (d *Device) SetSamplingFrequency(int32) error { return ErrReadOnlyAttr }

// ---- sysfs-style attribute surface ----

// Device-level attributes.
const (
	AttrName                       = "name"
	AttrSamplingFrequencyAvailable = "sampling_frequency_available"
	AttrVoltageScaleAvailable      = "in_voltage_scale_available"
)

type attrRef struct {
	ch int
	m  InfoMask
}

var infoNames = map[InfoMask]string{
	InfoRaw:      "raw",
	InfoScale:    "scale",
	InfoSampFreq: "sampling_frequency",
}

func channelPrefix(c Channel) string {
	dir := "in"
	if c.Dir == DirOut {
		dir = "out"
	}
	typ := "voltage"
	if c.Kind == KindTemp {
		typ = "temp"
	}
	return dir + "_" + typ
}

// attrTable maps every channel attribute name onto the channel that serves it.
// Shared attributes resolve to the first channel of their (dir, type) pair.
var attrTable = buildAttrTable()

func buildAttrTable() map[string]attrRef {
	t := map[string]attrRef{}
	for _, c := range channels {
		p := channelPrefix(c)
		for m, n := range infoNames {
			if c.Separate&m != 0 {
				t[p+strconv.Itoa(c.Index)+"_"+n] = attrRef{ch: c.Index, m: m}
			}
			if c.Shared&m != 0 {
				k := p + "_" + n
				if _, dup := t[k]; !dup {
					t[k] = attrRef{ch: c.Index, m: m}
				}
			}
		}
	}
	return t
}

// AttrNames lists all attributes in sorted order.
func AttrNames() []string {
	out := []string{AttrName, AttrSamplingFrequencyAvailable, AttrVoltageScaleAvailable}
	for k := range attrTable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AttrChannel returns the channel serving an attribute, or -1 for
// device-level and unknown names.
func AttrChannel(name string) int {
	if ref, ok := attrTable[name]; ok {
		return ref.ch
	}
	return -1
}

// ReadAttr renders an attribute the way sysfs would, without the trailing
// newline.
func (d *Device) ReadAttr(name string) (string, error) {
	switch name {
	case AttrName:
		return d.name, nil
	case AttrSamplingFrequencyAvailable:
		return SamplingFrequencyAvailable(), nil
	case AttrVoltageScaleAvailable:
		return ScaleAvailable(), nil
	}
	ref, ok := attrTable[name]
	if !ok {
		return "", ErrInvalidInfo
	}
	v, err := d.ReadRaw(ref.ch, ref.m)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// WriteAttr parses and stores an attribute value.
func (d *Device) WriteAttr(name, val string) error {
	switch name {
	case AttrName, AttrSamplingFrequencyAvailable, AttrVoltageScaleAvailable:
		return ErrReadOnlyAttr
	}
	ref, ok := attrTable[name]
	if !ok {
		return ErrInvalidInfo
	}
	if ref.m != InfoRaw {
		return ErrReadOnlyAttr
	}
	f, err := WriteRawFormat(ref.ch, ref.m)
	if err != nil {
		return err
	}
	v, err := parseValue(strings.TrimSpace(val), f)
	if err != nil {
		return err
	}
	return d.WriteRaw(ref.ch, v, ref.m)
}

func parseValue(s string, f ValFormat) (Value, error) {
	if f == ValInt {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, err
		}
		return IntValue(int32(n)), nil
	}
	neg := strings.HasPrefix(s, "-")
	ip, fp, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	// Only one leading sign, and digits only after the point.
	if hasSign(ip) || hasSign(fp) {
		return Value{}, &strconv.NumError{Func: "parseValue", Num: s, Err: strconv.ErrSyntax}
	}
	i, err := strconv.ParseInt(ip, 10, 32)
	if err != nil {
		return Value{}, err
	}
	var n int64
	if fp != "" {
		if len(fp) > 9 {
			fp = fp[:9]
		}
		fp += strings.Repeat("0", 9-len(fp))
		if n, err = strconv.ParseInt(fp, 10, 32); err != nil {
			return Value{}, err
		}
	}
	if neg {
		i, n = -i, -n
	}
	return Value{Int: int32(i), Nano: int32(n), Format: ValIntPlusNano}, nil
}

func hasSign(s string) bool {
	return strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+")
}
