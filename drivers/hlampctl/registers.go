package hlampctl

// Register sub-addresses (8-bit registers, SMBus byte data).
const (
	regTemp   = 0x01 // R, raw temperature code
	regAnalog = 0x02 // R, 12-bit two's complement field
	regEnable = 0x03 // R/W, bit0 = lamp enable

	enableMask = 0x01
	analogMask = 0x0FFF
	analogSign = 11
)

// Device identity as seen by bus enumeration and the HAL registry.
const (
	Name        = "hlampctl"
	NumChannels = 3

	// SamplingFrequency is the nominal conversion rate reported for every
	// input channel. It is fixed in hardware.
	SamplingFrequency = 10

	// Analog scale: 3.3 V full range over 256 codes, expressed in nV per LSB.
	analogRangeNanoV  = 3_300_000_000
	analogCodes       = 256
	AnalogNanoVPerLSB = analogRangeNanoV / analogCodes // 12_890_625
)

// Kind is the physical role of a channel.
type Kind uint8

const (
	KindAnalog Kind = iota // analog voltage input
	KindTemp               // temperature input, raw code
	KindEnable             // digital enable output
)

func (k Kind) String() string {
	switch k {
	case KindAnalog:
		return "analog"
	case KindTemp:
		return "temperature"
	case KindEnable:
		return "enable"
	default:
		return "unknown"
	}
}

// Dir is the transfer direction of a channel. Output channels can also be
// read back.
type Dir uint8

const (
	DirIn Dir = iota
	DirOut
)

// InfoMask selects which attribute of a channel is read or written.
type InfoMask uint8

const (
	InfoRaw InfoMask = 1 << iota
	InfoScale
	InfoSampFreq
)

// Channel describes one logical endpoint of the device.
type Channel struct {
	Index int
	Kind  Kind
	Dir   Dir
	Reg   byte

	// Separate attributes exist per channel, Shared ones once per
	// (direction, type) pair.
	Separate InfoMask
	Shared   InfoMask
}

// Has reports whether the channel exposes the attribute at all.
func (c Channel) Has(m InfoMask) bool { return (c.Separate|c.Shared)&m != 0 }

var channels = [NumChannels]Channel{
	{Index: 0, Kind: KindAnalog, Dir: DirIn, Reg: regAnalog, Separate: InfoRaw | InfoScale, Shared: InfoSampFreq},
	{Index: 1, Kind: KindTemp, Dir: DirIn, Reg: regTemp, Separate: InfoRaw, Shared: InfoSampFreq},
	{Index: 2, Kind: KindEnable, Dir: DirOut, Reg: regEnable, Separate: InfoRaw},
}

// Channels returns a copy of the fixed channel table.
func Channels() [NumChannels]Channel { return channels }

func lookup(ch int) (Channel, bool) {
	if ch < 0 || ch >= NumChannels {
		return Channel{}, false
	}
	return channels[ch], true
}
