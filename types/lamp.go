package types

// ---- Lamp controller capability payloads ----

// ChannelInfo is published retained on .../info for each channel.
type ChannelInfo struct {
	Channel  int      `json:"channel"`
	Register uint8    `json:"register"`
	Output   bool     `json:"output"`
	Scale    string   `json:"scale"`                        // e.g. "0.012890625"
	SampFreq string   `json:"sampling_frequency,omitempty"` // inputs only
	Attrs    []string `json:"attrs"`                        // sysfs-style names served by this channel
}

// VoltageValue is an analog input reading.
type VoltageValue struct {
	Raw   int32  `json:"raw"`   // sign-extended 12-bit code
	NanoV int64  `json:"nv"`    // Raw * scale
	Volts string `json:"volts"` // fixed-point rendering, e.g. "1.289062500"
}

// TemperatureValue is the raw temperature code; the device reports no scale.
type TemperatureValue struct {
	Raw int32 `json:"raw"`
}

type SwitchValue struct {
	On bool `json:"on"`
}

// SwitchSet is the control payload for .../switch/<name>/control/set.
type SwitchSet struct {
	On bool `json:"on"`
}

// AttrRead / AttrWrite address one sysfs-style attribute of a device.
type AttrRead struct {
	Name string `json:"name"`
}

type AttrWrite struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type AttrValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
