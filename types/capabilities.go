package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindVoltage     Kind = "voltage"
	KindTemperature Kind = "temperature"
	KindSwitch      Kind = "switch"
)

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Domain string `json:"domain"` // e.g. "lamp"
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}
