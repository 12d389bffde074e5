package types

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`           // "idle", "ready", "stopped"
	Status string `json:"status"`          // freeform short code
	TS     int64  `json:"ts_ns"`           // publish Unix ns
	Error  string `json:"error,omitempty"` // last build failure, if any
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ns"`           // Unix ns
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Polling (control + declarative)
// ------------------------

type PollStart struct {
	Verb       string `json:"verb"`        // e.g. "read"
	IntervalMs uint32 `json:"interval_ms"` // >0
	JitterMs   uint16 `json:"jitter_ms"`   // uniform [0..JitterMs]
}

type PollStop struct {
	Verb string `json:"verb,omitempty"` // empty => "read"
}

type PollSpec struct {
	Domain     string `json:"domain" mapstructure:"domain"`
	Kind       Kind   `json:"kind" mapstructure:"kind"`
	Name       string `json:"name" mapstructure:"name"`
	Verb       string `json:"verb" mapstructure:"verb"`
	IntervalMs uint32 `json:"interval_ms" mapstructure:"interval_ms"`
	JitterMs   uint16 `json:"jitter_ms" mapstructure:"jitter_ms"`
}

// ------------------------
// HAL configuration
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices" mapstructure:"devices"`
	Pollers []PollSpec  `json:"pollers,omitempty" mapstructure:"pollers"`
}

type HALDevice struct {
	ID     string `json:"id" mapstructure:"id"`         // logical device id
	Type   string `json:"type" mapstructure:"type"`     // e.g. "hlampctl"
	Params any    `json:"params" mapstructure:"params"` // device-specific params
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ------------------------
// Info envelope (retained)
// ------------------------

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"` // one of *Info types
}
