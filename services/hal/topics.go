package hal

import (
	"hlampctl-go/bus"
	"hlampctl-go/types"
)

// Verbs handled by the HAL itself.
const (
	VerbRead      = "read"
	VerbPollStart = "poll_start"
	VerbPollStop  = "poll_stop"
)

func topicConfigHAL() bus.Topic { return bus.T("config", "hal") }
func topicHALState() bus.Topic  { return bus.T("hal", "state") }

// hal/cap/<domain>/<kind>/<name>/...
func capBase(a CapAddr) bus.Topic {
	return bus.T("hal", "cap", a.Domain, string(a.Kind), a.Name)
}

func capInfo(a CapAddr) bus.Topic   { return capBase(a).Append("info") }
func capStatus(a CapAddr) bus.Topic { return capBase(a).Append("status") }
func capValue(a CapAddr) bus.Topic  { return capBase(a).Append("value") }

// hal/cap/<domain>/<kind>/<name>/control/<verb>
func CapCtrl(a CapAddr, verb string) bus.Topic {
	return capBase(a).Append("control", verb)
}

// CapValue is exported for consumers that want to watch a capability.
func CapValue(a CapAddr) bus.Topic { return capValue(a) }

// CapStatus is exported for consumers that want to watch link state.
func CapStatus(a CapAddr) bus.Topic { return capStatus(a) }

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return bus.T("hal", "cap", "+", "+", "+", "control", "+")
}

// addrFromCtrl parses hal/cap/<domain>/<kind>/<name>/control/<verb>.
func addrFromCtrl(t bus.Topic) (CapAddr, string, bool) {
	if t.Len() != 7 {
		return CapAddr{}, "", false
	}
	domain, ok1 := t.At(2).(string)
	kind, ok2 := t.At(3).(string)
	name, ok3 := t.At(4).(string)
	verb, ok4 := t.At(6).(string)
	if !(ok1 && ok2 && ok3 && ok4) {
		return CapAddr{}, "", false
	}
	return CapAddr{Domain: domain, Kind: types.Kind(kind), Name: name}, verb, true
}
