package hal

import (
	"sync"

	"tinygo.org/x/drivers"

	"hlampctl-go/drivers/hlampctl"
	"hlampctl-go/errcode"
)

type ResourceID string // e.g. "i2c0"

// ResourceRegistry hands out bus access to devices.
//
// A claim is exclusive per (bus, address): while a device holds it no other
// device can talk to that address. Transactions from different addresses on
// the same bus are serialised by the registry.
type ResourceRegistry interface {
	ClaimI2C(devID string, id ResourceID, addr uint16) (drivers.I2C, error)
	ReleaseI2C(devID string, id ResourceID, addr uint16)
}

type claimKey struct {
	bus  ResourceID
	addr uint16
}

// BusRegistry is the default ResourceRegistry over a fixed set of buses.
type BusRegistry struct {
	mu     sync.Mutex
	buses  map[ResourceID]*sharedBus
	claims map[claimKey]string // -> devID
}

func NewBusRegistry() *BusRegistry {
	return &BusRegistry{
		buses:  map[ResourceID]*sharedBus{},
		claims: map[claimKey]string{},
	}
}

// AddI2C makes a bus available under id. Re-adding replaces the bus for
// future claims only.
func (r *BusRegistry) AddI2C(id ResourceID, bus drivers.I2C) {
	r.mu.Lock()
	r.buses[id] = &sharedBus{bus: bus}
	r.mu.Unlock()
}

func (r *BusRegistry) ClaimI2C(devID string, id ResourceID, addr uint16) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sb, ok := r.buses[id]
	if !ok {
		return nil, errcode.UnknownBus
	}
	k := claimKey{bus: id, addr: addr}
	if owner, taken := r.claims[k]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.claims[k] = devID
	return sb, nil
}

func (r *BusRegistry) ReleaseI2C(devID string, id ResourceID, addr uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := claimKey{bus: id, addr: addr}
	if r.claims[k] == devID {
		delete(r.claims, k)
	}
}

// Owner reports who holds (bus, addr), if anyone.
func (r *BusRegistry) Owner(id ResourceID, addr uint16) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.claims[claimKey{bus: id, addr: addr}]
	return o, ok
}

// sharedBus serialises all transactions on one adapter.
type sharedBus struct {
	mu  sync.Mutex
	bus drivers.I2C
}

func (s *sharedBus) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, w, r)
}

// Supports forwards the adapter capability report so drivers can still
// check it through the shared handle.
func (s *sharedBus) Supports(f hlampctl.Func) bool {
	if s.bus == nil {
		return false
	}
	if fc, ok := s.bus.(hlampctl.FuncChecker); ok {
		return fc.Supports(f)
	}
	return true
}
