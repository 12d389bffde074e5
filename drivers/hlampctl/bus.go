package hlampctl

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// Func is a transfer capability a bus adapter may advertise.
type Func uint32

const (
	// Plain I2C messages with repeated start.
	FuncI2C Func = 1 << iota
	// SMBus receive/send byte.
	FuncSMBusByte
	// SMBus read/write byte data.
	FuncSMBusByteData
)

// FuncChecker is implemented by buses that can report what their adapter
// supports. Buses that do not implement it are treated as plain I2C masters.
type FuncChecker interface {
	Supports(f Func) bool
}

func transportOK(bus drivers.I2C) bool {
	if bus == nil {
		return false
	}
	if fc, ok := bus.(FuncChecker); ok {
		return fc.Supports(FuncI2C)
	}
	return true
}

// guard owns the bus handle. The only way to reach it is do(), which holds
// the lock for exactly one transaction.
type guard struct {
	mu   sync.Mutex
	bus  drivers.I2C
	addr uint16

	// Fixed buffers, only touched under mu.
	w [2]byte
	r [1]byte
}

func (g *guard) do(fn func(bus drivers.I2C) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.bus)
}

// readByte issues an SMBus read-byte-data: register write, repeated start,
// one byte read.
func (g *guard) readByte(reg byte) (byte, error) {
	var v byte
	err := g.do(func(bus drivers.I2C) error {
		g.w[0] = reg
		if err := bus.Tx(g.addr, g.w[:1], g.r[:1]); err != nil {
			return err
		}
		v = g.r[0]
		return nil
	})
	if err != nil {
		return 0, busErr(err)
	}
	return v, nil
}

func (g *guard) writeByte(reg, val byte) error {
	err := g.do(func(bus drivers.I2C) error {
		g.w[0] = reg
		g.w[1] = val
		return bus.Tx(g.addr, g.w[:2], nil)
	})
	if err != nil {
		return busErr(err)
	}
	return nil
}

// probe receives one byte without addressing a register.
func (g *guard) probe() error {
	return g.do(func(bus drivers.I2C) error {
		return bus.Tx(g.addr, nil, g.r[:1])
	})
}

func busErr(err error) error {
	return fmt.Errorf("%w: %w", ErrBus, err)
}
