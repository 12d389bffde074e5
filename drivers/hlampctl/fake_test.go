package hlampctl

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errNack = errors.New("nack")

// fakeBus emulates the register file of one hlampctl and records traffic.
type fakeBus struct {
	mu     sync.Mutex
	regs   map[byte]byte
	writes [][]byte

	failProbe bool
	failRead  map[byte]bool
	failWrite bool

	// Concurrency instrumentation.
	inFlight  atomic.Int32
	overlaps  atomic.Int32
	holdFor   time.Duration
	txCounter atomic.Int32
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: map[byte]byte{}, failRead: map[byte]bool{}}
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.inFlight.Add(1) != 1 {
		f.overlaps.Add(1)
	}
	defer f.inFlight.Add(-1)
	f.txCounter.Add(1)
	if f.holdFor > 0 {
		time.Sleep(f.holdFor)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case len(w) == 0 && len(r) == 1:
		if f.failProbe {
			return errNack
		}
		r[0] = 0
	case len(w) == 1 && len(r) == 1:
		if f.failRead[w[0]] {
			return errNack
		}
		r[0] = f.regs[w[0]]
	case len(w) == 2 && len(r) == 0:
		if f.failWrite {
			return errNack
		}
		f.writes = append(f.writes, append([]byte(nil), w...))
		f.regs[w[0]] = w[1]
	default:
		return errors.New("unexpected transaction shape")
	}
	return nil
}

func (f *fakeBus) set(reg, v byte) {
	f.mu.Lock()
	f.regs[reg] = v
	f.mu.Unlock()
}

// funcBus adds an adapter capability report.
type funcBus struct {
	*fakeBus
	funcs Func
}

func (b funcBus) Supports(f Func) bool { return b.funcs&f != 0 }
