//go:build linux

// Package i2cdev is a tinygo drivers.I2C implementation on top of the Linux
// i2c-dev character devices (/dev/i2c-N).
//
// Every Tx is issued as one I2C_RDWR ioctl, so a write followed by a read is
// sent with a repeated start and without releasing the bus in between.
package i2cdev

import (
	"runtime"
	"strconv"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"hlampctl-go/drivers/hlampctl"
)

// ioctl requests and flags from <linux/i2c-dev.h> and <linux/i2c.h>.
const (
	ioctlFuncs = 0x0705 // I2C_FUNCS
	ioctlRDWR  = 0x0707 // I2C_RDWR

	msgRead = 0x0001 // I2C_M_RD

	funcI2C           = 0x00000001 // I2C_FUNC_I2C
	funcSMBusByte     = 0x00060000 // I2C_FUNC_SMBUS_BYTE
	funcSMBusByteData = 0x00180000 // I2C_FUNC_SMBUS_BYTE_DATA
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrData mirrors struct i2c_rdwr_ioctl_data.
type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an open i2c-dev adapter.
type Bus struct {
	mu    sync.Mutex
	path  string
	fd    int
	funcs uintptr
}

// Path returns the device node for adapter n.
func Path(n int) string { return "/dev/i2c-" + strconv.Itoa(n) }

// Open opens adapter n and queries its functionality once.
func Open(n int) (*Bus, error) {
	return OpenPath(Path(n))
}

// OpenPath opens an adapter by device node.
func OpenPath(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	b := &Bus{path: path, fd: fd}
	if err := b.ioctl(ioctlFuncs, uintptr(unsafe.Pointer(&b.funcs))); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "I2C_FUNCS %s", path)
	}
	return b, nil
}

// Supports reports adapter functionality as returned by I2C_FUNCS.
func (b *Bus) Supports(f hlampctl.Func) bool {
	var want uintptr
	if f&hlampctl.FuncI2C != 0 {
		want |= funcI2C
	}
	if f&hlampctl.FuncSMBusByte != 0 {
		want |= funcSMBusByte
	}
	if f&hlampctl.FuncSMBusByteData != 0 {
		want |= funcSMBusByteData
	}
	return want != 0 && b.funcs&want == want
}

// Tx performs a write, a read, or a write followed by a repeated-start read.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	var msgs [2]i2cMsg
	n := 0
	if len(w) > 0 {
		msgs[n] = i2cMsg{addr: addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))}
		n++
	}
	if len(r) > 0 {
		msgs[n] = i2cMsg{addr: addr, flags: msgRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
		n++
	}
	if n == 0 {
		return nil
	}
	data := i2cRdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(n)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return errors.Errorf("%s: closed", b.path)
	}
	err := b.ioctl(ioctlRDWR, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(&msgs)
	if err != nil {
		return errors.Wrapf(err, "%s addr 0x%02x", b.path, addr)
	}
	return nil
}

// Close releases the file descriptor. Further Tx calls fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

func (b *Bus) ioctl(req, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
