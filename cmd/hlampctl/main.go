//go:build linux

// Command hlampctl talks to one lamp controller directly, without the HAL.
//
//	hlampctl [-b adapter] [-a addr] read <ch>
//	hlampctl [-b adapter] [-a addr] write <ch> <value>
//	hlampctl [-b adapter] [-a addr] attr <name> [value]
//	hlampctl [-b adapter] [-a addr] attrs
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"hlampctl-go/drivers/hlampctl"
	"hlampctl-go/drivers/i2cdev"
)

func main() {
	adapter := pflag.IntP("bus", "b", 1, "i2c-dev adapter number")
	addr := pflag.Uint16P("addr", "a", 0x40, "7-bit device address")
	verbose := pflag.BoolP("verbose", "v", false, "log bus activity")
	pflag.Parse()

	log := zap.NewNop()
	if *verbose {
		log, _ = zap.NewDevelopment()
	}
	defer log.Sync()

	if err := run(log, *adapter, *addr, pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "hlampctl:", err)
		os.Exit(1)
	}
}

func run(log *zap.Logger, adapter int, addr uint16, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command")
	}
	bus, err := i2cdev.Open(adapter)
	if err != nil {
		return err
	}
	defer bus.Close()
	log.Debug("adapter open", zap.String("path", i2cdev.Path(adapter)))

	dev, err := hlampctl.New(bus, hlampctl.Config{Address: addr})
	if err != nil {
		return err
	}
	log.Debug("device ready", zap.Uint16("addr", dev.Address()), zap.Stringer("state", dev.State()))

	switch cmd, rest := args[0], args[1:]; cmd {
	case "read":
		ch, err := channelArg(rest, 1)
		if err != nil {
			return err
		}
		v, err := dev.Read(ch)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case "write":
		ch, err := channelArg(rest, 2)
		if err != nil {
			return err
		}
		v, err := strconv.ParseInt(rest[1], 0, 32)
		if err != nil {
			return err
		}
		return dev.Write(ch, int32(v))
	case "attr":
		switch len(rest) {
		case 1:
			s, err := dev.ReadAttr(rest[0])
			if err != nil {
				return err
			}
			fmt.Println(s)
		case 2:
			return dev.WriteAttr(rest[0], rest[1])
		default:
			return fmt.Errorf("usage: attr <name> [value]")
		}
	case "attrs":
		for _, n := range hlampctl.AttrNames() {
			fmt.Println(n)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func channelArg(args []string, n int) (int, error) {
	if len(args) != n {
		return 0, fmt.Errorf("expected %d argument(s)", n)
	}
	return strconv.Atoi(args[0])
}
