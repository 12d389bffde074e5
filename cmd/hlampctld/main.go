//go:build linux

// Command hlampctld runs the lamp controller HAL on Linux i2c-dev adapters.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"hlampctl-go/bus"
	"hlampctl-go/drivers/i2cdev"
	"hlampctl-go/services/config"
	"hlampctl-go/services/hal"
	"hlampctl-go/services/heartbeat"
	"hlampctl-go/types"

	_ "hlampctl-go/services/hal/devices/hlampctl"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "", "YAML config file")
	profile := pflag.String("profile", "default", "embedded profile used when --config is empty")
	pflag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		cfg, err = config.LoadProfile(*profile)
	}
	if err != nil {
		// No config, no log level: fall back to a production logger.
		l, _ := zap.NewProduction()
		l.Fatal("Failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("device types", zap.Strings("types", hal.Types()))

	reg := hal.NewBusRegistry()
	for _, bc := range cfg.Buses {
		path := bc.Path
		if path == "" {
			path = i2cdev.Path(bc.Adapter)
		}
		adapter, err := i2cdev.OpenPath(path)
		if err != nil {
			logger.Fatal("Failed to open bus", zap.String("bus", bc.ID), zap.Error(err))
		}
		defer adapter.Close()
		reg.AddI2C(hal.ResourceID(bc.ID), adapter)
		logger.Info("bus ready", zap.String("bus", bc.ID), zap.String("path", path))
	}

	b := bus.NewBus(cfg.Bus.QueueLen)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hal.NewHAL(b.NewConnection("hal"), hal.Resources{Reg: reg}, logger)
	halDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(halDone)
	}()

	go monitor(ctx, b.NewConnection("monitor"), logger.Named("monitor"))
	heartbeat.New(logger).Start(ctx, b.NewConnection("heartbeat"))

	config.NewConfigService(cfg, logger).Start(ctx, b.NewConnection("config"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	cancel()
	select {
	case <-halDone:
	case <-time.After(2 * time.Second):
		logger.Warn("HAL did not stop in time")
	}
}

func newLogger(lc config.LogConfig) *zap.Logger {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lc.ZapLevel()
	l, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// anyCap matches every capability when used in a subscription.
var anyCap = hal.CapAddr{Domain: "+", Kind: "+", Name: "+"}

// monitor logs capability traffic: values at debug, link changes at info.
func monitor(ctx context.Context, conn *bus.Connection, log *zap.Logger) {
	values := conn.Subscribe(hal.CapValue(anyCap))
	status := conn.Subscribe(hal.CapStatus(anyCap))
	state := conn.Subscribe(bus.T("hal", "state"))
	defer conn.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-values.Channel():
			log.Debug("value", zap.Stringer("topic", m.Topic), zap.Any("payload", m.Payload))
		case m := <-status.Channel():
			if st, ok := m.Payload.(types.CapabilityStatus); ok {
				log.Info("link",
					zap.Stringer("topic", m.Topic),
					zap.String("link", string(st.Link)),
					zap.String("error", st.Error))
			}
		case m := <-state.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				log.Info("hal", zap.String("level", st.Level), zap.String("status", st.Status), zap.String("error", st.Error))
			}
		}
	}
}
