// Package config loads the daemon configuration and publishes it on the bus.
package config

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hlampctl-go/bus"
	"hlampctl-go/services/heartbeat"
	"hlampctl-go/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	envPrefix    = "HLAMPCTL"
)

// EmbeddedConfigLookup allows overriding how profiles are resolved.
var EmbeddedConfigLookup = func(profile string) ([]byte, bool) {
	b, ok := embeddedConfigs[profile]
	return b, ok
}

type Config struct {
	Log       LogConfig        `mapstructure:"log"`
	Bus       BusConfig        `mapstructure:"bus"`
	Buses     []I2CConfig      `mapstructure:"buses"`
	HAL       types.HALConfig  `mapstructure:"hal"`
	Heartbeat heartbeat.Config `mapstructure:"heartbeat"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"` // debug|info|warn|error
	Development bool   `mapstructure:"development"`
}

type BusConfig struct {
	QueueLen int `mapstructure:"queue_len"`
}

// I2CConfig names one Linux i2c-dev adapter. Path overrides Adapter.
type I2CConfig struct {
	ID      string `mapstructure:"id"`
	Adapter int    `mapstructure:"adapter"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("bus.queue_len", 32)
	v.SetDefault("heartbeat.interval_s", 10)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	// HLAMPCTL_LOG_LEVEL=debug overrides log.level.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads a YAML config file. Environment variables with the HLAMPCTL_
// prefix override scalar keys.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v)
}

// LoadProfile reads one of the embedded profiles.
func LoadProfile(profile string) (*Config, error) {
	raw, ok := EmbeddedConfigLookup(profile)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("no embedded config for profile: %s", profile)
	}
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", profile, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross references between buses and devices.
func (c *Config) Validate() error {
	ids := map[string]bool{}
	for _, b := range c.Buses {
		if b.ID == "" {
			return fmt.Errorf("bus without id")
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate bus id %q", b.ID)
		}
		ids[b.ID] = true
	}
	devs := map[string]bool{}
	for _, d := range c.HAL.Devices {
		if d.ID == "" || d.Type == "" {
			return fmt.Errorf("device needs id and type")
		}
		if devs[d.ID] {
			return fmt.Errorf("duplicate device id %q", d.ID)
		}
		devs[d.ID] = true
	}
	return nil
}

// ZapLevel maps the configured level, defaulting to info.
func (l LogConfig) ZapLevel() zap.AtomicLevel {
	lvl, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return lvl
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

// ConfigService publishes each config section retained under config/<key>.
// The HAL picks up config/hal.
type ConfigService struct {
	Name string
	cfg  *Config
	log  *zap.Logger
}

func NewConfigService(cfg *Config, log *zap.Logger) *ConfigService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfigService{Name: serviceName, cfg: cfg, log: log.Named(serviceName)}
}

func (s *ConfigService) publishConfig(conn *bus.Connection) error {
	if s.cfg == nil {
		return fmt.Errorf("no config loaded")
	}
	sections := map[string]any{
		"hal":       s.cfg.HAL,
		"buses":     s.cfg.Buses,
		"log":       s.cfg.Log,
		"heartbeat": s.cfg.Heartbeat,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	s.log.Info("config published",
		zap.Int("devices", len(s.cfg.HAL.Devices)),
		zap.Int("buses", len(s.cfg.Buses)))
	return nil
}

// Start publishes the config once in the background.
func (s *ConfigService) Start(_ context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(conn); err != nil {
			s.log.Error("publish failed", zap.Error(err))
		}
	}()
}
