package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Profiles used when no config file is given. Key: profile name.
// Val: YAML in the same shape as a config file.
// -----------------------------------------------------------------------------

const cfgDefault = `
log:
  level: info
buses:
  - id: i2c1
    adapter: 1
hal:
  devices:
    - id: lamp0
      type: hlampctl
      params:
        bus: i2c1
        addr: 0x40
        sample_every_ms: 1000
`

var embeddedConfigs = map[string][]byte{
	"default": []byte(cfgDefault),
}
