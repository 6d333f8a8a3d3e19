package racechrono

import (
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jd3nn1s/racechrono/monitor"
	"github.com/pkg/errors"
)

const defaultName = "RaceChrono DIY"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type EquationConfig struct {
	Expression string  `toml:"expression"`
	Scale      float64 `toml:"scale"`
}

type MonitorConfig struct {
	InitTimeout    duration         `toml:"init_timeout"`
	RefreshTimeout duration         `toml:"refresh_timeout"`
	ResetTimeout   duration         `toml:"reset_timeout"`
	Equations      []EquationConfig `toml:"equation"`
}

type SpoofConfig struct {
	Field string  `toml:"field"`
	ID    uint32  `toml:"id"`
	Scale float64 `toml:"scale"`
}

type Config struct {
	Name           string        `toml:"name"`
	ECUPort        string        `toml:"ecu_port"`
	GPSPort        string        `toml:"gps_port"`
	CANPort        string        `toml:"can_port"`
	ResendInterval duration      `toml:"resend_interval"`
	Monitor        MonitorConfig `toml:"monitor"`
	Spoof          []SpoofConfig `toml:"spoof"`
	Passthrough    []uint32      `toml:"passthrough"`
}

// LoadConfig reads the TOML configuration in fileName.
func LoadConfig(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return ParseConfig(file)
}

// ParseConfig decodes a TOML configuration and fills in defaults. Unknown
// keys and spoof fields are errors.
func ParseConfig(r io.Reader) (*Config, error) {
	config := Config{}
	md, err := toml.NewDecoder(r).Decode(&config)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load configuration")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown configuration key %s", undecoded[0])
	}

	if config.Name == "" {
		config.Name = defaultName
	}
	if config.ResendInterval.Duration == 0 {
		config.ResendInterval.Duration = defaultResendInterval
	}
	mc := &config.Monitor
	if mc.InitTimeout.Duration == 0 {
		mc.InitTimeout.Duration = monitor.DefaultInitTimeout
	}
	if mc.RefreshTimeout.Duration == 0 {
		mc.RefreshTimeout.Duration = monitor.DefaultRefreshTimeout
	}
	if mc.ResetTimeout.Duration == 0 {
		mc.ResetTimeout.Duration = monitor.DefaultResetTimeout
	}
	for i := range mc.Equations {
		if mc.Equations[i].Scale == 0 {
			mc.Equations[i].Scale = 1
		}
	}
	for _, s := range config.Spoof {
		if _, ok := telemetryFields[Field(s.Field)]; !ok {
			return nil, errors.Errorf("unknown spoof field %q", s.Field)
		}
	}
	return &config, nil
}

// Sources returns the telemetry sources to start.
func (c *Config) Sources() Sources {
	return Sources{
		ECUPort: c.ECUPort,
		GPSPort: c.GPSPort,
		CANPort: c.CANPort,
	}
}

// MonitorSettings returns the monitor timeouts and equations.
func (c *Config) MonitorSettings() (monitor.Config, []monitor.EquationConfig) {
	cfg := monitor.Config{
		InitTimeout:    c.Monitor.InitTimeout.Duration,
		RefreshTimeout: c.Monitor.RefreshTimeout.Duration,
		ResetTimeout:   c.Monitor.ResetTimeout.Duration,
	}
	eqs := make([]monitor.EquationConfig, len(c.Monitor.Equations))
	for i, eq := range c.Monitor.Equations {
		eqs[i] = monitor.EquationConfig{
			Expression: eq.Expression,
			Scale:      eq.Scale,
		}
	}
	return cfg, eqs
}

// SpoofMappings returns the telemetry fields to send as CAN frames.
func (c *Config) SpoofMappings() []SpoofMapping {
	mappings := make([]SpoofMapping, len(c.Spoof))
	for i, s := range c.Spoof {
		mappings[i] = SpoofMapping{
			Field: Field(s.Field),
			ID:    s.ID,
			Scale: s.Scale,
		}
	}
	return mappings
}
