// Package config loads the supervisory service's YAML configuration file
// (§6): server listen settings and the device list.
//
// Grounded on the teacher's internal/collector/config.go LoadYAML
// (gopkg.in/yaml.v3 unmarshal into tagged structs, then field validation and
// defaulting), generalised from the teacher's server/device schema to the
// §6 schema and quantity-aware fields.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"eurotherm-supervisor/internal/errs"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Devices []DeviceConfig `yaml:"devices"`
}

// ServerConfig describes the RPC listener.
type ServerConfig struct {
	IP      string `yaml:"ip"`
	Port    int    `yaml:"port"`
	Timeout string `yaml:"timeout"`
}

// DeviceConfig is the YAML-facing shape of model.DeviceConfig; quantities
// are given as "<number><unit>" strings (§6) and converted during Load.
type DeviceConfig struct {
	Name         string           `yaml:"name"`
	UnitAddress  uint8            `yaml:"unitAddress"`
	Connection   ConnectionConfig `yaml:"connection"`
	SamplingRate string           `yaml:"sampling_rate"`
	Driver       string           `yaml:"driver"`
}

// ConnectionConfig names the shared serial port a device is wired to.
type ConnectionConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`
}

// Loaded is the validated, unit-converted configuration ready for
// iomanager.New and the RPC server's listen address.
type Loaded struct {
	ServerIP      string
	ServerPort    int
	ServerTimeout quantity.Quantity
	Devices       []model.DeviceConfig
}

// Load reads and validates the YAML file at path. Unknown top-level keys are
// rejected via yaml.v3's KnownFields option; sampling_rate must be a
// positive frequency and the server timeout a positive time.
func Load(path string) (Loaded, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Loaded{}, &errs.ConfigError{Msg: "parse: " + err.Error()}
	}

	timeout, err := quantity.Parse(defaultString(cfg.Server.Timeout, "5s"))
	if err != nil {
		return Loaded{}, &errs.ConfigError{Msg: "server.timeout: " + err.Error()}
	}
	if timeout.Dimension() != quantity.Time || timeout.Base() <= 0 {
		return Loaded{}, &errs.ConfigError{Msg: "server.timeout must be a positive time"}
	}

	if len(cfg.Devices) == 0 {
		return Loaded{}, &errs.ConfigError{Msg: "no devices configured"}
	}

	seen := make(map[string]bool, len(cfg.Devices))
	devices := make([]model.DeviceConfig, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		if d.Name == "" {
			return Loaded{}, &errs.ConfigError{Msg: "device with empty name"}
		}
		if seen[d.Name] {
			return Loaded{}, &errs.ConfigError{Msg: fmt.Sprintf("duplicate device name %q", d.Name)}
		}
		seen[d.Name] = true

		rate, err := quantity.Parse(d.SamplingRate)
		if err != nil {
			return Loaded{}, &errs.ConfigError{Msg: fmt.Sprintf("device %q: sampling_rate: %v", d.Name, err)}
		}
		if rate.Dimension() != quantity.Frequency || rate.Base() <= 0 {
			return Loaded{}, &errs.ConfigError{Msg: fmt.Sprintf("device %q: sampling_rate must be a positive frequency", d.Name)}
		}

		kind := model.DriverKind(d.Driver)
		switch kind {
		case model.DriverSimulate, model.DriverGeneric, model.DriverModel3208:
		default:
			return Loaded{}, &errs.ConfigError{Msg: fmt.Sprintf("device %q: unknown driver %q", d.Name, d.Driver)}
		}

		devices = append(devices, model.DeviceConfig{
			Name:        d.Name,
			UnitAddress: d.UnitAddress,
			Connection: model.ConnectionConfig{
				Port:     d.Connection.Port,
				BaudRate: d.Connection.BaudRate,
			},
			SamplingRate: rate,
			Driver:       kind,
		})
	}

	return Loaded{
		ServerIP:      defaultString(cfg.Server.IP, "0.0.0.0"),
		ServerPort:    cfg.Server.Port,
		ServerTimeout: timeout,
		Devices:       devices,
	}, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
