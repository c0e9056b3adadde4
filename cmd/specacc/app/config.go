package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectral-accumulator/internal/pipeline"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr/hackrf"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr/rtl"
)

const (
	DeviceRTLSDR DeviceType = "rtl-sdr"
	DeviceHackRF DeviceType = "hackrf"
	DeviceTone   DeviceType = "tone"
	DeviceFile   DeviceType = "file"
)

type DeviceType string

// Config represents the main application configuration
type Config struct {
	Settings Settings        `yaml:"settings" json:"settings"`
	Device   DeviceConfig    `yaml:"device" json:"device"`
	Pipeline pipeline.Config `yaml:"pipeline" json:"pipeline"`
	Display  DisplayConfig   `yaml:"display" json:"display"`
	Sinks    SinksConfig     `yaml:"sinks" json:"sinks"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel" json:"logLevel"`
}

// DeviceConfig selects and configures the sample source. Config holds
// *rtl.Config, *hackrf.Config, *sdr.ToneConfig or *FileConfig depending
// on Type.
type DeviceConfig struct {
	Name   string     `yaml:"name" json:"name"`
	Type   DeviceType `yaml:"type" json:"type"`
	MTU    int        `yaml:"mtu" json:"mtu"`       // complex samples per block
	Serial string     `yaml:"serial" json:"serial"` // HackRF serial number
	Config any        `yaml:"config" json:"config"`
}

// FileConfig replays interleaved float32 I/Q from a file.
type FileConfig struct {
	Path            string  `yaml:"path" json:"path"`
	CenterFrequency float64 `yaml:"centerFrequency" json:"centerFrequency"`
	SampleRate      float64 `yaml:"sampleRate" json:"sampleRate"`
}

// DisplayConfig configures the WebSocket feed. An empty Addr disables it.
type DisplayConfig struct {
	Addr         string     `yaml:"addr" json:"addr"`
	ClientBuffer int        `yaml:"clientBuffer" json:"clientBuffer"`
	OmitHistory  bool       `yaml:"omitHistory" json:"omitHistory"`
	MDNS         MDNSConfig `yaml:"mdns" json:"mdns"`
}

type MDNSConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Name    string `yaml:"name" json:"name"`
}

// SinksConfig lists the outputs averaged spectra are written to.
type SinksConfig struct {
	File    *FileSinkConfig `yaml:"file" json:"file"`
	UDP     *UDPSinkConfig  `yaml:"udp" json:"udp"`
	Storage *StorageConfig  `yaml:"storage" json:"storage"`
}

type FileSinkConfig struct {
	Path   string `yaml:"path" json:"path"`
	Header bool   `yaml:"header" json:"header"` // prepend a filterbank header to a new file
}

type UDPSinkConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory" json:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize" json:"maxBatchSize"`
}

// LoadConfig reads, defaults and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	config.Pipeline = config.Pipeline.WithDefaults()
	if config.Device.Name == "" {
		config.Device.Name = string(config.Device.Type)
	}
	if config.Display.MDNS.Enabled && config.Display.MDNS.Name == "" {
		config.Display.MDNS.Name = config.Device.Name
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.Display.MDNS.Enabled && c.Display.Addr == "" {
		return errors.New("display: mdns requires a listen address")
	}
	if f := c.Sinks.File; f != nil && f.Path == "" {
		return errors.New("sinks: file path is required")
	}
	if u := c.Sinks.UDP; u != nil && u.Addr == "" {
		return errors.New("sinks: udp address is required")
	}
	if s := c.Sinks.Storage; s != nil && s.MaxBatchSize < 0 {
		return fmt.Errorf("sinks: invalid storage batch size: %d", s.MaxBatchSize)
	}
	return nil
}

func (d *DeviceConfig) Validate() error {
	if d.MTU < 0 {
		return fmt.Errorf("invalid MTU: %d", d.MTU)
	}

	switch c := d.Config.(type) {
	case *rtl.Config:
		return c.Validate()

	case *hackrf.Config:
		return c.Validate()

	case *sdr.ToneConfig:
		if c.SampleRate <= 0 {
			return fmt.Errorf("invalid tone sample rate: %v", c.SampleRate)
		}
		return nil

	case *FileConfig:
		if c.Path == "" {
			return errors.New("file path is required")
		}
		if c.SampleRate <= 0 {
			return fmt.Errorf("invalid file sample rate: %v", c.SampleRate)
		}
		return nil

	default:
		return fmt.Errorf("unknown type '%s'", d.Type)
	}
}

// UnmarshalYAML decodes the nested config node into the struct matching
// the device type.
func (d *DeviceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name   string     `yaml:"name"`
		Type   DeviceType `yaml:"type"`
		MTU    int        `yaml:"mtu"`
		Serial string     `yaml:"serial"`
		Config yaml.Node  `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var config any
	switch raw.Type {
	case DeviceRTLSDR:
		config = &rtl.Config{}
	case DeviceHackRF:
		config = &hackrf.Config{}
	case DeviceTone:
		config = &sdr.ToneConfig{}
	case DeviceFile:
		config = &FileConfig{}
	default:
		return fmt.Errorf("unknown device type '%s'", raw.Type)
	}

	if raw.Config.Kind != 0 {
		if err := raw.Config.Decode(config); err != nil {
			return fmt.Errorf("decoding %s config: %w", raw.Type, err)
		}
	}

	d.Name = raw.Name
	d.Type = raw.Type
	d.MTU = raw.MTU
	d.Serial = raw.Serial
	d.Config = config

	return nil
}
