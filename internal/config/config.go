// Package config loads the receiver daemon configuration from a YAML file.
// Command-line flags are layered on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/gpio"
)

// Config is the daemon configuration.
type Config struct {
	GPIO      GPIOConfig    `yaml:"gpio"`
	Decoder   DecoderConfig `yaml:"decoder"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTPAddr  string        `yaml:"http"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Logs      LogConfig     `yaml:"logs"`
}

// GPIOConfig describes how the receiver module is wired.
type GPIOConfig struct {
	Chip   string    `yaml:"chip"`
	Pin    int       `yaml:"pin"`
	Bias   gpio.Bias `yaml:"bias"`
	Invert bool      `yaml:"invert"`
	Buffer int       `yaml:"buffer"`
}

// DecoderConfig tunes the decoder.
type DecoderConfig struct {
	Strict       bool   `yaml:"strict"`
	SpikeLimitUs uint32 `yaml:"spikeLimitUs"`
}

// MQTTConfig selects the broker. An empty broker disables publishing.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"clientID"`
	BufferSize int    `yaml:"bufferSize"`
}

// LogConfig enables a rotating log file in addition to stderr.
// An empty File logs to stderr only.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		GPIO: GPIOConfig{
			Chip:   gpio.DefaultChip,
			Pin:    gpio.DefaultPin,
			Bias:   gpio.BiasPullUp,
			Buffer: 256,
		},
		Decoder: DecoderConfig{
			SpikeLimitUs: dcf77.DefaultSpikeLimit,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			ClientID:   "dcf77-receiver",
			BufferSize: 100,
		},
		HTTPAddr:  ":80",
		Heartbeat: 15 * time.Minute,
		Logs: LogConfig{
			MaxSizeMB:  10,
			MaxAgeDays: 7,
			MaxBackups: 5,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r into cfg and validates the result.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.GPIO.Pin < 0 {
		return fmt.Errorf("gpio.pin: %d is negative", c.GPIO.Pin)
	}
	switch c.GPIO.Bias {
	case gpio.BiasNone, gpio.BiasPullUp, gpio.BiasPullDown, "":
	default:
		return fmt.Errorf("gpio.bias: unknown value %q", c.GPIO.Bias)
	}
	if c.GPIO.Buffer <= 0 {
		return fmt.Errorf("gpio.buffer: must be positive, got %d", c.GPIO.Buffer)
	}
	if c.Decoder.SpikeLimitUs >= dcf77.ActiveLimit {
		return fmt.Errorf("decoder.spikeLimitUs: %w", dcf77.ErrSpikeLimit)
	}
	if c.MQTT.BufferSize <= 0 {
		return fmt.Errorf("mqtt.bufferSize: must be positive, got %d", c.MQTT.BufferSize)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat: %v is negative", c.Heartbeat)
	}
	return nil
}
