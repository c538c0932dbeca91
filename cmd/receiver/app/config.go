package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-receiver/internal/decoder"
	"github.com/roman-kulish/radio-receiver/internal/notify"
	"github.com/roman-kulish/radio-receiver/internal/scanner"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/rtl"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultStorageDir = "data"
	defaultPollEvery  = 250 * time.Millisecond
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// NewDuration converts d for use in the configuration
func NewDuration(d time.Duration) rtl.TimeDuration {
	return rtl.NewTimeDuration(d)
}

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Device   rtl.Config     `yaml:"device"`
	Receive  ReceiveConfig  `yaml:"receive"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Gate     GateConfig     `yaml:"gate"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Storage  StorageConfig  `yaml:"storage"`
	API      APIConfig      `yaml:"api"`
	Notify   *notify.Config `yaml:"notify"`
	Output   OutputConfig   `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel  slog.Level       `yaml:"logLevel"`
	PollEvery rtl.TimeDuration `yaml:"pollEvery"`
}

// ReceiveConfig selects what to receive. Frequency defaults per mode.
type ReceiveConfig struct {
	Mode      sdr.Mode         `yaml:"mode"`
	Frequency float64          `yaml:"frequency"` // MHz
	Duration  rtl.TimeDuration `yaml:"duration"`
}

// DecoderConfig represents telemetry decoder settings. When neither
// EveryRows nor MinInterval is set the decoder default cadence applies.
type DecoderConfig struct {
	Theme       string           `yaml:"theme"`
	EveryRows   int              `yaml:"everyRows"`
	MinInterval rtl.TimeDuration `yaml:"minInterval"`
}

// GateConfig represents the audio noise gate and player settings
type GateConfig struct {
	Threshold float64 `yaml:"threshold"`
	Enabled   bool    `yaml:"enabled"`
	Player    string  `yaml:"player"` // sox play binary, looked up in PATH when empty
}

// ScannerConfig enables a sweep instead of a single reception
type ScannerConfig struct {
	Enabled        bool `yaml:"enabled"`
	Monitor        bool `yaml:"monitor"` // play each dwell through the gate
	scanner.Config `yaml:",inline"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// APIConfig represents the HTTP poll API settings; empty Addr disables it
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// OutputConfig controls where decoded frames are saved; empty Directory
// disables saving.
type OutputConfig struct {
	Directory string      `yaml:"directory"`
	Format    ImageFormat `yaml:"format"`
}

// LoadConfig reads the YAML configuration at path, applies overrides in
// order and validates the result.
func LoadConfig(path string, overrides ...func(c *Config) error) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	for _, override := range overrides {
		if err = override(&c); err != nil {
			return nil, err
		}
	}

	if err = c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Settings.PollEvery == 0 {
		c.Settings.PollEvery = NewDuration(defaultPollEvery)
	}
	if c.Settings.PollEvery < 0 {
		return fmt.Errorf("settings.pollEvery must be positive: %s", c.Settings.PollEvery)
	}

	if c.Scanner.Enabled {
		if err := c.Scanner.Validate(); err != nil {
			return fmt.Errorf("scanner: %w", err)
		}
		dev := c.Device
		dev.Mode = sdr.ModeScanAudio
		for _, frequency := range []float64{c.Scanner.Start, c.Scanner.End} {
			dev.Frequency = frequency
			if err := dev.Validate(); err != nil {
				return fmt.Errorf("device: %w", err)
			}
		}
	} else {
		if err := c.Receive.validate(); err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		dev := c.Device
		dev.Mode = c.Receive.Mode
		dev.Frequency = c.Receive.Frequency
		if err := dev.Validate(); err != nil {
			return fmt.Errorf("device: %w", err)
		}
	}

	if _, err := decoder.ParseColorTheme(c.Decoder.Theme); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if c.Decoder.EveryRows < 0 {
		return fmt.Errorf("decoder.everyRows must not be negative: %d", c.Decoder.EveryRows)
	}
	if err := c.Decoder.MinInterval.Validate(); err != nil {
		return fmt.Errorf("decoder.minInterval: %w", err)
	}
	if c.Decoder.EveryRows == 0 && c.Decoder.MinInterval == 0 {
		c.Decoder.EveryRows = decoder.DefaultCadence.EveryRows
		c.Decoder.MinInterval = NewDuration(decoder.DefaultCadence.MinInterval)
	}

	if c.Gate.Threshold < 0 || c.Gate.Threshold > 1 {
		return fmt.Errorf("gate.threshold must be between 0 and 1: %f given", c.Gate.Threshold)
	}

	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = defaultStorageDir
	}

	if c.Notify != nil {
		if err := c.Notify.Validate(); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}

	c.Output.Format = ImageFormat(strings.ToLower(string(c.Output.Format)))
	if c.Output.Format == "" {
		c.Output.Format = ImagePNG
	}
	if _, ok := validImageFormats[c.Output.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Output.Format)
	}

	return nil
}

func (r *ReceiveConfig) validate() error {
	if !r.Mode.Valid() {
		return errors.New("mode is required")
	}
	if r.Frequency == 0 {
		r.Frequency = rtl.DefaultFrequency(r.Mode)
	}
	return r.Duration.Validate()
}

// DecoderOptions returns the decoder options of the configuration
func (c *Config) DecoderOptions() []decoder.Option {
	theme, _ := decoder.ParseColorTheme(c.Decoder.Theme)

	return []decoder.Option{
		decoder.WithTheme(theme),
		decoder.WithCadence(decoder.CadencePolicy{
			EveryRows:   c.Decoder.EveryRows,
			MinInterval: c.Decoder.MinInterval.Duration(),
		}),
	}
}
