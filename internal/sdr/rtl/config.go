package rtl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

const (
	// FrequencyMin and FrequencyMax bound the tuning range in MHz
	FrequencyMin = 24.0
	FrequencyMax = 1766.0

	GainMax = 50

	ModulationFM   Modulation = "fm"
	ModulationWBFM Modulation = "wbfm"
)

type Modulation string

func (m Modulation) String() string {
	return string(m)
}

// Preset is the per-mode demodulation setup
type Preset struct {
	Modulation Modulation
	SampleRate string // -s
	OutputRate string // -r
	ChunkSize  int    // bytes per read
	Options    []string
	FIRSize    int // -F, 0 disables
}

var presets = map[sdr.Mode]Preset{
	sdr.ModeTelemetryA: {ModulationWBFM, "60k", "48k", 4096, []string{"wav"}, 9},
	sdr.ModeTelemetryB: {ModulationWBFM, "240k", "48k", 16384, []string{"wav"}, 9},
	sdr.ModeAudio:      {ModulationFM, "200k", "44.1k", 4096, nil, 0},
	sdr.ModeScanAudio:  {ModulationFM, "24k", "32k", 4096, nil, 0},
}

var defaultFrequencies = map[sdr.Mode]float64{
	sdr.ModeTelemetryA: 137.5,
	sdr.ModeTelemetryB: 1694.1,
	sdr.ModeAudio:      98.5,
	sdr.ModeScanAudio:  460.5,
}

// PresetFor returns the demodulation preset of a mode
func PresetFor(mode sdr.Mode) (Preset, bool) {
	p, ok := presets[mode]
	return p, ok
}

// DefaultFrequency returns the frequency in MHz a mode tunes to when none is configured
func DefaultFrequency(mode sdr.Mode) float64 {
	return defaultFrequencies[mode]
}

// OutputRateHz returns the -r rate of a mode in Hz, used to set up playback
func OutputRateHz(mode sdr.Mode) int {
	p, ok := presets[mode]
	if !ok {
		return 0
	}
	hz, err := parseRate(p.OutputRate)
	if err != nil {
		return 0
	}
	return hz
}

// OutputRateHz returns the -r rate in Hz, the OutputRate override when set
// and the mode preset otherwise.
func (c *Config) OutputRateHz() int {
	if c.OutputRate == "" {
		return OutputRateHz(c.Mode)
	}
	hz, err := parseRate(c.OutputRate)
	if err != nil {
		return 0
	}
	return hz
}

func parseRate(s string) (int, error) {
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(v * mult), nil
}

type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("rtl.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("rtl.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration converts to time.Duration
func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) Validate() error {
	if d < 0 {
		return fmt.Errorf("rtl.TimeDuration: must not be negative: %s", time.Duration(d))
	}
	return nil
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

/*
Example: NOAA APT pass
    rtlConfig := rtl.Config{
        Frequency: 137.5,
        Mode:      sdr.ModeTelemetryA,
    }
    // Executes: rtl_fm -f 137.5e6 -M wbfm -s 60k -r 48k -d 0 -E wav -F 9 -

Example: broadcast FM
    rtlConfig := rtl.Config{
        Frequency: 98.5,
        Mode:      sdr.ModeAudio,
        Gain:      40,
    }
    // Executes: rtl_fm -f 98.5e6 -M fm -s 200k -r 44.1k -d 0 -g 40 -
*/

// Config is the `rtl_fm` tool configuration
type Config struct {
	// Required
	Frequency float64  `yaml:"frequency" json:"frequency"` // -f MHz
	Mode      sdr.Mode `yaml:"mode" json:"mode"`

	DeviceIndex int `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)

	Gain     int `yaml:"gain" json:"gain"`         // -g tuner_gain (default: automatic)
	PPMError int `yaml:"ppmError" json:"ppmError"` // -p ppm_error (default: 0)
	Squelch  int `yaml:"squelch" json:"squelch"`   // -l squelch_level (default: 0/off)

	// Overrides of the mode preset
	SampleRate string `yaml:"sampleRate" json:"sampleRate"` // -s
	OutputRate string `yaml:"outputRate" json:"outputRate"` // -r

	// Runtime is the rtl_fm binary; looked up in PATH when empty
	Runtime string `yaml:"runtime" json:"runtime"`
}

func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return driver.NewValidationError(fmt.Sprintf("rtl.Config: invalid mode: %s", c.Mode))
	}
	if c.Frequency < FrequencyMin || c.Frequency > FrequencyMax {
		return driver.NewValidationError(fmt.Sprintf("rtl.Config: frequency must be between %.0f and %.0f MHz: %f given", FrequencyMin, FrequencyMax, c.Frequency))
	}
	if c.DeviceIndex < 0 {
		return driver.NewValidationError(fmt.Sprintf("rtl.Config: device index must not be negative: %d", c.DeviceIndex))
	}
	if c.Gain < 0 || c.Gain > GainMax {
		return driver.NewValidationError(fmt.Sprintf("rtl.Config: gain must be between 0 and %d: %d given", GainMax, c.Gain))
	}
	if c.Squelch < 0 {
		return driver.NewValidationError(fmt.Sprintf("rtl.Config: squelch must not be negative: %d", c.Squelch))
	}
	for _, rate := range []string{c.SampleRate, c.OutputRate} {
		if rate == "" {
			continue
		}
		if hz, err := parseRate(rate); err != nil || hz <= 0 {
			return driver.NewValidationError(fmt.Sprintf("rtl.Config: invalid rate: %s", rate))
		}
	}

	return nil
}

// Args returns the command line arguments for `rtl_fm`
// See `man rtl_fm` for more information:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_fm.1.en.html
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := presets[c.Mode]

	sampleRate := p.SampleRate
	if c.SampleRate != "" {
		sampleRate = c.SampleRate
	}
	outputRate := p.OutputRate
	if c.OutputRate != "" {
		outputRate = c.OutputRate
	}

	args := []string{
		"-f", strconv.FormatFloat(c.Frequency, 'f', -1, 64) + "e6",
		"-M", p.Modulation.String(),
		"-s", sampleRate,
		"-r", outputRate,
	}

	args = append(args, "-d", strconv.Itoa(c.DeviceIndex)) // 0 is the default device index

	if c.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(c.Gain))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.Squelch > 0 {
		args = append(args, "-l", strconv.Itoa(c.Squelch))
	}

	for _, opt := range p.Options {
		args = append(args, "-E", opt)
	}

	if p.FIRSize > 0 {
		args = append(args, "-F", strconv.Itoa(p.FIRSize))
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
