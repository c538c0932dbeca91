package scanner

import (
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
	"github.com/roman-kulish/radio-receiver/internal/sdr/rtl"
)

const (
	// DefaultThreshold is the minimum quality of an active channel
	DefaultThreshold = 20.0

	// DefaultWrapPause is the pause between two sweeps
	DefaultWrapPause = 2 * time.Second

	// MinDwell is the shortest time spent on one frequency
	MinDwell = 100 * time.Millisecond

	// maxFrequencies bounds the number of steps in one sweep
	maxFrequencies = 100_000
)

// Config describes one sweep. Frequencies are in MHz.
type Config struct {
	Start     float64          `yaml:"start" json:"start"`
	End       float64          `yaml:"end" json:"end"`
	Step      float64          `yaml:"step" json:"step"`
	Dwell     rtl.TimeDuration `yaml:"dwell" json:"dwell"`
	Threshold float64          `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	WrapPause rtl.TimeDuration `yaml:"wrapPause,omitempty" json:"wrapPause,omitempty"`
}

// Validate validates the configuration. Zero threshold and wrap pause are
// replaced with their defaults.
func (c *Config) Validate() error {
	for _, v := range []float64{c.Start, c.End, c.Step, c.Threshold} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return driver.NewValidationError("scan parameters must be finite numbers")
		}
	}

	if c.Start <= 0 {
		return driver.NewValidationError(fmt.Sprintf("start frequency must be positive: %f", c.Start))
	}

	if c.Start >= c.End {
		return driver.NewValidationError(fmt.Sprintf("start frequency %f must be below end frequency %f", c.Start, c.End))
	}

	if c.Step <= 0 {
		return driver.NewValidationError(fmt.Sprintf("step must be positive: %f", c.Step))
	}

	if (c.End-c.Start)/c.Step >= maxFrequencies {
		return driver.NewValidationError(fmt.Sprintf("too many frequencies, at most %d are allowed", maxFrequencies))
	}

	if c.Dwell.Duration() < MinDwell {
		return driver.NewValidationError(fmt.Sprintf("dwell must be at least %s: %s", MinDwell, c.Dwell))
	}

	if c.Threshold < 0 || c.Threshold > 100 {
		return driver.NewValidationError(fmt.Sprintf("threshold must be between 0 and 100: %f", c.Threshold))
	}

	if err := c.WrapPause.Validate(); err != nil {
		return driver.NewValidationError(err.Error())
	}

	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}

	if c.WrapPause == 0 {
		c.WrapPause = rtl.NewTimeDuration(DefaultWrapPause)
	}

	return nil
}

// Frequencies returns start, start+step, ... up to and including end, each
// rounded to 1 Hz.
func Frequencies(start, end, step float64) []float64 {
	if step <= 0 || start > end {
		return nil
	}

	n := int(math.Floor((end-start)/step+1e-6)) + 1

	out := make([]float64, n)
	for i := range out {
		out[i] = roundHz(start + float64(i)*step)
	}
	return out
}

func roundHz(mhz float64) float64 {
	return math.Round(mhz*1e6) / 1e6
}
