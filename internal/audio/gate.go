// Package audio plays captured PCM through an external player, optionally
// passing it through a noise gate first.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

const (
	// DefaultThreshold is the gate fraction of the block peak
	DefaultThreshold = 0.1

	// FadeDuration is the linear fade applied at block edges when gating
	FadeDuration = 5 * time.Millisecond
)

// GateConfig holds the noise gate settings. It may be updated from any
// goroutine while audio is playing; the last write wins.
type GateConfig struct {
	threshold atomic.Uint64 // math.Float64bits
	enabled   atomic.Bool
}

// GateSettings is a point-in-time view of a GateConfig
type GateSettings struct {
	Threshold float64 `json:"threshold"`
	Enabled   bool    `json:"enabled"`
}

// NewGateConfig returns a config with the given settings. The threshold is
// clamped to [0, 1].
func NewGateConfig(threshold float64, enabled bool) *GateConfig {
	g := &GateConfig{}
	g.threshold.Store(math.Float64bits(clampFraction(threshold)))
	g.enabled.Store(enabled)
	return g
}

// SetThreshold sets the fraction of the block peak below which samples are
// muted.
func (g *GateConfig) SetThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("gate threshold must be between 0 and 1: %f given", threshold)
	}
	g.threshold.Store(math.Float64bits(threshold))
	return nil
}

// SetEnabled enables or disables the gate. When disabled, blocks pass through.
func (g *GateConfig) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *GateConfig) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

func (g *GateConfig) Enabled() bool {
	return g.enabled.Load()
}

// Settings returns the current settings
func (g *GateConfig) Settings() GateSettings {
	return GateSettings{Threshold: g.Threshold(), Enabled: g.Enabled()}
}

// Update applies s
func (g *GateConfig) Update(s GateSettings) error {
	if err := g.SetThreshold(s.Threshold); err != nil {
		return err
	}
	g.SetEnabled(s.Enabled)
	return nil
}

func clampFraction(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}

// FadeLength returns the number of samples in a FadeDuration fade at rate Hz
func FadeLength(rate int) int {
	return rate * int(FadeDuration/time.Millisecond) / 1000
}

// Gate mutes every sample whose magnitude is at or below threshold × peak of
// the block and fades the block edges over fade samples. A zero threshold
// leaves the block untouched. Blocks not longer than fade are not faded.
func Gate(pcm []int16, threshold float64, fade int) []int16 {
	out := make([]int16, len(pcm))
	copy(out, pcm)

	if threshold <= 0 || len(out) == 0 {
		return out
	}

	var peak float64
	for _, s := range out {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak == 0 {
		return out
	}

	limit := clampFraction(threshold) * peak
	for i, s := range out {
		if math.Abs(float64(s)) <= limit {
			out[i] = 0
		}
	}

	if fade > 0 && len(out) > fade {
		n := len(out)
		for i := 0; i < fade; i++ {
			gain := float64(i) / float64(fade)
			out[i] = int16(float64(out[i]) * gain)
			out[n-1-i] = int16(float64(out[n-1-i]) * gain)
		}
	}

	return out
}

// Decode converts s16le bytes to samples. A trailing odd byte is dropped.
func Decode(p []byte) []int16 {
	out := make([]int16, len(p)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[i*2:]))
	}
	return out
}

// Encode converts samples to s16le bytes
func Encode(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
