package sdr

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Mode selects the processing pipeline applied to a capture session.
type Mode int

const (
	ModeTelemetryA Mode = iota + 1 // line-accumulating image decoder
	ModeTelemetryB                 // frame-blending image decoder
	ModeAudio                      // broadcast audio through the noise gate
	ModeScanAudio                  // narrow-band voice audio used by the scanner
)

var modeNames = map[Mode]string{
	ModeTelemetryA: "telemetry-a",
	ModeTelemetryB: "telemetry-b",
	ModeAudio:      "audio",
	ModeScanAudio:  "scan-audio",
}

// modeAliases are accepted at the configuration boundary only
var modeAliases = map[string]Mode{
	"noaa": ModeTelemetryA,
	"goes": ModeTelemetryB,
	"fm":   ModeAudio,
	"scan": ModeScanAudio,
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// IsAudio reports whether blocks of this mode carry raw PCM for playback
// rather than normalized samples for a decoder.
func (m Mode) IsAudio() bool {
	return m == ModeAudio || m == ModeScanAudio
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	if mode, ok := modeAliases[s]; ok {
		return mode, nil
	}
	return 0, fmt.Errorf("unknown mode '%s'", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// SampleBlock is one chunk read from the capture stream. Exactly one of
// Samples or PCM is set depending on the session mode. A block is never
// modified after it has been pushed to a buffer.
type SampleBlock struct {
	Seq       uint64
	Timestamp time.Time

	Samples []float64 // normalized to roughly [-0.5, 0.5]
	PCM     []byte    // signed 16-bit little-endian mono
}

// Len returns the number of samples carried by the block
func (b SampleBlock) Len() int {
	if b.PCM != nil {
		return len(b.PCM) / 2
	}
	return len(b.Samples)
}

// Handler describes an external capture tool configured for one session.
type Handler interface {
	Cmd() *exec.Cmd     // fresh, not yet started command
	Mode() Mode         // pipeline the output feeds
	Frequency() float64 // tuned frequency in MHz
	ChunkSize() int     // bytes per read
	Device() string
}

// Normalize maps unsigned 8-bit samples onto [-0.5, 0.5].
func Normalize(p []byte) []float64 {
	out := make([]float64, len(p))
	for i, b := range p {
		out[i] = (float64(b) - 127.5) / 255
	}
	return out
}
