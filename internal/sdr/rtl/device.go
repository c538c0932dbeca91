package rtl

import (
	"fmt"
	"os/exec"

	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

const (
	Runtime = "rtl_fm"
	Device  = "RTL-SDR"
)

// handler struct represents an RTL-SDR handler
type handler struct {
	binPath   string
	args      []string
	mode      sdr.Mode
	frequency float64
	chunkSize int
}

// New creates a new RTL-SDR handler. The configuration is validated before
// the runtime is looked up.
func New(config *Config) (sdr.Handler, error) {
	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("error creating args: %w", err)
	}

	binPath := config.Runtime
	if binPath == "" {
		if binPath, err = driver.FindRuntime(Runtime); err != nil {
			return nil, fmt.Errorf("error finding runtime: %w", err)
		}
	}

	return &handler{
		binPath:   binPath,
		args:      args,
		mode:      config.Mode,
		frequency: config.Frequency,
		chunkSize: presets[config.Mode].ChunkSize,
	}, nil
}

// Cmd returns an exec.Cmd for the RTL-SDR handler
func (h handler) Cmd() *exec.Cmd {
	return exec.Command(h.binPath, h.args...)
}

func (h handler) Mode() sdr.Mode {
	return h.mode
}

func (h handler) Frequency() float64 {
	return h.frequency
}

func (h handler) ChunkSize() int {
	return h.chunkSize
}

func (h handler) Device() string {
	return Device
}
