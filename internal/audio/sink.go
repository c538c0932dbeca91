package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

// PlayerRuntime is the sox player used for audio output
const PlayerRuntime = "play"

// SinkFactory opens an audio output for mono s16le samples at rate Hz
type SinkFactory func(ctx context.Context, rate int) (io.WriteCloser, error)

// PlayerSink streams samples into the stdin of an external player process.
type PlayerSink struct {
	proc        *sdr.Process
	stdin       io.WriteCloser
	stopTimeout time.Duration
}

// PlayerArgs returns the player command line for rate Hz
func PlayerArgs(rate int) []string {
	return []string{"-r", strconv.Itoa(rate), "-t", "raw", "-e", "s", "-b", "16", "-c", "1", "-V1", "-"}
}

// NewPlayerFactory returns a SinkFactory running binPath, looked up in PATH
// when empty.
func NewPlayerFactory(binPath string) SinkFactory {
	return func(ctx context.Context, rate int) (io.WriteCloser, error) {
		bin := binPath
		if bin == "" {
			var err error
			if bin, err = driver.FindRuntime(PlayerRuntime); err != nil {
				return nil, fmt.Errorf("%w: %w", driver.ErrSpawnFailed, err)
			}
		}
		return NewPlayerSink(ctx, bin, rate)
	}
}

// NewPlayerSink starts the player. The player is stopped when ctx is done.
func NewPlayerSink(ctx context.Context, binPath string, rate int) (*PlayerSink, error) {
	if rate <= 0 {
		return nil, driver.NewValidationError(fmt.Sprintf("sample rate must be positive: %d", rate))
	}

	cmd := exec.Command(binPath, PlayerArgs(rate)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: creating stdin pipe: %w", driver.ErrSpawnFailed, err)
	}

	proc, err := sdr.StartProcess(cmd)
	if err != nil {
		return nil, err
	}

	s := &PlayerSink{proc: proc, stdin: stdin, stopTimeout: sdr.DefaultStopTimeout}

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-proc.Exited():
		}
	}()

	return s, nil
}

func (s *PlayerSink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Close ends the input stream and lets the player drain, killing it if it
// does not exit within the stop timeout.
func (s *PlayerSink) Close() error {
	err := s.stdin.Close()
	if errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}

	select {
	case <-s.proc.Exited():
		return err
	case <-time.After(s.stopTimeout):
	}

	return errors.Join(err, s.proc.Stop(s.stopTimeout))
}
