package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/decoder"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
device:
  gain: 40
receive:
  mode: noaa
decoder:
  theme: thermal
  everyRows: 8
  minInterval: 2s
output:
  directory: images
  format: JPEG
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if c.Settings.LogLevel != slog.LevelDebug {
		t.Errorf("Expected debug log level, got %s", c.Settings.LogLevel)
	}
	if c.Settings.PollEvery.Duration() != defaultPollEvery {
		t.Errorf("Expected poll interval %s, got %s", defaultPollEvery, c.Settings.PollEvery)
	}
	if c.Receive.Mode != sdr.ModeTelemetryA {
		t.Errorf("Expected mode telemetry-a, got %s", c.Receive.Mode)
	}
	if c.Receive.Frequency != 137.5 {
		t.Errorf("Expected default frequency 137.5, got %f", c.Receive.Frequency)
	}
	if c.Device.Gain != 40 {
		t.Errorf("Expected gain 40, got %d", c.Device.Gain)
	}
	if c.Decoder.EveryRows != 8 || c.Decoder.MinInterval.Duration() != 2*time.Second {
		t.Errorf("Unexpected decoder config: %+v", c.Decoder)
	}
	if c.Storage.DataDirectory != defaultStorageDir {
		t.Errorf("Expected storage directory %s, got %s", defaultStorageDir, c.Storage.DataDirectory)
	}
	if c.Output.Format != ImageJPEG {
		t.Errorf("Expected jpeg format, got %s", c.Output.Format)
	}
	if c.Notify != nil {
		t.Errorf("Expected notify disabled, got %+v", c.Notify)
	}
	if len(c.DecoderOptions()) != 2 {
		t.Errorf("Expected 2 decoder options, got %d", len(c.DecoderOptions()))
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
receive:
  mode: telemetry-a
  frequency: 137.1
`)

	c, err := LoadConfig(path, func(c *Config) error {
		c.Receive.Mode = sdr.ModeAudio
		c.Receive.Frequency = 0
		c.Receive.Duration = NewDuration(time.Minute)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if c.Receive.Mode != sdr.ModeAudio || c.Receive.Frequency != 98.5 {
		t.Errorf("Expected audio on 98.5, got %s on %f", c.Receive.Mode, c.Receive.Frequency)
	}
	if c.Receive.Duration.Duration() != time.Minute {
		t.Errorf("Expected 1m duration, got %s", c.Receive.Duration)
	}
}

func TestLoadConfig_DefaultCadence(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "receive:\n  mode: noaa\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if c.Decoder.EveryRows != decoder.DefaultCadence.EveryRows {
		t.Errorf("Expected every %d rows, got %d", decoder.DefaultCadence.EveryRows, c.Decoder.EveryRows)
	}
	if c.Decoder.MinInterval.Duration() != decoder.DefaultCadence.MinInterval {
		t.Errorf("Expected min interval %s, got %s", decoder.DefaultCadence.MinInterval, c.Decoder.MinInterval)
	}
}

func TestLoadConfig_Scanner(t *testing.T) {
	path := writeConfig(t, `
scanner:
  enabled: true
  monitor: true
  start: 450
  end: 450.05
  step: 0.0125
  dwell: 1s
notify:
  broker: localhost:1883
  topic: sdr
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !c.Scanner.Enabled || !c.Scanner.Monitor {
		t.Errorf("Expected scanner enabled with monitor, got %+v", c.Scanner)
	}
	if c.Scanner.Start != 450 || c.Scanner.Step != 0.0125 || c.Scanner.Dwell.Duration() != time.Second {
		t.Errorf("Unexpected scanner config: %+v", c.Scanner.Config)
	}
	if c.Scanner.Threshold == 0 {
		t.Error("Expected the default scanner threshold")
	}
	if c.Notify == nil || c.Notify.ClientID == "" {
		t.Errorf("Expected notify config with a client ID, got %+v", c.Notify)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"no mode", "receive:\n  frequency: 137.5\n"},
		{"unknown mode", "receive:\n  mode: dab\n"},
		{"frequency out of range", "receive:\n  mode: audio\n  frequency: 5000\n"},
		{"bad theme", "receive:\n  mode: goes\ndecoder:\n  theme: neon\n"},
		{"bad format", "receive:\n  mode: goes\noutput:\n  format: gif\n"},
		{"gate threshold", "receive:\n  mode: fm\ngate:\n  threshold: 2\n"},
		{"negative rows", "receive:\n  mode: noaa\ndecoder:\n  everyRows: -1\n"},
		{"bad duration", "receive:\n  mode: noaa\n  duration: soon\n"},
		{"scanner range", "scanner:\n  enabled: true\n  start: 460\n  end: 450\n  step: 0.0125\n  dwell: 1s\n"},
		{"scanner end beyond tuner", "scanner:\n  enabled: true\n  start: 1760\n  end: 1800\n  step: 10\n  dwell: 1s\n"},
		{"notify without broker", "receive:\n  mode: noaa\nnotify:\n  topic: sdr\n"},
		{"malformed", "receive: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.content)); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
