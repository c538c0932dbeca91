package sdr

import "testing"

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"telemetry-a", ModeTelemetryA, false},
		{"noaa", ModeTelemetryA, false},
		{"GOES", ModeTelemetryB, false},
		{"fm", ModeAudio, false},
		{" scan ", ModeScanAudio, false},
		{"scan-audio", ModeScanAudio, false},
		{"am", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if mode != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, mode)
			}
		})
	}
}

func TestMode_TextRoundTrip(t *testing.T) {
	var m Mode
	if err := m.UnmarshalText([]byte("goes")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text, err := m.MarshalText()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(text) != "telemetry-b" {
		t.Errorf("Expected telemetry-b, got %s", text)
	}

	if _, err := Mode(99).MarshalText(); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestMode_IsAudio(t *testing.T) {
	if ModeTelemetryA.IsAudio() || ModeTelemetryB.IsAudio() {
		t.Error("Telemetry modes must not be audio")
	}
	if !ModeAudio.IsAudio() || !ModeScanAudio.IsAudio() {
		t.Error("Audio modes must be audio")
	}
}

func TestNormalize(t *testing.T) {
	out := Normalize([]byte{0, 255})
	if out[0] != -0.5 || out[1] != 0.5 {
		t.Errorf("Expected [-0.5 0.5], got %v", out)
	}
	if len(Normalize(nil)) != 0 {
		t.Error("Expected empty output for empty input")
	}
}
