package audio

import (
	"slices"
	"sync"
	"testing"
)

func TestGate(t *testing.T) {
	block := []int16{1000, -200, 50, -1000, 300, 0, -999, 10}

	testCases := []struct {
		name      string
		input     []int16
		threshold float64
		expected  []int16
	}{
		{"zero threshold is identity", block, 0, block},
		{"all zero input stays zero", make([]int16, 8), 0.5, make([]int16, 8)},
		{"full threshold mutes everything", block, 1.0, make([]int16, 8)},
		{"quarter threshold", block, 0.25, []int16{1000, 0, 0, -1000, 300, 0, -999, 0}},
		{"empty block", nil, 0.5, []int16{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Gate(tc.input, tc.threshold, 0)
			if !slices.Equal(got, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestGate_DoesNotMutateInput(t *testing.T) {
	in := []int16{100, 5, -100}
	_ = Gate(in, 0.5, 0)
	if !slices.Equal(in, []int16{100, 5, -100}) {
		t.Errorf("Expected input untouched, got %v", in)
	}
}

func TestGate_Fade(t *testing.T) {
	in := make([]int16, 20)
	for i := range in {
		in[i] = 1000
	}

	out := Gate(in, 0.1, 4)
	if out[0] != 0 || out[len(out)-1] != 0 {
		t.Errorf("Expected faded edges to start at zero, got %d and %d", out[0], out[len(out)-1])
	}
	if out[2] != 500 {
		t.Errorf("Expected half gain two samples in, got %d", out[2])
	}
	if out[10] != 1000 {
		t.Errorf("Expected untouched middle, got %d", out[10])
	}

	short := Gate(in[:4], 0.1, 4)
	if !slices.Equal(short, in[:4]) {
		t.Errorf("Expected blocks not longer than the fade to skip fading, got %v", short)
	}
}

func TestFadeLength(t *testing.T) {
	if n := FadeLength(44100); n != 220 {
		t.Errorf("Expected 220, got %d", n)
	}
	if n := FadeLength(32000); n != 160 {
		t.Errorf("Expected 160, got %d", n)
	}
}

func TestEncodeDecode(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	if got := Decode(Encode(samples)); !slices.Equal(got, samples) {
		t.Errorf("Expected %v, got %v", samples, got)
	}
	if got := Decode([]byte{1, 0, 7}); !slices.Equal(got, []int16{1}) {
		t.Errorf("Expected trailing odd byte dropped, got %v", got)
	}
}

func TestGateConfig(t *testing.T) {
	g := NewGateConfig(3, true)
	if g.Threshold() != 1 {
		t.Errorf("Expected threshold clamped to 1, got %f", g.Threshold())
	}

	for _, v := range []float64{-0.1, 1.5} {
		if err := g.SetThreshold(v); err == nil {
			t.Errorf("Expected error for threshold %f", v)
		}
	}

	if err := g.Update(GateSettings{Threshold: 0.3, Enabled: false}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s := g.Settings(); s.Threshold != 0.3 || s.Enabled {
		t.Errorf("Expected {0.3 false}, got %+v", s)
	}
}

func TestGateConfig_ConcurrentUpdates(t *testing.T) {
	g := NewGateConfig(0.1, true)
	p := NewProcessor(g, WithSinkFactory(memoryFactory(&memorySink{})))

	block := Encode([]int16{1000, 10, -1000, 20})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = g.SetThreshold(float64(i%100) / 100)
			g.SetEnabled(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = p.Process(block)
		}
	}()
	wg.Wait()
}
