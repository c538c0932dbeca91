// Package quality turns a block of samples into a 0-100 signal quality score.
package quality

import (
	"encoding/binary"
	"math"
)

// Reference is the RMS amplitude that maps to a score of 100.
type Reference float64

const (
	// ReferenceTelemetry is used by the image decoders
	ReferenceTelemetry Reference = 0.35

	// ReferenceScanner is used when classifying scanned channels. It is lower
	// than ReferenceTelemetry so weak voice carriers still register.
	ReferenceScanner Reference = 0.1

	// noiseFloor is the amplitude substituted for an empty block
	noiseFloor = 0.01
)

// Estimate returns clamp(rms(samples) / ref * 100, 0, 100). An empty block
// yields the score of a low noise floor, never NaN.
func Estimate(samples []float64, ref Reference) float64 {
	if ref <= 0 {
		return 0
	}

	rms := noiseFloor
	if len(samples) > 0 {
		rms = RMS(samples)
	}

	return Clamp(rms / float64(ref) * 100)
}

// EstimatePCM scores signed 16-bit little-endian audio, scaled onto the same
// [-0.5, 0.5] range as normalized capture samples.
func EstimatePCM(pcm []byte, ref Reference) float64 {
	return Estimate(PCMToFloat(pcm), ref)
}

// RMS returns the root mean square of samples, 0 when empty
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// MeanAbs returns the mean absolute amplitude, 0 when empty
func MeanAbs(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += math.Abs(s)
	}
	return sum / float64(len(samples))
}

// Clamp limits a score to [0, 100]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 100)
}

// PCMToFloat decodes s16le audio into samples in [-0.5, 0.5). A trailing odd
// byte is ignored.
func PCMToFloat(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float64(v) / 65536
	}
	return out
}
