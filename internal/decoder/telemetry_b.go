package decoder

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/quality"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
)

const (
	// DefaultFrameSize is the edge of the square Telemetry-B frame
	DefaultFrameSize = 800

	blendNew = 0.2
	blendOld = 1 - blendNew

	scanLineSpacing = 15
)

var (
	backgroundColor = color.RGBA{R: 20, G: 20, B: 50, A: 255}
	markerColor     = color.RGBA{G: 255, B: 255, A: 255}
)

// TelemetryB renders a synthetic frame per block and blends it into a
// fixed size buffer. It emits on every block.
type TelemetryB struct {
	opts      options
	annotator *Annotator
	rng       *rand.Rand

	buffer *image.RGBA
	seq    uint64
}

func newTelemetryB(o options, annotator *Annotator, rng *rand.Rand) *TelemetryB {
	return &TelemetryB{
		opts:      o,
		annotator: annotator,
		rng:       rng,
	}
}

func (d *TelemetryB) Mode() sdr.Mode {
	return sdr.ModeTelemetryB
}

// Decode never withholds a frame
func (d *TelemetryB) Decode(block sdr.SampleBlock) Result {
	seq := d.seq
	d.seq++

	// power is mean |amplitude| in percent of unit scale
	var power float64
	if len(block.Samples) == 0 {
		power = d.rng.Float64() * 5
	} else {
		power = quality.MeanAbs(block.Samples) * 100
	}
	q := quality.Clamp(power * 10)

	now := d.opts.now()
	frame := d.synthesize(seq, q, now)

	if d.buffer == nil {
		d.buffer = frame
	} else {
		blend(d.buffer, frame)
	}

	return Result{
		Quality:  q,
		Progress: float64(seq % 100),
		Frame: &Frame{
			Mode:      sdr.ModeTelemetryB,
			Image:     cloneRGBA(d.buffer),
			Quality:   q,
			Seq:       seq,
			Timestamp: now,
		},
	}
}

// Reset drops the blended buffer
func (d *TelemetryB) Reset() {
	d.buffer = nil
	d.seq = 0
}

// MarkerRadius returns the circle radius drawn for a sequence number on an
// 800 pixel frame
func MarkerRadius(seq uint64) int {
	return min(300, 100+int(seq%200))
}

func (d *TelemetryB) synthesize(seq uint64, q float64, now time.Time) *image.RGBA {
	size := d.opts.size
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	for y := 0; y < size; y += scanLineSpacing {
		b := uint8(50 + 100*math.Abs(math.Sin(float64(y)/50+float64(seq)/10)))
		c := color.RGBA{G: b, B: b, A: 255}
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	radius := float64(MarkerRadius(seq)) * float64(size) / DefaultFrameSize
	drawRing(img, float64(size)/2, radius, 1)

	lines := []string{
		"Telemetry-B",
		now.UTC().Format("2006-01-02 15:04:05 UTC"),
		fmt.Sprintf("Sequence: %d", seq),
		fmt.Sprintf("Quality: %.1f%%", q),
	}
	if d.opts.frequency > 0 {
		lines = append(lines, humanHz(d.opts.frequency))
	}
	if err := d.annotator.Annotate(img, lines...); err != nil {
		d.opts.logger.Warn("annotating frame", slog.String("error", err.Error()))
	}

	return img
}

// drawRing draws a circle outline of the given half width around (c, c)
func drawRing(img *image.RGBA, c, radius, halfWidth float64) {
	b := img.Bounds()
	lo := int(math.Max(c-radius-halfWidth-1, float64(b.Min.Y)))
	hi := int(math.Min(c+radius+halfWidth+1, float64(b.Max.Y-1)))

	for y := lo; y <= hi; y++ {
		for x := lo; x <= hi && x < b.Max.X; x++ {
			dist := math.Hypot(float64(x)-c, float64(y)-c)
			if math.Abs(dist-radius) <= halfWidth {
				img.SetRGBA(x, y, markerColor)
			}
		}
	}
}

// blend mixes next into dst in place: dst = 0.2*next + 0.8*dst
func blend(dst, next *image.RGBA) {
	for i := range dst.Pix {
		dst.Pix[i] = uint8(blendNew*float64(next.Pix[i]) + blendOld*float64(dst.Pix[i]) + 0.5)
	}
}
