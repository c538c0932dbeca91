package decoder

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-receiver/internal/quality"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
)

// DefaultRowWidth is the pixel width of one APT line
const DefaultRowWidth = 1040

// DefaultCadence bounds how often a growing image is copied out
var DefaultCadence = CadencePolicy{EveryRows: 50, MinInterval: time.Second}

// CadencePolicy decides when the line-accumulating decoder emits a frame.
// A frame is due when the row count is a multiple of EveryRows or when
// MinInterval has passed since the last emitted frame. With both unset
// every row is emitted.
type CadencePolicy struct {
	EveryRows   int
	MinInterval time.Duration
}

func (p CadencePolicy) due(rows int, sinceLast time.Duration) bool {
	if p.EveryRows <= 0 && p.MinInterval <= 0 {
		return true
	}
	if p.EveryRows > 0 && rows%p.EveryRows == 0 {
		return true
	}
	return p.MinInterval > 0 && sinceLast >= p.MinInterval
}

// TelemetryA appends one image row per block. The image only ever grows.
type TelemetryA struct {
	opts      options
	annotator *Annotator
	mapper    *ColorMapper
	rng       *rand.Rand

	pix         []uint8
	rows        int
	rendered    int // rows in the last emitted frame
	lastRender  time.Time
	lastQuality float64
}

func newTelemetryA(o options, annotator *Annotator, rng *rand.Rand) *TelemetryA {
	return &TelemetryA{
		opts:      o,
		annotator: annotator,
		mapper:    NewColorMapper(o.theme),
		rng:       rng,
	}
}

func (d *TelemetryA) Mode() sdr.Mode {
	return sdr.ModeTelemetryA
}

// Rows returns the current image height
func (d *TelemetryA) Rows() int {
	return d.rows
}

// Decode appends a row built from block and emits a frame when the cadence
// policy says so.
func (d *TelemetryA) Decode(block sdr.SampleBlock) Result {
	samples := block.Samples
	if len(samples) == 0 {
		samples = d.noise()
	}

	q := quality.Estimate(samples, quality.ReferenceTelemetry)
	d.lastQuality = q
	d.appendRow(samples)

	res := Result{
		Quality:  q,
		Progress: float64(d.rows % 100),
	}

	now := d.opts.now()
	if d.opts.cadence.due(d.rows, now.Sub(d.lastRender)) {
		res.Frame = d.render(now, q, block.Seq)
	}

	return res
}

// Flush emits the rows held back by the cadence policy. It returns nil when
// the last emitted frame is already complete.
func (d *TelemetryA) Flush() *Frame {
	if d.rows == 0 || d.rows == d.rendered {
		return nil
	}
	return d.render(d.opts.now(), d.lastQuality, 0)
}

// Reset drops the accumulated image
func (d *TelemetryA) Reset() {
	d.pix = nil
	d.rows = 0
	d.rendered = 0
	d.lastQuality = 0
	d.lastRender = time.Time{}
}

func (d *TelemetryA) noise() []float64 {
	out := make([]float64, d.opts.width)
	for i := range out {
		out[i] = (d.rng.Float64() - 0.5) * 0.1
	}
	return out
}

// appendRow averages |sample| into width buckets and maps each onto the palette
func (d *TelemetryA) appendRow(samples []float64) {
	width, n := d.opts.width, len(samples)

	for x := 0; x < width; x++ {
		lo := x * n / width
		hi := max((x+1)*n/width, lo+1)

		var sum float64
		for _, s := range samples[lo:hi] {
			sum += math.Abs(s)
		}
		level := math.Min(1, sum/float64(hi-lo)*2)

		c := d.mapper.Color(level)
		d.pix = append(d.pix, c.R, c.G, c.B, c.A)
	}

	d.rows++
}

func (d *TelemetryA) render(now time.Time, q float64, seq uint64) *Frame {
	d.rendered = d.rows
	d.lastRender = now

	pix := make([]uint8, len(d.pix))
	copy(pix, d.pix)

	img := &image.RGBA{
		Pix:    pix,
		Stride: d.opts.width * 4,
		Rect:   image.Rect(0, 0, d.opts.width, d.rows),
	}

	lines := []string{
		now.UTC().Format("2006-01-02 15:04:05 UTC"),
		fmt.Sprintf("Rows: %s", humanize.Comma(int64(d.rows))),
	}
	if d.opts.frequency > 0 {
		lines = append(lines, humanHz(d.opts.frequency))
	}
	if err := d.annotator.Annotate(img, lines...); err != nil {
		d.opts.logger.Warn("annotating frame", slog.String("error", err.Error()))
	}

	return &Frame{
		Mode:      sdr.ModeTelemetryA,
		Image:     img,
		Quality:   q,
		Seq:       seq,
		Rows:      d.rows,
		Timestamp: now,
	}
}
