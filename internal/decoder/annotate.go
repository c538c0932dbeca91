package decoder

import (
	"fmt"
	"image"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	dpi      float64 = 72
	fontSize float64 = 14
	spacing  float64 = 1.2
)

// Annotator draws text overlays onto frames. It is not safe for concurrent
// use; each decoder owns one.
type Annotator struct {
	context *freetype.Context
}

func NewAnnotator() (*Annotator, error) {
	parsedFont, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

// Annotate draws lines top-left, one per row
func (a *Annotator) Annotate(img *image.RGBA, lines ...string) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	pt := freetype.Pt(10, 10+int(fontSize))
	for _, s := range lines {
		if _, err := a.context.DrawString(s, pt); err != nil {
			return fmt.Errorf("drawing %q: %w", s, err)
		}
		pt.Y += a.context.PointToFixed(fontSize * spacing)
	}

	return nil
}

// humanHz formats a frequency given in MHz
func humanHz(mhz float64) string {
	fract, suffix := humanize.ComputeSI(mhz * 1e6)
	return fmt.Sprintf("%0.4f %sHz", fract, suffix)
}
