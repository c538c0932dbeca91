package decoder

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme selects how amplitude is rendered into row pixels:
// - ClassicTheme: blue to red hue sweep
// - GrayscaleTheme: black to white, closest to a raw APT print
// - ThermalTheme: black to red to yellow to white
// - MarineTheme: deep blue to cyan to white
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	ThermalTheme   ColorTheme = "thermal"
	MarineTheme    ColorTheme = "marine"

	DefaultColorMapSize = 256 // Default number of colors in the map

	hueStart = 236.0
	hueEnd   = 0.0
)

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// ParseColorTheme validates a theme name; empty selects grayscale
func ParseColorTheme(s string) (ColorTheme, error) {
	if s == "" {
		return GrayscaleTheme, nil
	}
	theme := ColorTheme(s)
	if _, ok := validThemes[theme]; !ok {
		return "", fmt.Errorf("unknown color theme '%s'", s)
	}
	return theme, nil
}

// ColorMapper maps a normalized level in [0, 1] to a pre-computed color
type ColorMapper struct {
	colorMap  []color.RGBA
	themeName ColorTheme
}

// NewColorMapper creates a new color mapper with the default size
func NewColorMapper(theme ColorTheme) *ColorMapper {
	return NewColorMapperWithSize(theme, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a new color mapper with specified size.
func NewColorMapperWithSize(theme ColorTheme, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	fn := getColorTheme(theme)
	cm := &ColorMapper{
		colorMap:  make([]color.RGBA, size),
		themeName: theme,
	}
	for i := 0; i < size; i++ {
		cm.colorMap[i] = toRGBA(fn(float64(i) / float64(size-1)))
	}
	return cm
}

// Color returns the color for level, clamped to [0, 1]
func (cm *ColorMapper) Color(level float64) color.RGBA {
	if math.IsNaN(level) {
		return cm.colorMap[0]
	}
	index := int(level * float64(len(cm.colorMap)-1))
	index = min(max(index, 0), len(cm.colorMap)-1)
	return cm.colorMap[index]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

func toRGBA(c color.Color) color.RGBA {
	r, g, b, _ := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts through go-colorful, clamping the result into gamut
func (hsv HSV) RGB() color.Color {
	return colorful.Hsv(math.Mod(hsv.H, 360), hsv.S, hsv.V).Clamped()
}

func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(level float64) color.Color {
			hue := hueStart - level*(hueStart-hueEnd)
			hue = math.Min(math.Max(hue, hueEnd), hueStart)
			return colorful.Hsv(hue, 1, 0.90)
		}

	case ThermalTheme:
		return func(level float64) color.Color {
			if level < 0.33 {
				return color.RGBA{R: uint8(level * 3 * 255), A: 255}
			}
			if level < 0.66 {
				return color.RGBA{R: 255, G: uint8((level - 0.33) * 3 * 255), A: 255}
			}
			return color.RGBA{R: 255, G: 255, B: uint8(math.Min(1, (level-0.66)*3) * 255), A: 255}
		}

	case MarineTheme:
		return func(level float64) color.Color {
			return HSV{
				H: 240 - (level * 60),
				S: 1.0 - (level * 0.8),
				V: 0.3 + (math.Pow(level, 0.6) * 0.7),
			}.RGB()
		}

	default: // grayscale
		return func(level float64) color.Color {
			v := uint8(math.Pow(level, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}
	}
}
