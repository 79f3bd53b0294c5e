package render

import (
	"image/color"
	"math"
)

// HSV converts hue in degrees, saturation and value in [0, 1] to RGB.
// See https://en.wikipedia.org/wiki/HSL_and_HSV#HSV_to_RGB_alternative
func HSV(h, s, v float64) color.RGBA {
	channel := func(n int) uint8 {
		k := math.Mod(float64(n)+h/60.0, 6.0)
		c := v - v*s*max(0.0, min(k, 4.0-k, 1.0))
		return uint8(math.Round(c * 255))
	}

	return color.RGBA{R: channel(5), G: channel(3), B: channel(1), A: 0xff}
}
