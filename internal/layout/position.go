package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Screen is the client display size in logical pixels. Element positions
// are stored as percentages of it.
type Screen struct {
	Width  float64
	Height float64
}

// ParseScreen parses a "WIDTHxHEIGHT" size such as "2560x1440".
func ParseScreen(s string) (Screen, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Screen{}, fmt.Errorf("invalid screen size %q, want WIDTHxHEIGHT", s)
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil || width <= 0 {
		return Screen{}, fmt.Errorf("invalid screen width %q", w)
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil || height <= 0 {
		return Screen{}, fmt.Errorf("invalid screen height %q", h)
	}
	return Screen{Width: width, Height: height}, nil
}

// ToPixels converts a percentage position to whole pixels.
func (s Screen) ToPixels(x, y float32) (int, int) {
	return int(math.Round(float64(x) * s.Width / 100)), int(math.Round(float64(y) * s.Height / 100))
}

// FromPixels converts a pixel position to percentages.
func (s Screen) FromPixels(px, py int) (float32, float32) {
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0
	}
	return float32(float64(px) / s.Width * 100), float32(float64(py) / s.Height * 100)
}
