package layout

import "testing"

func TestParseScreen(t *testing.T) {
	s, err := ParseScreen(" 2560X1440 ")
	if err != nil {
		t.Fatalf("ParseScreen: %v", err)
	}
	if s.Width != 2560 || s.Height != 1440 {
		t.Fatalf("unexpected screen %+v", s)
	}
	for _, bad := range []string{"", "2560", "0x100", "axb", "100x-1"} {
		if _, err := ParseScreen(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestPixelConversionRoundTrips(t *testing.T) {
	s := Screen{Width: 1920, Height: 1080}
	x, y := s.ToPixels(50, 25)
	if x != 960 || y != 270 {
		t.Fatalf("expected 960,270 got %d,%d", x, y)
	}
	px, py := s.FromPixels(x, y)
	if px != 50 || py != 25 {
		t.Fatalf("expected 50,25 got %v,%v", px, py)
	}
	if x, _ := s.ToPixels(33.35, 0); x != 640 {
		t.Fatalf("expected rounding to 640, got %d", x)
	}
	if px, py := (Screen{}).FromPixels(10, 10); px != 0 || py != 0 {
		t.Fatalf("zero screen should yield 0,0")
	}
}
