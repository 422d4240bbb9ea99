package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay is returned when no display is attached, e.g. on a headless
// server. The service then runs in upload-only mode.
var ErrNoDisplay = errors.New("no active display")

// Source produces a raster image of whatever surface shows the stat screen.
type Source interface {
	Capture() (image.Image, error)
}

// Region selects what part of which display a ScreenSource grabs.
// Width or height of zero means the whole display.
type Region struct {
	Display int
	X, Y    int
	W, H    int
}

// ParseRegion reads an "x,y,w,h" string as used by the CAPTURE_REGION
// environment variable.
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return Region{}, fmt.Errorf("region %q: width and height must be positive", s)
	}
	return Region{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// ScreenSource captures a fixed screen region with each call. The bounds are
// resolved once at construction; moving the game window needs a restart or a
// region reconfigure.
type ScreenSource struct {
	bounds image.Rectangle
}

// NewScreenSource resolves r against the attached displays. It fails with
// ErrNoDisplay on headless machines and with a plain error when the display
// index is out of range.
func NewScreenSource(r Region) (*ScreenSource, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplay
	}
	if r.Display < 0 || r.Display >= n {
		return nil, fmt.Errorf("display %d out of range (%d active)", r.Display, n)
	}
	bounds := screenshot.GetDisplayBounds(r.Display)
	if r.W > 0 && r.H > 0 {
		bounds = image.Rect(
			bounds.Min.X+r.X,
			bounds.Min.Y+r.Y,
			bounds.Min.X+r.X+r.W,
			bounds.Min.Y+r.Y+r.H,
		)
	}
	return &ScreenSource{bounds: bounds}, nil
}

// Bounds reports the resolved capture rectangle.
func (s *ScreenSource) Bounds() image.Rectangle { return s.bounds }

func (s *ScreenSource) Capture() (image.Image, error) {
	img, err := screenshot.CaptureRect(s.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}
