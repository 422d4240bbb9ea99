package capture

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func TestChangeDetectorFirstFrameCounts(t *testing.T) {
	d := NewChangeDetector(DefaultMaxHashDistance)
	img := imaging.New(64, 64, color.NRGBA{255, 255, 255, 255})
	if !d.Changed(img) {
		t.Fatalf("first frame must count as changed")
	}
}

func TestChangeDetectorSkipsIdenticalFrames(t *testing.T) {
	d := NewChangeDetector(DefaultMaxHashDistance)
	img := imaging.New(64, 64, color.NRGBA{200, 200, 200, 255})
	d.Changed(img)
	if d.Changed(img) {
		t.Fatalf("identical frame should not count as changed")
	}
}

func TestChangeDetectorSeesDistinctFrames(t *testing.T) {
	d := NewChangeDetector(DefaultMaxHashDistance)
	// Structured frames: pHash of flat fills can collide, gradients do not.
	a := imaging.New(64, 64, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < 64; y++ {
		for x := 0; x < 32; x++ {
			a.Set(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	b := imaging.New(64, 64, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			b.Set(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	d.Changed(a)
	if !d.Changed(b) {
		t.Fatalf("distinct frame should count as changed")
	}
}

func TestChangeDetectorReset(t *testing.T) {
	d := NewChangeDetector(DefaultMaxHashDistance)
	img := imaging.New(64, 64, color.NRGBA{10, 20, 30, 255})
	d.Changed(img)
	d.Reset()
	if !d.Changed(img) {
		t.Fatalf("frame after reset must count as changed")
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("100, 50, 1280, 720")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if r.X != 100 || r.Y != 50 || r.W != 1280 || r.H != 720 {
		t.Fatalf("unexpected region %+v", r)
	}
	if _, err := ParseRegion("1,2,3"); err == nil {
		t.Fatalf("expected error for short region")
	}
	if _, err := ParseRegion("0,0,0,720"); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if _, err := ParseRegion("a,b,c,d"); err == nil {
		t.Fatalf("expected error for non-numeric region")
	}
}
