package ocr

import (
	"errors"
	"image/color"
	"os"
	"testing"

	"github.com/disintegration/imaging"
)

func TestScanImageBlank(t *testing.T) {
	img := imaging.New(400, 200, color.NRGBA{255, 255, 255, 255})
	f, err := os.CreateTemp("", "blank-*.png")
	if err != nil {
		t.Skip("temp file")
	}
	_ = f.Close()
	_ = imaging.Save(img, f.Name())
	defer os.Remove(f.Name())
	_, _, er := ScanImage(f.Name())
	if !errors.Is(er, ErrInsufficientStats) {
		t.Fatalf("expected ErrInsufficientStats got %v", er)
	}
}
