package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// prepareStatImage normalizes a stat screen capture for digit recognition:
// grayscale, contrast and sharpen to separate the numbers from the colored
// stat bars, then upscale small captures so Tesseract sees enough pixels
// per glyph.
func prepareStatImage(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 0.6)
	if out.Bounds().Dy() < 1000 {
		out = imaging.Resize(out, 0, 1400, imaging.Lanczos)
	}
	return out
}

// binarize applies a global threshold to a grayscale NRGBA image. Pixels at
// or below the threshold go black, the rest white.
func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < h; y++ {
		si := img.PixOffset(img.Bounds().Min.X, img.Bounds().Min.Y+y)
		di := out.PixOffset(0, y)
		for x := 0; x < w; x++ {
			// Channels are equal after Grayscale; red is enough.
			if img.Pix[si] <= threshold {
				out.Pix[di] = 0
				out.Pix[di+1] = 0
				out.Pix[di+2] = 0
			}
			si += 4
			di += 4
		}
	}
	return out
}

// adaptiveThreshold binarizes against the local mean over a square window,
// which copes with the gradient backgrounds behind the stat panel better
// than a single global cut.
func adaptiveThreshold(img *image.NRGBA, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	minX := img.Bounds().Min.X
	minY := img.Bounds().Min.Y

	// Summed-area table with a zero row/column of padding.
	sat := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0
		si := img.PixOffset(minX, minY+y)
		for x := 0; x < w; x++ {
			row += int(img.Pix[si])
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
			si += 4
		}
	}
	area := func(x0, y0, x1, y1 int) int {
		return sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
	}

	half := window / 2
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < h; y++ {
		y0 := max(0, y-half)
		y1 := min(h, y+half+1)
		si := img.PixOffset(minX, minY+y)
		di := out.PixOffset(0, y)
		for x := 0; x < w; x++ {
			x0 := max(0, x-half)
			x1 := min(w, x+half+1)
			mean := area(x0, y0, x1, y1) / ((x1 - x0) * (y1 - y0))
			if int(img.Pix[si]) < mean-bias {
				out.Pix[di] = 0
				out.Pix[di+1] = 0
				out.Pix[di+2] = 0
			}
			si += 4
			di += 4
		}
	}
	return out
}

// dilate grows black regions by one pixel per round, thickening thin digit
// strokes left ragged by thresholding.
func dilate(img *image.NRGBA, rounds int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	cur := img
	for r := 0; r < rounds; r++ {
		next := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !blackAt(cur, x, y) && !blackAt(cur, x-1, y) && !blackAt(cur, x+1, y) &&
					!blackAt(cur, x, y-1) && !blackAt(cur, x, y+1) {
					continue
				}
				di := next.PixOffset(x, y)
				next.Pix[di] = 0
				next.Pix[di+1] = 0
				next.Pix[di+2] = 0
			}
		}
		cur = next
	}
	return cur
}

func blackAt(img *image.NRGBA, x, y int) bool {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return false
	}
	return img.Pix[img.PixOffset(x, y)] == 0
}
