package ocr

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// Whitelist for the digit passes. The slash survives because the screen
// renders pairs like "455/1200" when space is tight.
const digitsWhitelist = "0123456789/ "

type ocrPass struct {
	name string
	text string
}

// runStatOCRPasses recognizes the capture several ways and returns the
// results in priority order: thresholded digit-only passes first, since
// positional extraction wants clean numbers, then full-text passes that
// tolerate the surrounding labels. Passes that error individually are
// skipped; only every pass failing is an engine error.
func runStatOCRPasses(path string, langs []string) ([]ocrPass, error) {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	gray := prepareStatImage(img)
	bin := binarize(gray, 200)
	adv := dilate(adaptiveThreshold(gray, 17, 8), 1)

	binPath, err := saveTemp(bin, "ocr-bin-*.png")
	if err != nil {
		binPath = path
	} else {
		defer os.Remove(binPath)
	}
	advPath, err := saveTemp(adv, "ocr-adv-*.png")
	if err != nil {
		advPath = path
	} else {
		defer os.Remove(advPath)
	}

	specs := []struct {
		name      string
		imagePath string
		whitelist string
		psm       gosseract.PageSegMode
	}{
		{"digits-bin", binPath, digitsWhitelist, gosseract.PSM_SPARSE_TEXT},
		{"digits-adaptive", advPath, digitsWhitelist, gosseract.PSM_SPARSE_TEXT},
		{"digits-block", binPath, digitsWhitelist, gosseract.PSM_SINGLE_BLOCK},
		{"full-block", path, "", gosseract.PSM_SINGLE_BLOCK},
		{"full-sparse", path, "", gosseract.PSM_SPARSE_TEXT},
	}

	var passes []ocrPass
	var lastErr error
	for _, sp := range specs {
		text, err := recognizeFile(sp.imagePath, langs, sp.whitelist, sp.psm)
		if err != nil {
			lastErr = err
			continue
		}
		passes = append(passes, ocrPass{name: sp.name, text: normalizeOCRText(text)})
	}
	if len(passes) == 0 {
		return nil, fmt.Errorf("ocr error: %w", lastErr)
	}
	log.Debug().Str("image", path).Int("passes", len(passes)).Msg("OCR passes done")
	return passes, nil
}

// recognizeFile runs one Tesseract client over one image file. Clients are
// per call; gosseract clients are not safe to share.
func recognizeFile(path string, langs []string, whitelist string, psm gosseract.PageSegMode) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage(langs...)
	if whitelist != "" {
		_ = client.SetWhitelist(whitelist)
	}
	_ = client.SetPageSegMode(psm)
	client.SetImage(path)
	return client.Text()
}

func saveTemp(img *image.NRGBA, pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	_ = f.Close()
	if err := imaging.Save(img, f.Name()); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
