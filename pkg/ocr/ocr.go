package ocr

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"umaka/pkg/rating"
)

// ScanImage OCRs a stored stat screen capture and extracts the full set of
// ten stat values. Recognition passes run in priority order and the first
// pass whose text yields a complete block wins; there is no merging across
// passes, a positional read from mixed texts would pair the wrong numbers.
//
// Returns the extracted block and the text of the winning pass. On
// ErrInsufficientStats the text of the closest pass is returned so callers
// can record what was seen; any other error means the OCR engine itself
// failed and the scan should be aborted, not retried.
func ScanImage(path string, langs ...string) (rating.StatBlock, string, error) {
	passes, err := runStatOCRPasses(path, langs)
	if err != nil {
		return rating.StatBlock{}, "", fmt.Errorf("ocr passes: %w", err)
	}

	bestCount := -1
	bestText := ""
	for _, p := range passes {
		block, err := ExtractStats(p.text)
		if err == nil {
			log.Debug().Str("image", path).Str("pass", p.name).Msgf("stat scan ok snippet=%q", snippet(p.text, 160))
			return block, p.text, nil
		}
		if n := len(StatValues(p.text)); n > bestCount {
			bestCount = n
			bestText = p.text
		}
	}
	log.Info().Str("image", path).Msgf("stat scan short: best pass found %d of %d values snippet=%q",
		bestCount, statValuesNeeded, snippet(bestText, 160))
	return rating.StatBlock{}, bestText, ErrInsufficientStats
}
