package ocr

import (
	"strconv"

	"umaka/pkg/rating"
)

const (
	runMinLen = 3
	runMaxLen = 4

	// Ten values: current and max for each of the five stats.
	statValuesNeeded = 2 * rating.NumStats
)

// StatValues scans text for maximal decimal digit runs in order of appearance
// and keeps runs of 3 or 4 digits. Shorter runs are label noise, longer runs
// (fan counts, ids) are never stat values; a 5+ digit run is rejected whole,
// not split.
func StatValues(text string) []int {
	var vals []int
	n := len(text)
	for i := 0; i < n; {
		if !isDigit(text[i]) {
			i++
			continue
		}
		j := i
		for j < n && isDigit(text[j]) {
			j++
		}
		if l := j - i; l >= runMinLen && l <= runMaxLen {
			if v, err := strconv.Atoi(text[i:j]); err == nil {
				vals = append(vals, v)
			}
		}
		i = j
	}
	return vals
}

// ExtractStats maps the first ten kept runs onto a StatBlock pairwise:
// speed current/max, stamina current/max, power, guts, wisdom. The stat
// screen lays the numbers out in exactly this reading order, so position
// is the whole mapping; no labels are consulted. Runs beyond the tenth
// are ignored. Values are not range checked.
func ExtractStats(text string) (rating.StatBlock, error) {
	vals := StatValues(text)
	if len(vals) < statValuesNeeded {
		return rating.StatBlock{}, ErrInsufficientStats
	}
	var v [statValuesNeeded]int
	copy(v[:], vals[:statValuesNeeded])
	return rating.FromValues(v), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
