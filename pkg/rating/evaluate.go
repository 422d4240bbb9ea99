package rating

import "math"

// Evaluation is the derived rating for one StatBlock under one
// distance/strategy pairing. Per-stat scores are rounded for display;
// Total is the rounded sum of the unrounded scores, so it can differ
// from the sum of the displayed five.
type Evaluation struct {
	Scores   map[string]int `json:"scores"`
	Total    int            `json:"total"`
	Rank     string         `json:"rank"`
	Distance Distance       `json:"distance"`
	Strategy Strategy       `json:"strategy"`
}

// Rank thresholds, applied top down against the total.
var rankThresholds = []struct {
	min  int
	rank string
}{
	{6000, "SS"},
	{5500, "S"},
	{5000, "A+"},
	{4500, "A"},
	{4000, "B"},
}

// RankFor maps a total score onto the letter ladder. Anything below the
// lowest threshold is a C.
func RankFor(total int) string {
	for _, t := range rankThresholds {
		if total >= t.min {
			return t.rank
		}
	}
	return "C"
}

// Evaluate scores a StatBlock for the given distance and strategy. It is
// a pure function: the same inputs always produce the same Evaluation,
// and nothing is cached or mutated.
func Evaluate(b StatBlock, d Distance, s Strategy) Evaluation {
	dc := d.Coefficients()
	sc := s.Coefficients()
	cur := b.Currents()

	scores := make(map[string]int, NumStats)
	sum := 0.0
	for i := 0; i < NumStats; i++ {
		v := float64(cur[i]) * dc[i] * sc[i]
		sum += v
		scores[StatNames[i]] = int(math.Round(v))
	}
	total := int(math.Round(sum))

	return Evaluation{
		Scores:   scores,
		Total:    total,
		Rank:     RankFor(total),
		Distance: d,
		Strategy: s,
	}
}
