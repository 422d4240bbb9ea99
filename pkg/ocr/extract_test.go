package ocr

import (
	"errors"
	"testing"

	"umaka/pkg/rating"
)

func TestStatValuesKeepsThreeAndFourDigitRuns(t *testing.T) {
	vals := StatValues("Speed 455/1103 Stamina 9 Fans 12345 Power 602")
	want := []int{455, 1103, 602}
	if len(vals) != len(want) {
		t.Fatalf("expected %v got %v", want, vals)
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("expected %v got %v", want, vals)
		}
	}
}

func TestStatValuesDoesNotSplitLongRuns(t *testing.T) {
	// A 5+ digit run is not two stat values jammed together.
	vals := StatValues("4551103")
	if len(vals) != 0 {
		t.Fatalf("expected no values got %v", vals)
	}
}

func TestExtractStatsPositional(t *testing.T) {
	text := "Speed 455/1103 Stamina 728/900 Power 602/1200 Guts 311/640 Wisdom 514/880"
	b, err := ExtractStats(text)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if b.Speed != (rating.StatPair{Current: 455, Max: 1103}) {
		t.Fatalf("speed pair wrong: %+v", b.Speed)
	}
	if b.Power != (rating.StatPair{Current: 602, Max: 1200}) {
		t.Fatalf("power pair wrong: %+v", b.Power)
	}
	if b.Wisdom != (rating.StatPair{Current: 514, Max: 880}) {
		t.Fatalf("wisdom pair wrong: %+v", b.Wisdom)
	}
}

func TestExtractStatsIgnoresExtraRuns(t *testing.T) {
	// An eleventh run (a date fragment, a skill point count) changes nothing.
	text := "455 1103 728 900 602 1200 311 640 514 880 2024"
	b, err := ExtractStats(text)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if b.Wisdom.Max != 880 {
		t.Fatalf("expected wisdom max 880 got %d", b.Wisdom.Max)
	}
}

func TestExtractStatsInsufficient(t *testing.T) {
	// Nine values: one short of a full screen.
	text := "455 1103 728 900 602 1200 311 640 514"
	_, err := ExtractStats(text)
	if !errors.Is(err, ErrInsufficientStats) {
		t.Fatalf("expected ErrInsufficientStats got %v", err)
	}
}

func TestExtractStatsNoiseBetweenRuns(t *testing.T) {
	// OCR noise: punctuation, slashes, stray letters between the numbers.
	text := "spd:455/1103, sta.728 /900 pow 602~1200 guts 311|640 wis 514 . 880"
	b, err := ExtractStats(text)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if b.Guts != (rating.StatPair{Current: 311, Max: 640}) {
		t.Fatalf("guts pair wrong: %+v", b.Guts)
	}
}
