package rating

import "testing"

func flatBlock(cur int) StatBlock {
	p := StatPair{Current: cur, Max: 1200}
	return StatBlock{Speed: p, Stamina: p, Power: p, Guts: p, Wisdom: p}
}

func TestEvaluateMiddleFrontRunner(t *testing.T) {
	ev := Evaluate(flatBlock(1000), Middle, FrontRunner)
	want := map[string]int{"speed": 1200, "stamina": 1100, "power": 1000, "guts": 1000, "wisdom": 900}
	for name, w := range want {
		if ev.Scores[name] != w {
			t.Fatalf("score %s expected %d got %d", name, w, ev.Scores[name])
		}
	}
	if ev.Total != 5200 {
		t.Fatalf("expected total 5200 got %d", ev.Total)
	}
	if ev.Rank != "A+" {
		t.Fatalf("expected rank A+ got %s", ev.Rank)
	}
}

func TestEvaluateLongCloser(t *testing.T) {
	ev := Evaluate(flatBlock(1000), Long, Closer)
	want := map[string]int{"speed": 720, "stamina": 1200, "power": 960, "guts": 1440, "wisdom": 1320}
	for name, w := range want {
		if ev.Scores[name] != w {
			t.Fatalf("score %s expected %d got %d", name, w, ev.Scores[name])
		}
	}
	if ev.Total != 5640 {
		t.Fatalf("expected total 5640 got %d", ev.Total)
	}
	if ev.Rank != "S" {
		t.Fatalf("expected rank S got %s", ev.Rank)
	}
}

func TestRankBoundaries(t *testing.T) {
	cases := []struct {
		total int
		rank  string
	}{
		{6000, "SS"},
		{5999, "S"},
		{5500, "S"},
		{5499, "A+"},
		{5000, "A+"},
		{4999, "A"},
		{4500, "A"},
		{4499, "B"},
		{4000, "B"},
		{3999, "C"},
		{0, "C"},
	}
	for _, c := range cases {
		if got := RankFor(c.total); got != c.rank {
			t.Fatalf("total %d expected %s got %s", c.total, c.rank, got)
		}
	}
}

func TestTotalFromUnroundedScores(t *testing.T) {
	// Middle x front-runner weights: 1.2 1.1 1.0 1.0 0.9.
	// speed 2 -> 2.4, stamina 4 -> 4.4, wisdom 6 -> 5.4: each loses to
	// display rounding, but the total keeps the fractions (12.2 -> 12).
	b := StatBlock{
		Speed:   StatPair{Current: 2},
		Stamina: StatPair{Current: 4},
		Wisdom:  StatPair{Current: 6},
	}
	ev := Evaluate(b, Middle, FrontRunner)
	if ev.Total != 12 {
		t.Fatalf("expected total 12 got %d", ev.Total)
	}
	displayed := 0
	for _, s := range ev.Scores {
		displayed += s
	}
	if displayed != 11 {
		t.Fatalf("expected displayed sum 11 got %d", displayed)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	b := StatBlock{
		Speed:   StatPair{Current: 731, Max: 1103},
		Stamina: StatPair{Current: 642, Max: 980},
		Power:   StatPair{Current: 855, Max: 1200},
		Guts:    StatPair{Current: 402, Max: 700},
		Wisdom:  StatPair{Current: 588, Max: 900},
	}
	for _, d := range Distances() {
		for _, s := range Strategies() {
			first := Evaluate(b, d, s)
			second := Evaluate(b, d, s)
			if first.Total != second.Total || first.Rank != second.Rank {
				t.Fatalf("%s/%s not deterministic: %+v vs %+v", d, s, first, second)
			}
			for name, v := range first.Scores {
				if second.Scores[name] != v {
					t.Fatalf("%s/%s score %s differs: %d vs %d", d, s, name, v, second.Scores[name])
				}
			}
		}
	}
}

func TestUnknownCategoriesRateNeutral(t *testing.T) {
	ev := Evaluate(flatBlock(1000), Distance("dirt"), Strategy("freestyle"))
	if ev.Total != 5000 {
		t.Fatalf("expected neutral total 5000 got %d", ev.Total)
	}
	if ev.Rank != "A+" {
		t.Fatalf("expected rank A+ got %s", ev.Rank)
	}
}
