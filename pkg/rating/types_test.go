package rating

import "testing"

func TestParseDistanceVariants(t *testing.T) {
	cases := map[string]Distance{
		"short":  Short,
		"MIDDLE": Middle,
		" long ": Long,
		"Mile":   Mile,
	}
	for in, want := range cases {
		got, err := ParseDistance(in)
		if err != nil || got != want {
			t.Fatalf("ParseDistance(%q) expected %s got %s err=%v", in, want, got, err)
		}
	}
	if _, err := ParseDistance("marathon"); err == nil {
		t.Fatalf("expected error for unknown distance")
	}
}

func TestParseStrategyVariants(t *testing.T) {
	cases := map[string]Strategy{
		"front-runner": FrontRunner,
		"Front Runner": FrontRunner,
		"pace_chaser":  PaceChaser,
		"LATE-SURGER":  LateSurger,
		"closer":       Closer,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) expected %s got %s err=%v", in, want, got, err)
		}
	}
	if _, err := ParseStrategy("freestyle"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestFromValuesOrder(t *testing.T) {
	b := FromValues([10]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if b.Speed != (StatPair{Current: 1, Max: 2}) || b.Wisdom != (StatPair{Current: 9, Max: 10}) {
		t.Fatalf("pairwise mapping wrong: %+v", b)
	}
	cur := b.Currents()
	want := [NumStats]int{1, 3, 5, 7, 9}
	if cur != want {
		t.Fatalf("expected currents %v got %v", want, cur)
	}
}
