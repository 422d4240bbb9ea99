package main

import (
	"encoding/json"
	"testing"

	"umaka/models"
	"umaka/pkg/rating"
)

func TestFlexIntCoercion(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{`{"v": 455}`, 455},
		{`{"v": "455"}`, 455},
		{`{"v": " 455 "}`, 455},
		{`{"v": 455.9}`, 455},
		{`{"v": "455.9"}`, 455},
		{`{"v": "abc"}`, 0},
		{`{"v": ""}`, 0},
		{`{"v": null}`, 0},
		{`{"v": true}`, 0},
		{`{"v": {}}`, 0},
		{`{"v": -5}`, 0},
		{`{"v": "-5"}`, 0},
		{`{}`, 0},
	}
	for _, tc := range cases {
		var got struct {
			V FlexInt `json:"v"`
		}
		if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
			t.Fatalf("unmarshal %s: unexpected error %v", tc.in, err)
		}
		if int(got.V) != tc.want {
			t.Fatalf("coerce %s: got %d want %d", tc.in, got.V, tc.want)
		}
	}
}

func TestStatFieldsBlock(t *testing.T) {
	body := `{
		"speed_current": 455, "speed_max": "1103",
		"stamina_current": "728", "stamina_max": 900,
		"power_current": 602, "power_max": 1200,
		"guts_current": "oops", "guts_max": 640,
		"wisdom_current": 514, "wisdom_max": 880
	}`
	var f statFields
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b := f.block()
	if b.Speed.Current != 455 || b.Speed.Max != 1103 {
		t.Fatalf("speed pair wrong: %+v", b.Speed)
	}
	if b.Stamina.Current != 728 || b.Stamina.Max != 900 {
		t.Fatalf("stamina pair wrong: %+v", b.Stamina)
	}
	if b.Guts.Current != 0 {
		t.Fatalf("garbage guts_current should coerce to 0, got %d", b.Guts.Current)
	}
	if b.Wisdom.Max != 880 {
		t.Fatalf("wisdom max wrong: %d", b.Wisdom.Max)
	}
}

func TestStatPatchApply(t *testing.T) {
	sheet := models.StatSheet{}
	sheet.SetBlock(rating.StatBlock{
		Speed:   rating.StatPair{Current: 100, Max: 200},
		Stamina: rating.StatPair{Current: 300, Max: 400},
		Wisdom:  rating.StatPair{Current: 500, Max: 600},
	})

	var p statPatch
	if err := json.Unmarshal([]byte(`{"speed_current": 900, "wisdom_max": "777"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.apply(&sheet) {
		t.Fatal("apply should report a change")
	}
	if sheet.SpeedCurrent != 900 {
		t.Fatalf("speed_current not applied: %d", sheet.SpeedCurrent)
	}
	if sheet.WisdomMax != 777 {
		t.Fatalf("wisdom_max not applied: %d", sheet.WisdomMax)
	}
	if sheet.SpeedMax != 200 || sheet.StaminaCurrent != 300 {
		t.Fatalf("untouched fields changed: %+v", sheet)
	}

	var empty statPatch
	if err := json.Unmarshal([]byte(`{}`), &empty); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if empty.apply(&sheet) {
		t.Fatal("empty patch should not report a change")
	}
}

func TestResolveCategories(t *testing.T) {
	d, s, err := resolveCategories("", "")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if d != rating.Middle || s != rating.PaceChaser {
		t.Fatalf("defaults wrong: %s %s", d, s)
	}

	d, s, err = resolveCategories("LONG", "Closer")
	if err != nil {
		t.Fatalf("explicit: %v", err)
	}
	if d != rating.Long || s != rating.Closer {
		t.Fatalf("explicit wrong: %s %s", d, s)
	}

	if _, _, err := resolveCategories("marathon", ""); err == nil {
		t.Fatal("bad distance should error")
	}
	if _, _, err := resolveCategories("", "sprinter"); err == nil {
		t.Fatal("bad strategy should error")
	}
}

func TestSheetJSONRecomputesEvaluation(t *testing.T) {
	sheet := models.StatSheet{
		ID:       7,
		UserID:   3,
		FileName: "career-42.png",
		Distance: string(rating.Middle),
		Strategy: string(rating.FrontRunner),
	}
	sheet.SetBlock(rating.StatBlock{
		Speed:   rating.StatPair{Current: 1000, Max: 1200},
		Stamina: rating.StatPair{Current: 1000, Max: 1200},
		Power:   rating.StatPair{Current: 1000, Max: 1200},
		Guts:    rating.StatPair{Current: 1000, Max: 1200},
		Wisdom:  rating.StatPair{Current: 1000, Max: 1200},
	})
	// stale denormalized values must not leak into the response
	sheet.TotalScore = 1
	sheet.Rank = "C"

	out := sheetJSON(&sheet)
	ev, ok := out["evaluation"].(rating.Evaluation)
	if !ok {
		t.Fatalf("evaluation has unexpected type %T", out["evaluation"])
	}
	if ev.Total != 5200 || ev.Rank != "A+" {
		t.Fatalf("evaluation not recomputed: total=%d rank=%s", ev.Total, ev.Rank)
	}
	if out["file_name"] != "career-42.png" {
		t.Fatalf("file_name wrong: %v", out["file_name"])
	}
}
