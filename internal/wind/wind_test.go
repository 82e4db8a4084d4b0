package wind

import (
	"testing"
	"time"
)

var base = time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

func TestIndexForHeadingBoundaries(t *testing.T) {
	cases := []struct {
		heading float64
		want    int
	}{
		{0, 0},
		{360, 0},
		{11.25, 0},
		{11.250001, 1},
		{348.75, 15}, // NNW upper bound, inclusive
		{348.750001, 0},
		{33.75, 1},  // NNE upper bound, inclusive
		{33.750001, 2},
		{180, 8}, // S
	}
	for _, c := range cases {
		if got := indexForHeading(c.heading); got != c.want {
			t.Errorf("indexForHeading(%v) = %d, want %d", c.heading, got, c.want)
		}
	}
}

func TestSlicesCoverAllNames(t *testing.T) {
	s := Slices()
	if s[0].Name != "N" || s[8].Name != "S" {
		t.Fatalf("unexpected slice order: %+v", s)
	}
	if len(s) != 16 {
		t.Fatalf("want 16 slices, got %d", len(s))
	}
}

func TestDominantWindAcrossBoundary(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 24; i++ {
		tr.AddSample(355, base.Add(time.Duration(i)*time.Second))
	}
	for i := 0; i < 24; i++ {
		tr.AddSample(5, base.Add(time.Duration(24+i)*time.Second))
	}

	dom, ok := tr.Dominant()
	if !ok {
		t.Fatal("expected a dominant slice")
	}
	if dom.Name != "N" {
		t.Errorf("dominant slice = %s, want N", dom.Name)
	}
	if got := tr.SampleCount(0); got != 48 {
		t.Errorf("N sample count = %d, want 48", got)
	}

	hist := tr.DominantHistory(base.Add(48 * time.Second))
	if len(hist) != 1 || hist[0].Name != "N" {
		t.Errorf("dominant history = %+v, want [N]", hist)
	}
}

func TestSamplesExpireAfterWindow(t *testing.T) {
	tr := NewTracker()
	tr.AddSample(0, base)
	if got := tr.SampleCount(0); got != 1 {
		t.Fatalf("count after first sample = %d, want 1", got)
	}

	// A sample well beyond the 10-minute window should expire the first.
	tr.AddSample(90, base.Add(Window+time.Second))
	if got := tr.SampleCount(0); got != 0 {
		t.Errorf("N count after expiry = %d, want 0", got)
	}
	if got := tr.SampleCount(4); got != 1 {
		t.Errorf("E count after new sample = %d, want 1", got)
	}
}

func TestDominantHistoryDropsOldEntries(t *testing.T) {
	tr := NewTracker()
	tr.AddSample(0, base)
	hist := tr.DominantHistory(base.Add(2 * time.Hour))
	if len(hist) != 0 {
		t.Errorf("expected no history beyond the 1-hour window, got %+v", hist)
	}
}

func TestSampleCountSumMatchesValidSamples(t *testing.T) {
	tr := NewTracker()
	headings := []float64{10, 50, 95, 140, 185, 230, 275, 320}
	for i, h := range headings {
		tr.AddSample(h, base.Add(time.Duration(i)*time.Second))
	}
	total := 0
	for i := 0; i < 16; i++ {
		total += tr.SampleCount(i)
	}
	if total != len(headings) {
		t.Errorf("sum of slice counts = %d, want %d", total, len(headings))
	}
}
