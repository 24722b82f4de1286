package mix

import (
	"errors"
	"strings"
	"testing"
)

func TestComposeEmptyInput(t *testing.T) {
	_, err := Compose(nil, 3)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Compose(nil) err = %v, want ErrEmptyInput", err)
	}
}

func TestComposeSingleSegment(t *testing.T) {
	g, err := Compose([]Segment{{Path: "a.mp3", Duration: 40, FadeIn: 2, FadeOut: 5}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Single() {
		t.Error("one segment should produce the passthrough graph")
	}
	if g.Sink != "" {
		t.Errorf("Sink = %q, want empty for passthrough", g.Sink)
	}

	af := g.AudioFilter()
	if af != "afade=t=in:d=2,afade=t=out:st=35:d=5" {
		t.Errorf("AudioFilter = %q", af)
	}
	for _, forbidden := range []string{"adelay", "amix", "aresample"} {
		if strings.Contains(af, forbidden) {
			t.Errorf("passthrough graph must not contain %s", forbidden)
		}
	}
	if g.Entries[0].StartOffset != 0 {
		t.Errorf("single segment StartOffset = %v, want 0", g.Entries[0].StartOffset)
	}
}

func TestComposeSingleSegmentNoFades(t *testing.T) {
	g, err := Compose([]Segment{{Path: "a.mp3", Duration: 40}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Chains) != 0 {
		t.Errorf("no fades requested, want zero filter chains, got %v", g.Chains)
	}
}

func TestComposeTwoSegments(t *testing.T) {
	g, err := Compose([]Segment{
		{Path: "a.mp3", Duration: 30, FadeIn: 1, FadeOut: 2},
		{Path: "b.mp3", Duration: 25, FadeIn: 2, FadeOut: 3},
	}, 3)
	if err != nil {
		t.Fatal(err)
	}

	if g.Single() {
		t.Fatal("two segments must not take the passthrough path")
	}
	if g.Sink != "[out]" {
		t.Errorf("Sink = %q, want [out]", g.Sink)
	}

	want := "[0:a]afade=t=in:d=1,afade=t=out:st=28:d=2[faded0];" +
		"[1:a]afade=t=in:d=2,afade=t=out:st=22:d=3[faded1];" +
		"[faded1]adelay=27000|27000[delayed1];" +
		"[faded0][delayed1]amix=inputs=2:duration=longest[mixed1];" +
		"[mixed1]aresample=44100[out]"
	if got := g.FilterComplex(); got != want {
		t.Errorf("FilterComplex mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestComposeUnfadedSegmentUsedDirectly(t *testing.T) {
	// A segment with neither fade is referenced by its input label, no
	// afade chain is emitted for it.
	g, err := Compose([]Segment{
		{Path: "a.mp3", Duration: 10},
		{Path: "b.mp3", Duration: 10, FadeIn: 1},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	fc := g.FilterComplex()
	if strings.Contains(fc, "[faded0]") {
		t.Errorf("unfaded segment 0 should not get a fade chain: %s", fc)
	}
	if !strings.Contains(fc, "[0:a][delayed1]amix") {
		t.Errorf("mix should reference [0:a] directly: %s", fc)
	}
}

func TestComposeChainsBinaryMixes(t *testing.T) {
	g, err := Compose([]Segment{
		{Path: "a.mp3", Duration: 30},
		{Path: "b.mp3", Duration: 25},
		{Path: "c.mp3", Duration: 20},
	}, 3)
	if err != nil {
		t.Fatal(err)
	}

	fc := g.FilterComplex()
	if strings.Contains(fc, "amix=inputs=3") {
		t.Error("mixes must stay binary, never N-ary")
	}
	if !strings.Contains(fc, "[mixed1][delayed2]amix=inputs=2:duration=longest[mixed2]") {
		t.Errorf("third segment should mix into [mixed1]: %s", fc)
	}
	if !strings.Contains(fc, "adelay=27000|27000") || !strings.Contains(fc, "adelay=49000|49000") {
		t.Errorf("delays should land at 27s and 49s: %s", fc)
	}
	if !strings.HasSuffix(fc, "aresample=44100[out]") {
		t.Errorf("graph must terminate in a single resample sink: %s", fc)
	}
	if strings.Count(fc, "[out]") != 1 {
		t.Errorf("exactly one sink expected: %s", fc)
	}
}

func TestComposeEntriesCarryTimeline(t *testing.T) {
	g, err := Compose([]Segment{
		{Path: "a.mp3", Duration: 30, FadeOut: 3},
		{Path: "b.mp3", Duration: 25},
		{Path: "c.mp3", Duration: 20},
	}, 3)
	if err != nil {
		t.Fatal(err)
	}

	wantOffsets := []float64{0, 27, 49}
	for i, e := range g.Entries {
		if e.SegmentIndex != i {
			t.Errorf("entry %d index = %d", i, e.SegmentIndex)
		}
		if e.StartOffset != wantOffsets[i] {
			t.Errorf("entry %d offset = %v, want %v", i, e.StartOffset, wantOffsets[i])
		}
	}
	if g.Entries[0].Fade.FadeOutStart != 27 {
		t.Errorf("entry 0 FadeOutStart = %v, want 27", g.Entries[0].Fade.FadeOutStart)
	}
}

func TestComposeInputsPreserveOrder(t *testing.T) {
	g, err := Compose([]Segment{
		{Path: "z.mp3", Duration: 5},
		{Path: "a.mp3", Duration: 5},
		{Path: "m.mp3", Duration: 5},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"z.mp3", "a.mp3", "m.mp3"}
	for i := range want {
		if g.Inputs[i] != want[i] {
			t.Errorf("input %d = %q, want %q", i, g.Inputs[i], want[i])
		}
	}
}
