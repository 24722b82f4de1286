package mix

import (
	"errors"
	"fmt"
	"strings"
)

// OutputSampleRate is the fixed rate the final mix is resampled to, so the
// output format is consistent regardless of heterogeneous input rates.
const OutputSampleRate = 44100

// ErrEmptyInput is returned when a mixtape is requested with zero segments.
var ErrEmptyInput = errors.New("mix: no segments supplied")

// Segment is one input clip, already cut to its excerpt, with its measured
// duration and the caller's requested fade lengths. Order in the slice is
// the segment's identity -- it fixes the playback order for the build.
type Segment struct {
	Path     string
	Duration float64 // seconds, measured (never trusted from the caller)
	FadeIn   float64 // requested seconds
	FadeOut  float64 // requested seconds
}

// Graph describes a complete mix as one engine invocation: ordered inputs
// plus the filter chains connecting them into a single sink. Built fresh
// per mixtape and discarded after execution.
//
// With a single input the graph is degenerate: only the fade filters apply
// to the one stream, there is no delay, mix, or resample stage, and Sink
// is empty.
type Graph struct {
	Inputs  []string       // input file paths, in timeline order
	Chains  []string       // filter chains, dependency-ordered
	Sink    string         // final output label ("[out]"), empty when single-input
	Entries []TimelineEntry
}

// Single reports whether this is the one-segment passthrough graph.
func (g *Graph) Single() bool {
	return len(g.Inputs) == 1
}

// FilterComplex renders the chains as an ffmpeg -filter_complex argument.
func (g *Graph) FilterComplex() string {
	return strings.Join(g.Chains, ";")
}

// AudioFilter renders the chains as a plain -af argument for the
// single-input path, where chains are bare filters without stream labels.
func (g *Graph) AudioFilter() string {
	return strings.Join(g.Chains, ",")
}

// Compose builds the mix graph for an ordered list of segments and a
// global overlap duration. Pure construction: it cannot fail except on an
// empty segment list, and it never touches the engine.
//
// For N>=2 the chains follow a strict shape: per-segment fades, a delay
// per segment after the first (placing it at its timeline offset), binary
// mixes chained left to right, and one final resample. Binary mixes keep
// "duration = longest" well-defined at every step; an N-ary amix would
// not.
func Compose(segments []Segment, overlap float64) (*Graph, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyInput
	}

	g := &Graph{
		Inputs:  make([]string, len(segments)),
		Entries: make([]TimelineEntry, len(segments)),
	}

	durations := make([]float64, len(segments))
	for i, seg := range segments {
		g.Inputs[i] = seg.Path
		durations[i] = seg.Duration
	}
	offsets := Offsets(durations, overlap)

	for i, seg := range segments {
		g.Entries[i] = TimelineEntry{
			SegmentIndex: i,
			Fade:         PlanFade(seg.Duration, seg.FadeIn, seg.FadeOut),
			StartOffset:  offsets[i],
		}
	}

	if len(segments) == 1 {
		// Passthrough: fades only, applied as a simple filter chain.
		g.Chains = fadeFilters(g.Entries[0].Fade)
		return g, nil
	}

	current := ""
	for i := range segments {
		ref := fmt.Sprintf("[%d:a]", i)
		if filters := fadeFilters(g.Entries[i].Fade); len(filters) > 0 {
			g.Chains = append(g.Chains, fmt.Sprintf("%s%s[faded%d]", ref, strings.Join(filters, ","), i))
			ref = fmt.Sprintf("[faded%d]", i)
		}

		if i == 0 {
			// Segment 0 anchors the timeline, no delay.
			current = ref
			continue
		}

		ms := int(offsets[i] * 1000)
		g.Chains = append(g.Chains, fmt.Sprintf("%sadelay=%d|%d[delayed%d]", ref, ms, ms, i))
		g.Chains = append(g.Chains, fmt.Sprintf("%s[delayed%d]amix=inputs=2:duration=longest[mixed%d]", current, i, i))
		current = fmt.Sprintf("[mixed%d]", i)
	}

	g.Chains = append(g.Chains, fmt.Sprintf("%saresample=%d[out]", current, OutputSampleRate))
	g.Sink = "[out]"
	return g, nil
}

// fadeFilters renders the afade stages for one segment. A zero-length fade
// is omitted entirely; a segment with neither fade passes through
// unfiltered.
func fadeFilters(fi FadeInstruction) []string {
	var filters []string
	if fi.FadeIn > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=in:d=%g", fi.FadeIn))
	}
	if fi.FadeOut > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%g:d=%g", fi.FadeOutStart, fi.FadeOut))
	}
	return filters
}
