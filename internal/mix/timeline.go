package mix

// TimelineEntry places one segment on the output timeline.
type TimelineEntry struct {
	SegmentIndex int
	Fade         FadeInstruction
	StartOffset  float64 // seconds from the start of the output track
}

// Offsets computes where each segment starts on the output timeline.
// Segment 0 anchors the timeline at t=0. For i>0,
//
//	offset[i] = max(0, dur[0]+...+dur[i-1] - overlap*i)
//
// The overlap budget accumulates linearly across the whole chain rather
// than resetting per pair, so each join eats the same amount of timeline.
func Offsets(durations []float64, overlap float64) []float64 {
	offsets := make([]float64, len(durations))

	var total float64
	for i := range durations {
		if i > 0 {
			off := total - overlap*float64(i)
			if off < 0 {
				off = 0
			}
			offsets[i] = off
		}
		total += durations[i]
	}

	return offsets
}
