package mix

// FadeInstruction is the normalized fade window for one segment, derived
// from the caller's requested fade lengths and the segment's measured
// duration. Immutable once computed.
type FadeInstruction struct {
	FadeIn       float64 // seconds, clamped to [0, duration]
	FadeOut      float64 // seconds, clamped to [0, duration]
	FadeOutStart float64 // seconds into the segment where the fade-out begins
}

// PlanFade computes the fade window for a segment. Requested values are
// clamped so a fade never exceeds the segment; negative requests count as
// zero. The fade-in and fade-out windows are clamped independently -- on a
// clip shorter than fadeIn+fadeOut the two windows overlap in the middle,
// which matches how the rendering engine applies them.
func PlanFade(duration, fadeInReq, fadeOutReq float64) FadeInstruction {
	fadeIn := clamp(fadeInReq, duration)
	fadeOut := clamp(fadeOutReq, duration)

	start := duration - fadeOut
	if start < 0 {
		start = 0
	}

	return FadeInstruction{
		FadeIn:       fadeIn,
		FadeOut:      fadeOut,
		FadeOutStart: start,
	}
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
