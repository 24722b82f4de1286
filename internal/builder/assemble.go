package builder

import (
	"context"
	"errors"

	"github.com/tapedeck/mixtape/internal/engine"
	"github.com/tapedeck/mixtape/internal/mix"
)

// SegmentRequest is one local segment file plus its requested fades.
// Durations are deliberately absent: they are always measured, never
// accepted from the caller.
type SegmentRequest struct {
	Path    string
	FadeIn  float64
	FadeOut float64
}

// Assemble renders the ordered segments into one track at outPath:
// probe every file, plan the fades, compose the mix graph, execute it.
// If the engine cannot render the graph, Assemble degrades to a plain
// ordered concatenation rather than failing the build; the returned bool
// reports whether that fallback produced the result. The fallback is
// terminal -- the graph is never retried.
//
// Probe failures are fatal: without a measured duration no offset in the
// timeline can be trusted.
func Assemble(ctx context.Context, eng engine.Engine, segs []SegmentRequest, overlap float64, outPath string) (bool, error) {
	if len(segs) == 0 {
		return false, mix.ErrEmptyInput
	}

	segments := make([]mix.Segment, len(segs))
	for i, s := range segs {
		dur, err := eng.ProbeDuration(ctx, s.Path)
		if err != nil {
			return false, err
		}
		segments[i] = mix.Segment{
			Path:     s.Path,
			Duration: dur,
			FadeIn:   s.FadeIn,
			FadeOut:  s.FadeOut,
		}
	}

	g, err := mix.Compose(segments, overlap)
	if err != nil {
		return false, err
	}

	execErr := eng.ExecuteGraph(ctx, g, outPath)
	if execErr == nil {
		return false, nil
	}

	var ge *engine.GraphExecutionError
	if !errors.As(execErr, &ge) {
		return false, execErr
	}

	// Degrade, don't fail: an uncrossfaded mixtape beats no mixtape.
	files := make([]string, len(segs))
	for i, s := range segs {
		files[i] = s.Path
	}
	if err := eng.Concatenate(ctx, files, outPath); err != nil {
		return false, errors.Join(execErr, err)
	}
	return true, nil
}
