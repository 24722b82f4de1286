// Package engine wraps the external audio tooling behind a capability
// interface so the mixer stays indifferent to how probing, rendering, and
// concatenation are actually performed.
package engine

import (
	"context"
	"fmt"

	"github.com/tapedeck/mixtape/internal/mix"
)

// Engine is the audio processing contract the mixer depends on. Duration
// is reported in fractional seconds; graph execution is all-or-nothing
// (never a partial output on error); concatenation preserves input order.
type Engine interface {
	// ProbeDuration reports the duration of a media file in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// ExecuteGraph renders a mix graph into outPath.
	ExecuteGraph(ctx context.Context, g *mix.Graph, outPath string) error

	// Concatenate joins the inputs verbatim, in order, into outPath.
	Concatenate(ctx context.Context, inputs []string, outPath string) error

	// ExtractSegment cuts [start, start+duration) out of input into outPath.
	ExtractSegment(ctx context.Context, input string, start, duration float64, outPath string) error
}

// ProbeError means a file's duration could not be determined. Fatal to the
// build: every timeline offset depends on accurate durations, so there is
// no safe default to substitute.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// GraphExecutionError means the engine failed to render a mix graph. The
// build orchestration recovers by falling back to plain concatenation.
type GraphExecutionError struct {
	Err error
}

func (e *GraphExecutionError) Error() string {
	return fmt.Sprintf("execute mix graph: %v", e.Err)
}

func (e *GraphExecutionError) Unwrap() error { return e.Err }

// ConcatenationError means the fallback join itself failed. There is
// nothing left to degrade to, so this surfaces to the caller.
type ConcatenationError struct {
	Err error
}

func (e *ConcatenationError) Error() string {
	return fmt.Sprintf("concatenate: %v", e.Err)
}

func (e *ConcatenationError) Unwrap() error { return e.Err }
