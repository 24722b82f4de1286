// Package audio decodes finished mixtapes to PCM and plays them at
// real-time rate for the preview stream.
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// TapeInfo identifies a finished mixtape queued for preview playback.
type TapeInfo struct {
	ID    string
	Path  string
	Title string
}
