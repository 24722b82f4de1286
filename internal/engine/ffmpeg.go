package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tapedeck/mixtape/internal/mix"
)

// FFmpeg implements Engine by shelling out to the ffmpeg and ffprobe
// binaries, one process per operation.
type FFmpeg struct {
	ffmpegBin  string
	ffprobeBin string
	bitrate    string
	log        *logrus.Entry
}

// Options configures the FFmpeg engine. Zero values fall back to the
// binaries on PATH and 192k output.
type Options struct {
	FFmpegBin  string
	FFprobeBin string
	Bitrate    string
}

// NewFFmpeg creates an ffmpeg-backed engine.
func NewFFmpeg(opts Options, log *logrus.Logger) *FFmpeg {
	if opts.FFmpegBin == "" {
		opts.FFmpegBin = "ffmpeg"
	}
	if opts.FFprobeBin == "" {
		opts.FFprobeBin = "ffprobe"
	}
	if opts.Bitrate == "" {
		opts.Bitrate = "192k"
	}
	return &FFmpeg{
		ffmpegBin:  opts.FFmpegBin,
		ffprobeBin: opts.FFprobeBin,
		bitrate:    opts.Bitrate,
		log:        log.WithField("component", "engine"),
	}
}

// CheckTools verifies the configured binaries are present on the system.
func (f *FFmpeg) CheckTools() error {
	for _, bin := range []string{f.ffmpegBin, f.ffprobeBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required tool %s not found: %w", bin, err)
		}
	}
	return nil
}

// ProbeDuration runs ffprobe and parses the duration from its CSV output.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}
	if info.Size() == 0 {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("file is empty")}
	}

	cmd := exec.CommandContext(ctx, f.ffprobeBin,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}

	dur, err := parseDuration(string(out))
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}
	return dur, nil
}

// parseDuration converts ffprobe's csv=p=0 output to seconds.
func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	dur, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", dur)
	}
	return dur, nil
}

// ExecuteGraph renders the mix graph into outPath. A failed render leaves
// no partial output behind.
func (f *FFmpeg) ExecuteGraph(ctx context.Context, g *mix.Graph, outPath string) error {
	args := f.graphArgs(g, outPath)

	f.log.WithFields(logrus.Fields{
		"inputs": len(g.Inputs),
		"output": filepath.Base(outPath),
	}).Debug("rendering mix graph")

	if err := f.run(ctx, args); err != nil {
		os.Remove(outPath)
		return &GraphExecutionError{Err: err}
	}
	if err := verifyOutput(outPath); err != nil {
		os.Remove(outPath)
		return &GraphExecutionError{Err: err}
	}
	return nil
}

// graphArgs builds the full ffmpeg argument list for a mix graph. The
// single-input passthrough uses a plain -af chain; everything else goes
// through -filter_complex with an explicit sink mapping.
func (f *FFmpeg) graphArgs(g *mix.Graph, outPath string) []string {
	var args []string
	for _, in := range g.Inputs {
		args = append(args, "-i", in)
	}

	if g.Sink != "" {
		args = append(args, "-filter_complex", g.FilterComplex(), "-map", g.Sink)
	} else if len(g.Chains) > 0 {
		args = append(args, "-af", g.AudioFilter())
	}

	args = append(args, "-acodec", "libmp3lame", "-b:a", f.bitrate, "-y", outPath)
	return args
}

// Concatenate joins the inputs losslessly via the concat demuxer.
func (f *FFmpeg) Concatenate(ctx context.Context, inputs []string, outPath string) error {
	if len(inputs) == 0 {
		return &ConcatenationError{Err: fmt.Errorf("no files to concatenate")}
	}

	list, err := os.CreateTemp(filepath.Dir(outPath), "concat_*.txt")
	if err != nil {
		return &ConcatenationError{Err: err}
	}
	defer os.Remove(list.Name())

	body, err := concatListBody(inputs)
	if err != nil {
		list.Close()
		return &ConcatenationError{Err: err}
	}
	if _, err := list.WriteString(body); err != nil {
		list.Close()
		return &ConcatenationError{Err: err}
	}
	list.Close()

	args := []string{
		"-f", "concat", "-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		"-y", outPath,
	}
	if err := f.run(ctx, args); err != nil {
		os.Remove(outPath)
		return &ConcatenationError{Err: err}
	}
	if err := verifyOutput(outPath); err != nil {
		os.Remove(outPath)
		return &ConcatenationError{Err: err}
	}
	return nil
}

// concatListBody renders the concat demuxer list file: one absolute path
// per line, in input order.
func concatListBody(inputs []string) (string, error) {
	var sb strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "file '%s'\n", abs)
	}
	return sb.String(), nil
}

// ExtractSegment cuts an excerpt out of input, re-encoded to MP3 so the
// cut lands exactly where requested.
func (f *FFmpeg) ExtractSegment(ctx context.Context, input string, start, duration float64, outPath string) error {
	args := []string{
		"-i", input,
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-acodec", "libmp3lame", "-b:a", f.bitrate,
		"-y", outPath,
	}
	if err := f.run(ctx, args); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("extract segment from %s: %w", input, err)
	}
	if err := verifyOutput(outPath); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("extract segment from %s: %w", input, err)
	}
	return nil
}

// run executes ffmpeg with the given args, folding stderr into the error.
func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("%s: %w: %s", f.ffmpegBin, err, msg)
	}
	return nil
}

// verifyOutput rejects missing or zero-length results. An operation that
// did not fully produce its output must fail, never hand back a truncated
// file as success.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output %s is empty", path)
	}
	return nil
}
