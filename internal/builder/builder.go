// Package builder turns mixtape requests into finished MP3s. Each build
// runs as one strictly sequential pipeline: acquire every song, extract
// the excerpts, assemble the mix, clean up. A single worker drains the
// queue so concurrent requests never contend for the external tools.
package builder

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tapedeck/mixtape/internal/engine"
	"github.com/tapedeck/mixtape/internal/mix"
	"github.com/tapedeck/mixtape/internal/session"
	"github.com/tapedeck/mixtape/internal/source"
)

// Song is one requested excerpt in playback order.
type Song struct {
	URL     string  `json:"url"`
	Start   float64 `json:"start_time"`
	End     float64 `json:"end_time"`
	FadeIn  float64 `json:"fade_in"`
	FadeOut float64 `json:"fade_out"`
}

// Request is a full mixtape order. Overlap <= 0 uses the configured
// default.
type Request struct {
	Songs   []Song  `json:"songs"`
	Overlap float64 `json:"overlap"`
}

// Stage is where a build currently is in its pipeline.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageAcquiring Stage = "acquiring"
	StageMixing    Stage = "mixing"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Status is the externally visible state of one build.
type Status struct {
	ID       string    `json:"id"`
	Stage    Stage     `json:"stage"`
	Song     int       `json:"song"`               // 1-based song being acquired, 0 otherwise
	Title    string    `json:"title,omitempty"`    // set once the build finishes
	Fallback bool      `json:"fallback,omitempty"` // result came from plain concatenation
	Error    string    `json:"error,omitempty"`
	Created  time.Time `json:"created"`

	outputPath string
}

// TitleFunc names a finished mixtape. Empty return falls back to a
// deterministic name.
type TitleFunc func(ctx context.Context, songs []Song) string

// Config holds builder parameters.
type Config struct {
	DefaultOverlap float64
	QueueSize      int
}

// Builder owns the build queue and per-build state.
type Builder struct {
	eng      engine.Engine
	provider source.Provider
	arenas   *session.Manager
	cfg      Config
	log      *logrus.Entry

	titleFn TitleFunc

	mu     sync.RWMutex
	builds map[string]*Status

	queue chan queuedJob
}

type queuedJob struct {
	id    string
	req   Request
	arena *session.Arena
}

// New creates a Builder.
func New(eng engine.Engine, provider source.Provider, arenas *session.Manager, cfg Config, log *logrus.Logger) *Builder {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 8
	}
	if cfg.DefaultOverlap <= 0 {
		cfg.DefaultOverlap = 3.0
	}
	return &Builder{
		eng:      eng,
		provider: provider,
		arenas:   arenas,
		cfg:      cfg,
		log:      log.WithField("component", "builder"),
		builds:   make(map[string]*Status),
		queue:    make(chan queuedJob, cfg.QueueSize),
	}
}

// SetTitleFunc installs an optional mixtape title generator.
func (b *Builder) SetTitleFunc(fn TitleFunc) {
	b.titleFn = fn
}

// Enqueue validates a request, allocates its arena, and queues the build.
// Returns the build ID.
func (b *Builder) Enqueue(req Request) (string, error) {
	if len(req.Songs) == 0 {
		return "", mix.ErrEmptyInput
	}
	for i, song := range req.Songs {
		if !source.ValidLocator(song.URL) {
			return "", fmt.Errorf("song %d: invalid URL", i+1)
		}
		if song.End <= song.Start {
			return "", fmt.Errorf("song %d: end time must be greater than start time", i+1)
		}
	}
	if req.Overlap <= 0 {
		req.Overlap = b.cfg.DefaultOverlap
	}

	arena, err := b.arenas.Create()
	if err != nil {
		return "", err
	}

	st := &Status{ID: arena.ID, Stage: StageQueued, Created: time.Now()}
	b.mu.Lock()
	b.builds[arena.ID] = st
	b.mu.Unlock()

	select {
	case b.queue <- queuedJob{id: arena.ID, req: req, arena: arena}:
		return arena.ID, nil
	default:
		b.fail(arena.ID, fmt.Errorf("build queue is full"))
		arena.Release()
		return "", fmt.Errorf("build queue is full, try again later")
	}
}

// Status returns the state of a build.
func (b *Builder) Status(id string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.builds[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// OutputPath returns the finished mixtape file for a completed build.
func (b *Builder) OutputPath(id string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.builds[id]
	if !ok || st.Stage != StageDone {
		return "", false
	}
	return st.outputPath, true
}

// QueueSize returns the number of builds waiting.
func (b *Builder) QueueSize() int {
	return len(b.queue)
}

// Run drains the queue until ctx is cancelled. One build at a time.
func (b *Builder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-b.queue:
			b.process(ctx, job)
		}
	}
}

// process runs one build end to end. The arena is released on failure and
// kept on success until the retention sweep or download cleanup claims it.
func (b *Builder) process(ctx context.Context, job queuedJob) {
	log := b.log.WithField("build", job.id)
	start := time.Now()

	segs, err := b.acquire(ctx, job, log)
	if err != nil {
		b.fail(job.id, err)
		job.arena.Release()
		return
	}

	b.setStage(job.id, StageMixing, 0)
	outPath := job.arena.Path("final_mixtape.mp3")

	fallback, err := Assemble(ctx, b.eng, segs, job.req.Overlap, outPath)
	if err != nil {
		b.fail(job.id, err)
		job.arena.Release()
		return
	}
	if fallback {
		log.Warn("mix graph failed, produced plain concatenation instead")
	}

	// Segment files served their purpose.
	for _, s := range segs {
		os.Remove(s.Path)
	}

	title := b.title(ctx, job.req.Songs)

	b.mu.Lock()
	if st, ok := b.builds[job.id]; ok {
		st.Stage = StageDone
		st.Song = 0
		st.Title = title
		st.Fallback = fallback
		st.outputPath = outPath
	}
	b.mu.Unlock()

	log.WithFields(logrus.Fields{
		"songs":    len(job.req.Songs),
		"overlap":  job.req.Overlap,
		"fallback": fallback,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("mixtape ready")
}

// acquire downloads every song and cuts its excerpt into the arena.
func (b *Builder) acquire(ctx context.Context, job queuedJob, log *logrus.Entry) ([]SegmentRequest, error) {
	segs := make([]SegmentRequest, 0, len(job.req.Songs))

	for i, song := range job.req.Songs {
		b.setStage(job.id, StageAcquiring, i+1)
		log.WithFields(logrus.Fields{"song": i + 1, "url": song.URL}).Info("acquiring")

		dlDir := job.arena.Path(fmt.Sprintf("dl_%d", i))
		if err := os.Mkdir(dlDir, 0o755); err != nil {
			return nil, fmt.Errorf("song %d: %w", i+1, err)
		}

		downloaded, err := b.provider.Fetch(ctx, song.URL, dlDir)
		if err != nil {
			return nil, fmt.Errorf("song %d: %w", i+1, err)
		}

		start := song.Start
		if start < 0 {
			start = 0
		}
		segPath := job.arena.Path(fmt.Sprintf("segment_%d.mp3", i))
		if err := b.eng.ExtractSegment(ctx, downloaded, start, song.End-start, segPath); err != nil {
			return nil, fmt.Errorf("song %d: %w", i+1, err)
		}

		// Full download is no longer needed once the excerpt is cut.
		os.RemoveAll(dlDir)

		segs = append(segs, SegmentRequest{
			Path:    segPath,
			FadeIn:  song.FadeIn,
			FadeOut: song.FadeOut,
		})
	}
	return segs, nil
}

// title asks the optional title generator, falling back to a
// deterministic name. A slow generator never stalls the build.
func (b *Builder) title(ctx context.Context, songs []Song) string {
	if b.titleFn != nil {
		titleCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		t := b.titleFn(titleCtx, songs)
		cancel()
		if t != "" {
			return t
		}
	}
	return fmt.Sprintf("Mixtape %s (%d tracks)", time.Now().Format("2006-01-02"), len(songs))
}

func (b *Builder) setStage(id string, stage Stage, song int) {
	b.mu.Lock()
	if st, ok := b.builds[id]; ok {
		st.Stage = stage
		st.Song = song
	}
	b.mu.Unlock()
}

func (b *Builder) fail(id string, err error) {
	b.log.WithField("build", id).WithError(err).Error("build failed")
	b.mu.Lock()
	if st, ok := b.builds[id]; ok {
		st.Stage = StageFailed
		st.Song = 0
		st.Error = err.Error()
	}
	b.mu.Unlock()
}
