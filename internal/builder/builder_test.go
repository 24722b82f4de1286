package builder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapedeck/mixtape/internal/session"
)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Fetch(ctx context.Context, url, destDir string) (string, error) {
	return filepath.Join(destDir, "download.mp3"), nil
}

func newTestBuilder(t *testing.T, eng *fakeEngine) *Builder {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	arenas, err := session.NewManager(filepath.Join(t.TempDir(), "work"), log)
	require.NoError(t, err)

	return New(eng, fakeProvider{}, arenas, Config{DefaultOverlap: 3}, log)
}

func validSong() Song {
	return Song{URL: "https://youtu.be/abc123", Start: 10, End: 40, FadeIn: 2, FadeOut: 2}
}

func TestEnqueueRejectsEmptyRequest(t *testing.T) {
	b := newTestBuilder(t, &fakeEngine{})
	_, err := b.Enqueue(Request{})
	require.Error(t, err)
}

func TestEnqueueRejectsBadURL(t *testing.T) {
	b := newTestBuilder(t, &fakeEngine{})
	song := validSong()
	song.URL = "https://example.com/nope"
	_, err := b.Enqueue(Request{Songs: []Song{song}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestEnqueueRejectsInvertedTimes(t *testing.T) {
	b := newTestBuilder(t, &fakeEngine{})
	song := validSong()
	song.Start, song.End = 40, 10
	_, err := b.Enqueue(Request{Songs: []Song{song}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end time")
}

func waitForStage(t *testing.T, b *Builder, id string, want Stage) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, ok := b.Status(id)
		require.True(t, ok)
		if st.Stage == want {
			return st
		}
		if st.Stage == StageFailed && want != StageFailed {
			t.Fatalf("build failed: %s", st.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("build never reached stage %s", want)
	return Status{}
}

func TestBuildCompletes(t *testing.T) {
	eng := &fakeEngine{}
	b := newTestBuilder(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	id, err := b.Enqueue(Request{Songs: []Song{validSong(), validSong()}})
	require.NoError(t, err)

	st := waitForStage(t, b, id, StageDone)
	assert.False(t, st.Fallback)
	assert.NotEmpty(t, st.Title)

	out, ok := b.OutputPath(id)
	require.True(t, ok)
	assert.Equal(t, "final_mixtape.mp3", filepath.Base(out))
	assert.Equal(t, 1, eng.graphCalls)
}

func TestBuildTitleFuncUsed(t *testing.T) {
	eng := &fakeEngine{}
	b := newTestBuilder(t, eng)
	b.SetTitleFunc(func(ctx context.Context, songs []Song) string {
		return "Summer Tape"
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	id, err := b.Enqueue(Request{Songs: []Song{validSong()}})
	require.NoError(t, err)

	st := waitForStage(t, b, id, StageDone)
	assert.Equal(t, "Summer Tape", st.Title)
}

func TestOutputPathHiddenUntilDone(t *testing.T) {
	b := newTestBuilder(t, &fakeEngine{})

	id, err := b.Enqueue(Request{Songs: []Song{validSong()}})
	require.NoError(t, err)

	// Worker not running: build stays queued.
	_, ok := b.OutputPath(id)
	assert.False(t, ok)
}

func TestStatusUnknownBuild(t *testing.T) {
	b := newTestBuilder(t, &fakeEngine{})
	_, ok := b.Status("missing")
	assert.False(t, ok)
}
