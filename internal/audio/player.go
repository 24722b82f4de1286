package audio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type decodedTape struct {
	info    TapeInfo
	samples []int16
}

// Player decodes queued mixtapes and emits PCM frames at real-time rate.
// Tapes arrive fully mixed, so playback is strictly sequential.
type Player struct {
	ffmpegBin string
	tapeCh    chan TapeInfo
	frameCh   chan []int16
	skipCh    chan struct{}
	log       *logrus.Entry

	mu           sync.RWMutex
	currentTape  TapeInfo
	tapePosition time.Duration
	tapeDuration time.Duration
}

// NewPlayer creates a preview player decoding with the given ffmpeg binary.
func NewPlayer(ffmpegBin string, log *logrus.Logger) *Player {
	return &Player{
		ffmpegBin: ffmpegBin,
		tapeCh:    make(chan TapeInfo, 8),
		frameCh:   make(chan []int16, 100),
		skipCh:    make(chan struct{}, 1),
		log:       log.WithField("component", "player"),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Player) Frames() <-chan []int16 {
	return p.frameCh
}

// Enqueue adds a finished mixtape to the playback queue. Returns false
// when the queue is full.
func (p *Player) Enqueue(t TapeInfo) bool {
	select {
	case p.tapeCh <- t:
		return true
	default:
		return false
	}
}

// QueueSize returns the number of tapes waiting in the queue.
func (p *Player) QueueSize() int {
	return len(p.tapeCh)
}

// Skip interrupts the current tape.
func (p *Player) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// Status returns current playback info.
func (p *Player) Status() (tape TapeInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTape, p.tapePosition, p.tapeDuration
}

// Run starts the player. Blocks until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.tapeCh:
			if !ok {
				return
			}
			samples, err := DecodeFile(p.ffmpegBin, t.Path)
			if err != nil {
				p.log.WithField("path", t.Path).Warnf("decode failed: %v", err)
				continue
			}
			p.playTape(ctx, ticker, &decodedTape{info: t, samples: samples})
		}
	}
}

func (p *Player) playTape(ctx context.Context, ticker *time.Ticker, dt *decodedTape) {
	totalFrames := len(dt.samples) / FrameSamples
	p.setTape(dt.info, totalFrames)
	p.log.WithFields(logrus.Fields{
		"id":     dt.info.ID,
		"title":  dt.info.Title,
		"frames": totalFrames,
	}).Info("Now playing")

	for i := 0; i < totalFrames; i++ {
		if !p.sendFrame(ctx, ticker, dt.samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return
		}
		p.updatePosition(i)
	}
}

// sendFrame waits for the ticker then sends a frame. Returns false on skip or cancel.
func (p *Player) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.skipCh:
		p.log.Info("Tape skipped")
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Player) setTape(info TapeInfo, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTape = info
	p.tapePosition = 0
	p.tapeDuration = time.Duration(totalFrames) * FrameDuration
}

func (p *Player) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.tapePosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
