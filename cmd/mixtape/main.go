package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tapedeck/mixtape/internal/api"
	"github.com/tapedeck/mixtape/internal/audio"
	"github.com/tapedeck/mixtape/internal/builder"
	"github.com/tapedeck/mixtape/internal/config"
	"github.com/tapedeck/mixtape/internal/engine"
	"github.com/tapedeck/mixtape/internal/session"
	"github.com/tapedeck/mixtape/internal/source"
	"github.com/tapedeck/mixtape/internal/stream"
	"github.com/tapedeck/mixtape/internal/title"
	"github.com/tapedeck/mixtape/internal/web"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("tapedeck starting up...")

	eng := engine.NewFFmpeg(engine.Options{
		FFmpegBin:  cfg.FFmpegBin,
		FFprobeBin: cfg.FFprobeBin,
		Bitrate:    cfg.Bitrate,
	}, log)
	if err := eng.CheckTools(); err != nil {
		log.Fatalf("required tools missing: %v", err)
	}

	arenas, err := session.NewManager(cfg.WorkDir, log)
	if err != nil {
		log.Fatalf("work dir: %v", err)
	}
	go arenas.Run(ctx, 10*time.Minute, cfg.Retention)

	// Acquisition chain: yt-dlp first, converter API as fallback.
	var providers []source.Provider
	ytdlp := source.NewYTDLP(cfg.YTDLPBin)
	if ytdlp.Available() {
		providers = append(providers, ytdlp)
	} else {
		log.Warn("yt-dlp not found, direct downloads disabled")
	}
	if cfg.ConverterAPIURL != "" {
		providers = append(providers, source.NewConverter(cfg.ConverterAPIURL, cfg.ConverterAPIKey))
	}
	if len(providers) == 0 {
		log.Fatal("no song source available: install yt-dlp or set MIXTAPE_CONVERTER_URL")
	}
	chain := source.NewChain(log, cfg.FetchAttempts, providers...)

	builds := builder.New(eng, chain, arenas, builder.Config{
		DefaultOverlap: cfg.OverlapDuration,
		QueueSize:      cfg.QueueSize,
	}, log)

	// Ollama LLM (optional -- names finished mixtapes)
	if cfg.OllamaURL != "" {
		client := title.NewClient(cfg.OllamaURL, cfg.OllamaModel, log)
		readyCtx, readyCancel := context.WithTimeout(ctx, 10*time.Second)
		available := client.Available(readyCtx)
		readyCancel()
		if available {
			gen := title.NewGenerator(client)
			builds.SetTitleFunc(func(ctx context.Context, songs []builder.Song) string {
				name, err := gen.Name(ctx, len(songs))
				if err != nil {
					log.WithError(err).Warn("title generation failed")
					return ""
				}
				return name
			})
			log.Infof("Ollama connected: %s (LLM mixtape titles enabled)", cfg.OllamaModel)
		} else {
			log.Warn("Ollama not available, using deterministic titles")
		}
	} else {
		log.Info("Ollama not configured (set OLLAMA_URL to enable LLM titles)")
	}

	go builds.Run(ctx)

	// Preview stream: decode finished mixtapes and fan out to listeners.
	player := audio.NewPlayer(cfg.FFmpegBin, log)
	go player.Run(ctx)

	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, player.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, log)
	httpStream := stream.NewHTTPHandler(broadcaster, cfg.FFmpegBin, cfg.Bitrate, log)

	router := api.NewRouter(api.Options{
		Builds: builds,
		Preview: &preview{
			player:      player,
			broadcaster: broadcaster,
			webrtc:      webrtcHandler,
		},
		StreamHandler: httpStream,
		WebRTCHandler: webrtcHandler,
		Index:         indexHandler(),
		Log:           log,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("tapedeck live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

// preview bridges the player and stream handlers into the API's
// preview surface.
type preview struct {
	player      *audio.Player
	broadcaster *stream.Broadcaster
	webrtc      *stream.WebRTCHandler
}

func (p *preview) Status() (string, string, time.Duration, time.Duration) {
	tape, pos, dur := p.player.Status()
	return tape.ID, tape.Title, pos, dur
}

func (p *preview) ListenerCount() int {
	return p.broadcaster.ListenerCount() + p.webrtc.PeerCount()
}

func (p *preview) Enqueue(id, path, title string) bool {
	return p.player.Enqueue(audio.TapeInfo{ID: id, Path: path, Title: title})
}

func (p *preview) Skip() {
	p.player.Skip()
}

func indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})
}
