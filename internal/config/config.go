package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Working area
	WorkDir   string        // root for per-build arenas
	Retention time.Duration // how long finished builds stay downloadable
	QueueSize int           // pending builds before requests are rejected

	// Mixing behavior
	OverlapDuration float64 // seconds of crossfade overlap per join
	Bitrate         string  // MP3 output bitrate

	// External tools
	FFmpegBin  string
	FFprobeBin string
	YTDLPBin   string

	// Converter service fallback (optional)
	ConverterAPIURL string
	ConverterAPIKey string
	FetchAttempts   int // tries per provider before moving down the chain

	// Ollama (optional -- LLM mixtape titles)
	OllamaURL   string
	OllamaModel string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("MIXTAPE_PORT", 8080),

		WorkDir:   envStr("MIXTAPE_WORK_DIR", "temp"),
		Retention: time.Duration(envInt("MIXTAPE_RETENTION_MINUTES", 60)) * time.Minute,
		QueueSize: envInt("MIXTAPE_QUEUE_SIZE", 8),

		OverlapDuration: envFloat("MIXTAPE_OVERLAP", 3.0),
		Bitrate:         envStr("MIXTAPE_BITRATE", "192k"),

		FFmpegBin:  envStr("MIXTAPE_FFMPEG", "ffmpeg"),
		FFprobeBin: envStr("MIXTAPE_FFPROBE", "ffprobe"),
		YTDLPBin:   envStr("MIXTAPE_YTDLP", "yt-dlp"),

		ConverterAPIURL: envStr("MIXTAPE_CONVERTER_URL", ""),
		ConverterAPIKey: envStr("MIXTAPE_CONVERTER_KEY", ""),
		FetchAttempts:   envInt("MIXTAPE_FETCH_ATTEMPTS", 2),

		OllamaURL:   envStr("OLLAMA_URL", ""),
		OllamaModel: envStr("OLLAMA_MODEL", "llama3.2"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
