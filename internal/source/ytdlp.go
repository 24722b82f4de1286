package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// YTDLP downloads audio by shelling out to yt-dlp.
type YTDLP struct {
	bin string
}

// NewYTDLP creates a yt-dlp provider. Empty bin uses yt-dlp on PATH.
func NewYTDLP(bin string) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YTDLP{bin: bin}
}

// Name implements Provider.
func (y *YTDLP) Name() string { return "yt-dlp" }

// Available reports whether the yt-dlp binary can be found.
func (y *YTDLP) Available() bool {
	_, err := exec.LookPath(y.bin)
	return err == nil
}

// Fetch extracts the best audio as MP3 into destDir.
func (y *YTDLP) Fetch(ctx context.Context, url, destDir string) (string, error) {
	out := filepath.Join(destDir, "download.%(ext)s")
	cmd := exec.CommandContext(ctx, y.bin,
		"-x",
		"--audio-format", "mp3",
		"--no-playlist",
		"-o", out,
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return "", fmt.Errorf("yt-dlp: %w: %s", err, msg)
	}

	path := filepath.Join(destDir, "download.mp3")
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("yt-dlp produced no output: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("yt-dlp produced an empty file")
	}
	return path, nil
}
