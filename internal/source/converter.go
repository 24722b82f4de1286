package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Converter fetches audio through a hosted conversion service: submit the
// URL, poll until the service has extracted the audio, then download the
// result. Backs up the yt-dlp provider when the binary is missing or a
// video is blocked for it.
type Converter struct {
	apiURL   string
	apiKey   string
	interval time.Duration
	http     *http.Client
}

// NewConverter creates a converter-service provider.
func NewConverter(apiURL, apiKey string) *Converter {
	return &Converter{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiKey:   apiKey,
		interval: 3 * time.Second,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Provider.
func (c *Converter) Name() string { return "converter-api" }

type submitResp struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

type taskResp struct {
	Status string `json:"status"` // "running", "done", "failed"
	File   string `json:"file"`   // download reference when done
	Error  string `json:"error"`
}

// Fetch implements Provider.
func (c *Converter) Fetch(ctx context.Context, url, destDir string) (string, error) {
	taskID, err := c.submit(ctx, url)
	if err != nil {
		return "", err
	}

	fileRef, err := c.pollUntilDone(ctx, taskID)
	if err != nil {
		return "", err
	}

	return c.download(ctx, fileRef, destDir)
}

// submit registers a conversion task and returns its ID.
func (c *Converter) submit(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"url":    url,
		"format": "mp3",
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"/convert", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit conversion: %w", err)
	}
	defer resp.Body.Close()

	var result submitResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.TaskID == "" {
		return "", fmt.Errorf("converter rejected %s (status %d): %s", url, resp.StatusCode, result.Error)
	}
	return result.TaskID, nil
}

// pollUntilDone polls the task until the service reports completion.
func (c *Converter) pollUntilDone(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", c.apiURL+"/tasks/"+taskID, nil)
		if err != nil {
			return "", fmt.Errorf("create poll request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// transient; keep polling until the context gives up
			continue
		}

		var task taskResp
		err = json.NewDecoder(resp.Body).Decode(&task)
		resp.Body.Close()
		if err != nil {
			continue
		}

		switch task.Status {
		case "done":
			if task.File == "" {
				return "", fmt.Errorf("task %s finished with no file", taskID)
			}
			return task.File, nil
		case "failed":
			return "", fmt.Errorf("conversion task %s failed: %s", taskID, task.Error)
		}
	}
}

// download streams the converted audio to disk.
func (c *Converter) download(ctx context.Context, fileRef, destDir string) (string, error) {
	dlURL := fileRef
	if !strings.HasPrefix(fileRef, "http") {
		dlURL = c.apiURL + fileRef
	}

	req, err := http.NewRequestWithContext(ctx, "GET", dlURL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}

	path := filepath.Join(destDir, "download.mp3")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write audio: %w", err)
	}
	if n == 0 {
		os.Remove(path)
		return "", fmt.Errorf("downloaded file is empty")
	}
	return path, nil
}
