// Package source acquires audio for a locator (a YouTube URL) through an
// ordered chain of provider strategies. Which service actually performs
// the extraction is invisible to the mixer; it just receives a local file.
package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Provider fetches the audio behind a locator into destDir and returns
// the path of the downloaded file.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

var youtubeRE = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/(watch\?v=|embed/)|youtu\.be/)[\w\-]+`)

// ValidLocator reports whether the locator looks like a YouTube URL.
// Validation happens before any provider is tried.
func ValidLocator(url string) bool {
	return youtubeRE.MatchString(strings.TrimSpace(url))
}

// Chain tries each provider in order, first success wins. Every provider
// gets Attempts tries before the chain moves on; the primary service is
// flaky enough that one retry pays for itself.
type Chain struct {
	providers []Provider
	attempts  int
	log       *logrus.Entry
}

// NewChain builds a provider chain. attempts < 1 means one try each.
func NewChain(log *logrus.Logger, attempts int, providers ...Provider) *Chain {
	if attempts < 1 {
		attempts = 1
	}
	return &Chain{
		providers: providers,
		attempts:  attempts,
		log:       log.WithField("component", "source"),
	}
}

// Name identifies the chain in logs.
func (c *Chain) Name() string { return "chain" }

// Fetch walks the providers in order until one delivers a file.
func (c *Chain) Fetch(ctx context.Context, url, destDir string) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("source: no providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		for attempt := 1; attempt <= c.attempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			path, err := p.Fetch(ctx, url, destDir)
			if err == nil {
				c.log.WithFields(logrus.Fields{
					"provider": p.Name(),
					"attempt":  attempt,
				}).Info("fetch succeeded")
				return path, nil
			}

			lastErr = err
			c.log.WithFields(logrus.Fields{
				"provider": p.Name(),
				"attempt":  attempt,
			}).WithError(err).Warn("fetch failed")
		}
	}
	return "", fmt.Errorf("source: all providers failed for %s: %w", url, lastErr)
}
