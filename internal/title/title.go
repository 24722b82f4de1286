package title

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const nameSystemPrompt = `You name mixtapes. Given a track count, invent a short evocative
title someone would scribble on a cassette label. 2 to 5 words, no quotes,
no explanation, no emoji. Output only the title.`

// thinkTagRE strips reasoning-model scratchpads from output.
var thinkTagRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Generator produces mixtape titles via Ollama.
type Generator struct {
	client *Client
}

// NewGenerator creates a title generator over an Ollama client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Name asks the model for a mixtape title. The error is advisory; callers
// fall back to a deterministic name.
func (g *Generator) Name(ctx context.Context, trackCount int) (string, error) {
	prompt := fmt.Sprintf("Name a mixtape with %d tracks.", trackCount)
	raw, err := g.client.Generate(ctx, nameSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	name := cleanName(raw)
	if name == "" {
		return "", fmt.Errorf("model returned no usable title")
	}
	return name, nil
}

// cleanName strips model artifacts: think tags, surrounding quotes,
// "Title:" style preambles, and anything past the first line.
func cleanName(s string) string {
	s = thinkTagRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	for _, prefix := range []string{"Title:", "Mixtape:", "Name:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	s = strings.Trim(s, `"'“”`)
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		s = strings.TrimSpace(s[:80])
	}
	return s
}
