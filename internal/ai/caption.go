package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"article-video-gen/internal/logging"
)

const (
	captionModel  = "gemini-2.0-flash"
	maxCaptionLen = 200
)

// CaptionGenerator writes the short text posted alongside a finished video.
// Without an API key it falls back to the article title.
type CaptionGenerator struct {
	apiKey string
	log    *logging.Logger
}

func NewCaptionGenerator(apiKey string, log *logging.Logger) *CaptionGenerator {
	return &CaptionGenerator{apiKey: apiKey, log: log}
}

func (cg *CaptionGenerator) Caption(ctx context.Context, title, excerpt string) (string, error) {
	if cg.apiKey == "" {
		return fallbackCaption(title), nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cg.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fallbackCaption(title), fmt.Errorf("genai client: %w", err)
	}

	prompt := fmt.Sprintf(
		"You write captions for short vertical videos made from blog articles. "+
			"Write one inviting caption, at most 150 characters, for a video about the article titled %q. "+
			"Article summary: %q. No hashtags, no emoji, no quotes, plain text only.",
		title, excerpt,
	)

	resp, err := client.Models.GenerateContent(ctx, captionModel, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, nil)
	if err != nil {
		return fallbackCaption(title), fmt.Errorf("generate content: %w", err)
	}

	caption := cleanCaption(resp.Text())
	if caption == "" {
		cg.log.Infof("ai: empty caption for %q, using title", title)
		return fallbackCaption(title), nil
	}
	return caption, nil
}

func fallbackCaption(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "New video"
	}
	return truncateRunes(title, maxCaptionLen)
}

// cleanCaption keeps the first line of a model answer without wrapping quotes
// or hashtags.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'“”« »")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !strings.HasPrefix(w, "#") {
			kept = append(kept, w)
		}
	}
	return truncateRunes(strings.Join(kept, " "), maxCaptionLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
