package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/postpone/pkg/util"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 60
	defaultMaxChars  = 140
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	MaxChars    int
	DefaultTone string
	Timeout     time.Duration
}

// Generator writes short captions from a brief through a chat completions API
type Generator struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether an API key is configured
func (g *Generator) Enabled() bool {
	return g.cfg.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns a caption for brief, or "" without calling out when no API
// key is configured. An empty tone falls back to the configured default.
func (g *Generator) Generate(ctx context.Context, brief, tone string) (string, error) {
	if !g.Enabled() {
		return "", nil
	}
	if tone == "" {
		tone = g.cfg.DefaultTone
	}

	payload, err := json.Marshal(chatRequest{
		Model:     g.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: g.prompt(brief, tone)}},
		MaxTokens: g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode caption request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create caption request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call caption API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read caption response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("caption API returned status %d: %s", resp.StatusCode, util.TruncateRunes(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode caption response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("caption API returned no choices")
	}

	caption := util.TruncateRunes(util.FirstLine(parsed.Choices[0].Message.Content), g.cfg.MaxChars)
	g.logger.Debug("Caption generated", zap.Int("length", len([]rune(caption))))
	return caption, nil
}

func (g *Generator) prompt(brief, tone string) string {
	var b strings.Builder
	b.WriteString("Create a short Instagram caption based on this brief: ")
	b.WriteString(brief)
	if tone != "" {
		fmt.Fprintf(&b, "\nTone: %s.", tone)
	}
	fmt.Fprintf(&b, "\nReply with the caption only, at most %d characters.", g.cfg.MaxChars)
	return b.String()
}
