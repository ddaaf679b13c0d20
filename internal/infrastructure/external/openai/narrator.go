package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds the OpenAI connection settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Narrator implements port.AlertNarrator using chat completions
type Narrator struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	timeout time.Duration
	logger  *zap.Logger
}

var _ port.AlertNarrator = (*Narrator)(nil)

// NewNarrator creates a new OpenAI alert narrator. A nil prompts uses the built-in prompts.
func NewNarrator(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Narrator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Narrator{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

type briefing struct {
	Briefing string `json:"briefing"`
}

// Narrate asks the model for a short executive briefing of the alerts
func (n *Narrator) Narrate(ctx context.Context, alerts []entity.Alert) (string, error) {
	p := n.prompts.AlertBriefing
	prompt, err := renderTemplate(p.UserTemplate, map[string]interface{}{
		"AsOf":   time.Now().UTC().Format(time.RFC3339),
		"Alerts": alerts,
	})
	if err != nil {
		return "", err
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		n.logger.Error("OpenAI API call failed", zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var result briefing
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Fallback: the model wrapped the object in prose or a code fence
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &result) != nil {
			n.logger.Error("Failed to parse OpenAI response",
				zap.Error(err),
				zap.String("content", content))
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
	}

	text := strings.TrimSpace(result.Briefing)
	if text == "" {
		return "", fmt.Errorf("empty briefing in OpenAI response")
	}

	n.logger.Info("Alert briefing generated",
		zap.Int("alerts", len(alerts)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return text, nil
}

// extractJSON returns the first balanced JSON object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
