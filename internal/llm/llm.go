// Package llm talks to an OpenAI-compatible API to suggest marks for answers
// awaiting manual review. Suggestions are advisory and never stored.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/llm/prompts"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// suggestResponse is the JSON object the model is asked to return.
type suggestResponse struct {
	Marks    float64 `json:"marks"`
	Feedback string  `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client. An empty variant selects the standard prompt.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if err := prompts.Load(); err != nil {
		return nil, err
	}
	if variant == "" {
		variant = string(prompts.PromptStandard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q (want strict, standard or lenient)", variant)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Suggest asks the model for a mark and feedback on one answer. The mark is
// clamped to the question's range.
func (c *Client) Suggest(ctx context.Context, q model.Question, ans model.Answer) (model.Suggestion, error) {
	prompt, err := prompts.BuildSuggestPrompt(c.variant, q, ans)
	if err != nil {
		return model.Suggestion{}, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return model.Suggestion{}, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Suggestion{}, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "answer_id", ans.ID, "raw", raw)

	parsed, err := parseSuggestion(raw)
	if err != nil {
		return model.Suggestion{}, err
	}
	return model.Suggestion{
		AnswerID: ans.ID,
		Marks:    clampMarks(parsed.Marks, q.Marks),
		MaxMarks: q.Marks,
		Feedback: strings.TrimSpace(parsed.Feedback),
		Model:    c.model,
		Variant:  string(c.variant),
		Advisory: true,
	}, nil
}

// parseSuggestion decodes the model reply, tolerating a fenced code block.
func parseSuggestion(raw string) (suggestResponse, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var out suggestResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &out); err != nil {
		return out, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return out, nil
}

func clampMarks(v, limit float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return math.Round(v*100) / 100
}
