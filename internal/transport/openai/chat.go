package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Chat completion defaults.
const (
	DefaultChatModel     = "gpt-4o-mini"
	DefaultChatMaxTokens = 300
)

// ErrEmptyCompletion is returned when the API answers without any choice text.
var ErrEmptyCompletion = errors.New("empty completion")

// ChatResponder turns a prompt into a single user-message chat completion.
type ChatResponder struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewChatResponder creates a responder. Empty model and non-positive maxTokens use defaults.
func NewChatResponder(cfg *Config, maxTokens int) *ChatResponder {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultChatMaxTokens
	}
	return &ChatResponder{client: newClient(cfg), model: model, maxTokens: maxTokens}
}

// Complete returns the trimmed text of the first choice.
func (c *ChatResponder) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
