package data

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// AIClient is a thin wrapper over an OpenAI-compatible chat completion API,
// used by bots that want an AI-backed command handler.
type AIClient struct {
	client *openai.Client
	model  string
}

// NewAIClient creates a client. baseURL may be empty for the default API
// endpoint; model may be empty for gpt-4o-mini.
func NewAIClient(apiKey, baseURL, model string) *AIClient {
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &AIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete sends one prompt and returns the response text.
func (c *AIClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}
