package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the provider answers without any choices.
var ErrEmptyResponse = errors.New("no choices returned")

// ClientOptions configures a chat Client.
type ClientOptions struct {
	BaseURL string // e.g. https://openrouter.ai/api/v1
	APIKey  string
	Model   string
	SiteURL string        // Sent as HTTP-Referer
	AppName string        // Sent as X-Title
	Timeout time.Duration // Transport backstop; zero means none
}

// Client is a chat completions client for OpenAI-compatible APIs.
type Client struct {
	Model  string
	client *openai.Client
}

// NewClient creates a new LLM client.
func NewClient(opts ClientOptions) *Client {
	config := openai.DefaultConfig(opts.APIKey)
	config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	config.HTTPClient = newHTTPClient(opts.SiteURL, opts.AppName, opts.Timeout)

	return &Client{
		Model:  opts.Model,
		client: openai.NewClientWithConfig(config),
	}
}

// ChatWithMessages sends the messages as a single non-streaming completion
// request and returns the content of the first choice.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	model := params.Model
	if model == "" {
		model = c.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	// go-openai drops a zero temperature from the request body.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}
