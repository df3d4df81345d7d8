package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
)

const providerName = "openai"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to any OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
	executor    *resilience.Executor
	logger      *slog.Logger
}

func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		// Streaming responses outlive any fixed client timeout; deadlines come from ctx.
		httpClient: &http.Client{},
		executor:   executor,
		logger:     logger,
	}, nil
}

func (c *Client) Name() string { return providerName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatCompletion, error) {
	req := c.buildRequest(messages, false)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp chatResponse
	err := c.executor.Execute(ctx, "openai.chat", func(ctx context.Context) error {
		return c.postJSON(ctx, "/chat/completions", req, &resp, "chat")
	}, classifyError)
	if err != nil {
		return nil, toAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.AIError{Code: domain.AIUnknown, Provider: providerName, Err: errors.New("empty choices")}
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &domain.ChatCompletion{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   model,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Health lists models, which is cheap and exercises authentication.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.executor.Execute(ctx, "openai.health", func(ctx context.Context) error {
		return c.getJSON(ctx, "/models", &resp, "health")
	}, classifyError)
	if err != nil {
		return toAIError(err)
	}
	return nil
}

func (c *Client) buildRequest(messages []domain.ChatMessage, stream bool) chatRequest {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return chatRequest{
		Model:       c.model,
		Messages:    out,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
}
