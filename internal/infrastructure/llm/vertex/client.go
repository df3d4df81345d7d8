package vertex

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
)

const providerName = "vertex"

type Config struct {
	ProjectID   string
	Location    string
	Model       string
	Temperature float64
	MaxTokens   int
}

type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

// backend is the slice of the genai API the client uses.
type backend interface {
	send(ctx context.Context, history []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error)
	stream(ctx context.Context, history []*genai.Content, last []genai.Part) responseIterator
	ping(ctx context.Context) error
}

// Client serves chat completions from a Gemini model on Vertex AI.
type Client struct {
	model    string
	backend  backend
	executor *resilience.Executor
	logger   *slog.Logger
	close    func() error
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("vertex: project id is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	gc, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := gc.GenerativeModel(cfg.Model)
	model.SetTemperature(float32(cfg.Temperature))
	if cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}
	return newClient(cfg.Model, &genaiBackend{model: model}, executor, logger, gc.Close), nil
}

func newClient(model string, b backend, executor *resilience.Executor, logger *slog.Logger, closeFn func() error) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{model: model, backend: b, executor: executor, logger: logger, close: closeFn}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatCompletion, error) {
	history, last, err := toContents(messages)
	if err != nil {
		return nil, &domain.AIError{Code: domain.AIInvalidRequest, Provider: providerName, Err: err}
	}

	var resp *genai.GenerateContentResponse
	err = c.executor.Execute(ctx, "vertex.chat", func(ctx context.Context) error {
		r, err := c.backend.send(ctx, history, last)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, classifyError)
	if err != nil {
		return nil, toAIError(err)
	}

	out := &domain.ChatCompletion{
		Content: strings.TrimSpace(responseText(resp)),
		Model:   c.model,
	}
	if resp.UsageMetadata != nil {
		out.Usage = domain.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		history, last, err := toContents(messages)
		if err != nil {
			yield("", &domain.AIError{Code: domain.AIInvalidRequest, Provider: providerName, Err: err})
			return
		}
		it := c.backend.stream(ctx, history, last)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", toAIError(err))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func (c *Client) Health(ctx context.Context) error {
	err := c.executor.Execute(ctx, "vertex.health", c.backend.ping, classifyError)
	if err != nil {
		return toAIError(err)
	}
	return nil
}

// toContents splits messages into Gemini history and the final user turn.
// The system message is folded into the first user turn because chat
// history carries no system role.
func toContents(messages []domain.ChatMessage) ([]*genai.Content, []genai.Part, error) {
	var system []string
	var turns []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, nil, errors.New("conversation must end with a user message")
	}
	if len(system) > 0 {
		sys := genai.Text(strings.Join(system, "\n\n"))
		if turns[0].Role == "user" {
			turns[0] = &genai.Content{Role: "user", Parts: append([]genai.Part{sys}, turns[0].Parts...)}
		} else {
			turns = append([]*genai.Content{{Role: "user", Parts: []genai.Part{sys}}}, turns...)
		}
	}
	last := turns[len(turns)-1]
	return turns[:len(turns)-1], last.Parts, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		break
	}
	return b.String()
}

type genaiBackend struct {
	model *genai.GenerativeModel
}

func (g *genaiBackend) send(ctx context.Context, history []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error) {
	cs := g.model.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, last...)
}

func (g *genaiBackend) stream(ctx context.Context, history []*genai.Content, last []genai.Part) responseIterator {
	cs := g.model.StartChat()
	cs.History = history
	return cs.SendMessageStream(ctx, last...)
}

func (g *genaiBackend) ping(ctx context.Context) error {
	_, err := g.model.CountTokens(ctx, genai.Text("ping"))
	return err
}
