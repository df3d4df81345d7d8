package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

const DefaultAssistantMaxMessages = 20

const assistantSystemPrompt = `You are a financial aid assistant helping students complete the FAFSA and CSS Profile.
Answer in plain language. Explain what a form field means, where the value usually comes from
(tax return, W-2, bank statement) and what mistakes to avoid. Never invent personal data.
If a value looks wrong or is missing, say so clearly and mark it as a warning.
When the user has more work to do, end with a short numbered list of next steps.`

type AssistantUseCase struct {
	provider    ports.ChatProvider
	maxMessages int
	logger      *slog.Logger
}

func NewAssistantUseCase(provider ports.ChatProvider, maxMessages int, logger *slog.Logger) *AssistantUseCase {
	if maxMessages < 2 {
		maxMessages = DefaultAssistantMaxMessages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantUseCase{
		provider:    provider,
		maxMessages: maxMessages,
		logger:      logger,
	}
}

func (uc *AssistantUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	messages, err := uc.prepare(req)
	if err != nil {
		return nil, err
	}

	completion, err := uc.provider.Complete(ctx, messages)
	if err != nil {
		uc.logger.Error("assistant completion failed",
			"provider", uc.provider.Name(),
			"user_id", req.UserID,
			"code", domain.AIErrorCodeOf(err),
			"error", err,
		)
		return nil, fmt.Errorf("assistant chat: %w", err)
	}

	return &domain.ChatReply{
		Content: completion.Content,
		Model:   completion.Model,
		Usage:   completion.Usage,
		Hints:   ExtractHints(completion.Content),
	}, nil
}

// Stream yields reply chunks. Providers without native streaming produce
// the whole reply as one chunk.
func (uc *AssistantUseCase) Stream(ctx context.Context, req domain.ChatRequest) (iter.Seq2[string, error], error) {
	messages, err := uc.prepare(req)
	if err != nil {
		return nil, err
	}

	if streaming, ok := uc.provider.(ports.StreamingChatProvider); ok {
		return streaming.Stream(ctx, messages), nil
	}

	return func(yield func(string, error) bool) {
		completion, err := uc.provider.Complete(ctx, messages)
		if err != nil {
			uc.logger.Error("assistant completion failed", "provider", uc.provider.Name(), "error", err)
			yield("", fmt.Errorf("assistant stream: %w", err))
			return
		}
		yield(completion.Content, nil)
	}, nil
}

func (uc *AssistantUseCase) Health(ctx context.Context) error {
	if err := uc.provider.Health(ctx); err != nil {
		return fmt.Errorf("assistant health: %w", err)
	}
	return nil
}

func (uc *AssistantUseCase) prepare(req domain.ChatRequest) ([]domain.ChatMessage, error) {
	const op = "assistant chat"

	if err := req.Context.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	conversation := make([]domain.ChatMessage, 0, len(req.Messages))
	hasUser := false
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case domain.RoleUser:
			hasUser = true
		case domain.RoleAssistant:
		case domain.RoleSystem:
			// The fixed system prompt replaces caller supplied ones.
			continue
		default:
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unsupported role %q", m.Role))
		}
		conversation = append(conversation, m)
	}
	if !hasUser {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("at least one user message is required"))
	}

	system, err := systemMessage(req.Context)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	return slidingWindow(system, conversation, uc.maxMessages), nil
}

func systemMessage(fc domain.FormContext) (domain.ChatMessage, error) {
	prompt := assistantSystemPrompt
	if fc.Kind != "" {
		raw, err := json.Marshal(fc)
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("encode form context: %w", err)
		}
		prompt += "\n\nCurrent form context (JSON):\n" + string(raw)
	}
	return domain.ChatMessage{Role: domain.RoleSystem, Content: prompt}, nil
}

// slidingWindow keeps the system message plus the most recent turns so that
// at most maxMessages are sent.
func slidingWindow(system domain.ChatMessage, conversation []domain.ChatMessage, maxMessages int) []domain.ChatMessage {
	keep := maxMessages - 1
	if len(conversation) > keep {
		conversation = conversation[len(conversation)-keep:]
	}
	out := make([]domain.ChatMessage, 0, len(conversation)+1)
	out = append(out, system)
	return append(out, conversation...)
}
