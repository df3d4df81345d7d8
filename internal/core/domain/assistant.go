package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatCompletion struct {
	Content string     `json:"content"`
	Model   string     `json:"model,omitempty"`
	Usage   TokenUsage `json:"usage"`
}

type FormContextKind string

const (
	ContextFieldHelp     FormContextKind = "field_help"
	ContextSectionReview FormContextKind = "section_review"
	ContextGeneral       FormContextKind = "general"
)

// FormContext is the typed form state attached to an assistant request.
// Which members are meaningful depends on Kind.
type FormContext struct {
	Kind              FormContextKind   `json:"kind"`
	FormType          FormType          `json:"form_type,omitempty"`
	Section           string            `json:"section,omitempty"`
	FieldName         string            `json:"field_name,omitempty"`
	FieldValue        string            `json:"field_value,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
	CompletedSections []string          `json:"completed_sections,omitempty"`
	ProgressPercent   float64           `json:"progress_percent,omitempty"`
}

func (c FormContext) Validate() error {
	switch c.Kind {
	case "", ContextGeneral:
		return nil
	case ContextFieldHelp:
		if strings.TrimSpace(c.FieldName) == "" {
			return errors.New("field_help context requires field_name")
		}
		return nil
	case ContextSectionReview:
		if strings.TrimSpace(c.Section) == "" {
			return errors.New("section_review context requires section")
		}
		return nil
	default:
		return fmt.Errorf("unknown context kind %q", c.Kind)
	}
}

type ChatRequest struct {
	UserID   string        `json:"user_id"`
	Messages []ChatMessage `json:"messages"`
	Context  FormContext   `json:"context"`
}

// AssistantHints are best-effort structure scraped from reply text. Both
// slices may be empty even when the reply mentions warnings.
type AssistantHints struct {
	Warnings  []string `json:"warnings,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`
}

type ChatReply struct {
	Content string         `json:"content"`
	Model   string         `json:"model,omitempty"`
	Usage   TokenUsage     `json:"usage"`
	Hints   AssistantHints `json:"hints"`
}

type AIErrorCode string

const (
	AIUnauthorized       AIErrorCode = "unauthorized"
	AIRateLimited        AIErrorCode = "rate_limited"
	AIServiceUnavailable AIErrorCode = "service_unavailable"
	AIInvalidRequest     AIErrorCode = "invalid_request"
	AITimeout            AIErrorCode = "timeout"
	AIUnknown            AIErrorCode = "unknown"
)

type AIError struct {
	Code     AIErrorCode
	Provider string
	Err      error
}

func (e *AIError) Error() string {
	if e == nil {
		return "ai error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

func AIErrorCodeOf(err error) AIErrorCode {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}
	return AIUnknown
}
