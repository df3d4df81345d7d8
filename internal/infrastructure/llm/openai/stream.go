package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Stream yields content deltas. Only opening the stream is retried; once
// bytes have been yielded a failure ends the sequence with an error.
func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := c.buildRequest(messages, true)

		var resp *http.Response
		err := c.executor.Execute(ctx, "openai.chat", func(ctx context.Context) error {
			r, err := c.do(ctx, http.MethodPost, "/chat/completions", req, "text/event-stream", "chat stream")
			if err != nil {
				return err
			}
			resp = r
			return nil
		}, classifyError)
		if err != nil {
			yield("", toAIError(err))
			return
		}
		defer resp.Body.Close()

		stopped := false
		err = readSSE(resp.Body, func(data string) error {
			if data == "[DONE]" {
				return errStreamDone
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return nil
			}
			if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
				return fmt.Errorf("openai stream error: %s", chunk.Error)
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					stopped = true
					return errStreamDone
				}
			}
			return nil
		})
		if stopped || err == nil || errors.Is(err, errStreamDone) {
			return
		}
		yield("", toAIError(err))
	}
}

var errStreamDone = errors.New("stream done")

// readSSE calls onData with the payload of every server-sent event.
func readSSE(r io.Reader, onData func(data string) error) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		if strings.TrimSpace(data) == "" {
			return nil
		}
		return onData(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if ferr := flush(); ferr != nil {
				return ferr
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if eof {
			return flush()
		}
	}
}
