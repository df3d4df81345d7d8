package httpadapter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func (rt *Router) decodeChat(w http.ResponseWriter, r *http.Request) (domain.ChatRequest, bool) {
	var req domain.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if req.UserID == "" {
		req.UserID = r.Header.Get(userIDHeader)
	}
	return req, true
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeChat(w, r)
	if !ok {
		return
	}

	start := time.Now()
	reply, err := rt.svc.Assistant.Chat(r.Context(), req)
	rt.recordAssistant("chat", start, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordTokenUsage("api", "chat", reply.Model, reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
	}
	writeJSON(w, http.StatusOK, reply)
}

// streamChat relays reply chunks as SSE. Failures before the first chunk are
// plain JSON errors; later failures become an "error" event.
func (rt *Router) streamChat(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeChat(w, r)
	if !ok {
		return
	}

	start := time.Now()
	chunks, err := rt.svc.Assistant.Stream(r.Context(), req)
	if err != nil {
		rt.recordAssistant("chat_stream", start, err)
		writeError(w, r, err)
		return
	}

	var stream *sseWriter
	for chunk, chunkErr := range chunks {
		if chunkErr != nil {
			rt.recordAssistant("chat_stream", start, chunkErr)
			if stream == nil {
				writeError(w, r, chunkErr)
				return
			}
			slog.Error("assistant stream failed",
				"request_id", requestIDFromContext(r.Context()),
				"error", chunkErr,
			)
			status := mapErrorToHTTPStatus(chunkErr)
			_ = stream.event("error", map[string]string{
				"error": publicMessage(chunkErr, status),
				"code":  string(domain.AIErrorCodeOf(chunkErr)),
			})
			return
		}
		if stream == nil {
			stream, err = newSSEWriter(w)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
				return
			}
		}
		if err := stream.data(map[string]string{"content": chunk}); err != nil {
			return
		}
	}

	rt.recordAssistant("chat_stream", start, nil)
	if stream == nil {
		stream, err = newSSEWriter(w)
		if err != nil {
			return
		}
	}
	_ = stream.done()
}

func (rt *Router) assistantHealth(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Assistant.Health(r.Context()); err != nil {
		slog.Warn("assistant health check failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"code":   string(domain.AIErrorCodeOf(err)),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) recordAssistant(endpoint string, start time.Time, err error) {
	if rt.httpMetrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.AIErrorCodeOf(err))
	}
	rt.httpMetrics.RecordAssistant("api", endpoint, outcome, time.Since(start))
}
