package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborview-health/voice-scheduler/internal/archive"
	"github.com/harborview-health/voice-scheduler/internal/dialog"
	"github.com/harborview-health/voice-scheduler/internal/oracle"
)

// chatCompletionRequest is the OpenAI-compatible request the voice gateway
// sends, one POST per caller turn. Gateway-specific call context rides along
// in call/customer/metadata.
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`

	Call *struct {
		ID string `json:"id"`
	} `json:"call,omitempty"`
	Customer *struct {
		Number string `json:"number"`
	} `json:"customer,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   chatCompletionUsage    `json:"usage"`
}

type chatCompletionChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiErrorBody struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var req chatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	callID := s.resolveCallID(r, &req)
	rawPhone := resolveCallerPhone(&req)
	messages := toOracleMessages(req.Messages)

	s.recordInboundTurn(ctx, callID, rawPhone, messages)

	result, err := s.engine.Respond(ctx, callID, messages, rawPhone)
	if err != nil {
		s.logger.Error("turn failed", "call_id", callID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeError(w, status, "failed to process turn")
		return
	}

	s.recordOutboundTurn(ctx, callID, result)

	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	created := time.Now().Unix()
	id := fmt.Sprintf("chatcmpl-%d-%s", created, shortCallID(callID))

	if req.Stream && s.cfg.StreamEnabled {
		s.writeStreamed(w, id, created, model, result.Reply)
		return
	}

	stop := "stop"
	writeJSON(w, http.StatusOK, chatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []chatCompletionChoice{{
			Index:        0,
			Message:      &chatMessage{Role: "assistant", Content: result.Reply},
			FinishReason: &stop,
		}},
	})
}

// writeStreamed emits the reply as two SSE chunks and a [DONE] marker. The
// gateway expects streaming shape, not token-by-token latency, so the whole
// reply goes in the first chunk.
func (s *Server) writeStreamed(w http.ResponseWriter, id string, created int64, model, reply string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	writeChunk := func(choice chatCompletionChoice) {
		chunk := chatCompletionResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []chatCompletionChoice{choice},
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	writeChunk(chatCompletionChoice{
		Index: 0,
		Delta: &chatMessage{Role: "assistant", Content: reply},
	})
	stop := "stop"
	writeChunk(chatCompletionChoice{
		Index:        0,
		Delta:        &chatMessage{},
		FinishReason: &stop,
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// resolveCallID finds a stable per-call identifier: explicit call object,
// then the configured header, then the configured metadata path, then a
// generated one (which makes every request its own session).
func (s *Server) resolveCallID(r *http.Request, req *chatCompletionRequest) string {
	if req.Call != nil && req.Call.ID != "" {
		return req.Call.ID
	}
	if v := strings.TrimSpace(r.Header.Get(s.cfg.CallIDHeader)); v != "" {
		return v
	}
	if v := lookupPath(req.Metadata, s.cfg.CallIDPath); v != "" {
		return v
	}
	return "call-" + uuid.NewString()
}

// lookupPath resolves a dotted path like "metadata.vapiCallId" against the
// request metadata. The leading "metadata." segment refers to the map itself.
func lookupPath(metadata map[string]any, path string) string {
	if metadata == nil || path == "" {
		return ""
	}
	segments := strings.Split(path, ".")
	if segments[0] == "metadata" {
		segments = segments[1:]
	}
	var current any = metadata
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[seg]
		if !ok {
			return ""
		}
	}
	if v, ok := current.(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func resolveCallerPhone(req *chatCompletionRequest) string {
	if req.Customer != nil && req.Customer.Number != "" {
		return req.Customer.Number
	}
	if v, ok := req.Metadata["rawCallerPhone"].(string); ok {
		return v
	}
	return ""
}

func toOracleMessages(msgs []chatMessage) []oracle.ChatMessage {
	out := make([]oracle.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, oracle.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func shortCallID(callID string) string {
	if len(callID) > 8 {
		return callID[:8]
	}
	return callID
}

// recordInboundTurn archives the caller's utterance, best effort.
func (s *Server) recordInboundTurn(ctx context.Context, callID, phone string, messages []oracle.ChatMessage) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.EnsureCall(ctx, callID, s.cfg.OrganizationID, phone); err != nil {
		s.logger.Warn("transcript ensure failed", "call_id", callID, "error", err)
		return
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == oracle.ChatRoleUser {
			if err := s.archive.AppendTurn(ctx, callID, archive.TurnRecord{
				Role:    "user",
				Content: messages[i].Content,
			}); err != nil {
				s.logger.Warn("transcript append failed", "call_id", callID, "error", err)
			}
			return
		}
	}
}

// recordOutboundTurn archives the assistant reply and closes ended calls.
func (s *Server) recordOutboundTurn(ctx context.Context, callID string, result *dialog.TurnResult) {
	if s.archive == nil {
		return
	}
	if err := s.archive.AppendTurn(ctx, callID, archive.TurnRecord{
		Role:    "assistant",
		Content: result.Reply,
	}); err != nil {
		s.logger.Warn("transcript append failed", "call_id", callID, "error", err)
	}
	if result.CallEnded || result.Transfer {
		outcome := "completed"
		if result.Transfer {
			outcome = "transferred"
		}
		if err := s.archive.EndCall(ctx, callID, outcome, result.Transfer); err != nil {
			s.logger.Warn("transcript end failed", "call_id", callID, "error", err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiErrorBody{Error: apiErrorDetail{
		Message: message,
		Type:    errorTypeForStatus(status),
	}})
}

func errorTypeForStatus(status int) string {
	if status >= 400 && status < 500 {
		return "invalid_request_error"
	}
	return "server_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
