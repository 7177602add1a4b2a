package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/voice-scheduler/internal/dialog"
	"github.com/harborview-health/voice-scheduler/internal/oracle"
)

type stubEngine struct {
	lastCallID string
	lastPhone  string
	lastMsgs   []oracle.ChatMessage
	result     *dialog.TurnResult
	err        error
}

func (s *stubEngine) Respond(_ context.Context, callID string, messages []oracle.ChatMessage, rawCallerPhone string) (*dialog.TurnResult, error) {
	s.lastCallID = callID
	s.lastPhone = rawCallerPhone
	s.lastMsgs = messages
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &dialog.TurnResult{Reply: "How may I help you today?"}, nil
}

func newTestServer(engine *stubEngine) *Server {
	return NewServer(engine, nil, Config{
		CallIDHeader:   "x-call-id",
		CallIDPath:     "metadata.vapiCallId",
		DefaultModel:   "voice-scheduler",
		StreamEnabled:  true,
		OrganizationID: "org-1",
	}, nil)
}

func postCompletion(t *testing.T, srv *Server, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatCompletionRequiresMessages(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	rec := postCompletion(t, srv, `{"model":"voice-scheduler"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body apiErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "messages is required", body.Error.Message)
	assert.Equal(t, "invalid_request_error", body.Error.Type)
}

func TestChatCompletionRejectsBadJSON(t *testing.T) {
	srv := newTestServer(&stubEngine{})
	rec := postCompletion(t, srv, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCompletionNonStreaming(t *testing.T) {
	engine := &stubEngine{result: &dialog.TurnResult{Reply: "We have availability."}}
	srv := newTestServer(engine)

	rec := postCompletion(t, srv, `{
		"model": "voice-scheduler",
		"messages": [{"role":"user","content":"book me in"}],
		"call": {"id": "call-abc12345"},
		"customer": {"number": "+15550001111"}
	}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Contains(t, resp.ID, "call-abc")
	assert.Equal(t, "chat.completion", resp.Object)
	require.Len(t, resp.Choices, 1)
	require.NotNil(t, resp.Choices[0].Message)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "We have availability.", resp.Choices[0].Message.Content)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, "stop", *resp.Choices[0].FinishReason)

	assert.Equal(t, "call-abc12345", engine.lastCallID)
	assert.Equal(t, "+15550001111", engine.lastPhone)
	require.Len(t, engine.lastMsgs, 1)
	assert.Equal(t, "book me in", engine.lastMsgs[0].Content)
}

func TestChatCompletionCallIDFromHeader(t *testing.T) {
	engine := &stubEngine{}
	srv := newTestServer(engine)

	postCompletion(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`,
		map[string]string{"x-call-id": "header-call-1"})

	assert.Equal(t, "header-call-1", engine.lastCallID)
}

func TestChatCompletionCallIDFromMetadataPath(t *testing.T) {
	engine := &stubEngine{}
	srv := newTestServer(engine)

	postCompletion(t, srv, `{
		"messages":[{"role":"user","content":"hi"}],
		"metadata": {"vapiCallId": "meta-call-1", "rawCallerPhone": "+15550002222"}
	}`, nil)

	assert.Equal(t, "meta-call-1", engine.lastCallID)
	assert.Equal(t, "+15550002222", engine.lastPhone)
}

func TestChatCompletionGeneratesCallIDWhenAbsent(t *testing.T) {
	engine := &stubEngine{}
	srv := newTestServer(engine)

	postCompletion(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`, nil)

	assert.True(t, strings.HasPrefix(engine.lastCallID, "call-"))
}

func TestChatCompletionStreaming(t *testing.T) {
	engine := &stubEngine{result: &dialog.TurnResult{Reply: "You're all set!"}}
	srv := newTestServer(engine)

	rec := postCompletion(t, srv, `{
		"stream": true,
		"messages":[{"role":"user","content":"yes"}],
		"call": {"id":"call-1"}
	}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	events := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, events, 3)

	var first chatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(events[0], "data: ")), &first))
	assert.Equal(t, "chat.completion.chunk", first.Object)
	require.NotNil(t, first.Choices[0].Delta)
	assert.Equal(t, "You're all set!", first.Choices[0].Delta.Content)

	var second chatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(events[1], "data: ")), &second))
	require.NotNil(t, second.Choices[0].FinishReason)
	assert.Equal(t, "stop", *second.Choices[0].FinishReason)

	assert.Equal(t, "data: [DONE]", events[2])
}

func TestChatCompletionEngineErrors(t *testing.T) {
	t.Run("internal error", func(t *testing.T) {
		srv := newTestServer(&stubEngine{err: errors.New("redis down")})
		rec := postCompletion(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("deadline maps to gateway timeout", func(t *testing.T) {
		srv := newTestServer(&stubEngine{err: context.DeadlineExceeded})
		rec := postCompletion(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`, nil)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLookupPath(t *testing.T) {
	meta := map[string]any{
		"vapiCallId": "abc",
		"nested":     map[string]any{"id": "xyz"},
		"notString":  42,
	}
	assert.Equal(t, "abc", lookupPath(meta, "metadata.vapiCallId"))
	assert.Equal(t, "abc", lookupPath(meta, "vapiCallId"))
	assert.Equal(t, "xyz", lookupPath(meta, "metadata.nested.id"))
	assert.Equal(t, "", lookupPath(meta, "metadata.missing"))
	assert.Equal(t, "", lookupPath(meta, "metadata.notString"))
	assert.Equal(t, "", lookupPath(nil, "metadata.vapiCallId"))
}
