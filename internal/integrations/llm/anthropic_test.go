package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func TestAnthropicProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"department\": \"EDUCATION\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 9}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "claude-test", srv.Client(), option.WithBaseURL(srv.URL))
	resp, err := p.Generate(context.Background(), Request{System: "sys", User: "school roof leaking"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text != `{"department": "EDUCATION"}` {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.Provider != "anthropic" || resp.Usage.InputTokens != 20 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAnthropicProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "", srv.Client(), option.WithBaseURL(srv.URL))
	if _, err := p.Generate(context.Background(), Request{User: "x"}); err == nil {
		t.Fatal("expected error from 500 response")
	}
}
