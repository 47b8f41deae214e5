package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestDoWithRetryRetryCount(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := &http.Client{}
	resp, err := doWithRetry(context.Background(), client, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	defer resp.Body.Close()

	got := atomic.LoadInt32(&count)
	if got != 4 {
		t.Fatalf("expected exactly 4 attempts (3 retries + 1 success), got %d", got)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDoWithRetryAllFailures(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := &http.Client{}
	_, err := doWithRetry(context.Background(), client, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	got := atomic.LoadInt32(&count)
	// maxRetries=3, so attempts 0..3 = 4 total requests
	if got != int32(maxRetries)+1 {
		t.Fatalf("expected %d attempts, got %d", maxRetries+1, got)
	}
}

func TestDecodeOpenAIChunkToolCalls(t *testing.T) {
	data := []byte(`{"choices":[{"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_knowledge","arguments":"{\"query\":\"return policy\"}"}}]}}]}`)
	chunk, err := decodeOpenAIChunk(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chunk.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(chunk.ToolCalls))
	}
	call := chunk.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "search_knowledge" {
		t.Fatalf("unexpected tool call: %+v", call)
	}
}

func TestAnthropicMessagesFromSplitsSystem(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are a support agent."},
		{Role: "user", Content: "Where is my order?"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "tu_1", Name: "lookup_order", Arguments: `{"order_id":"42"}`}}},
		{Role: "tool", ToolCallID: "tu_1", Content: `{"status":"shipped"}`},
	}
	converted, system := anthropicMessagesFrom(messages)
	if system != "You are a support agent." {
		t.Fatalf("expected system prompt extracted, got %q", system)
	}
	if len(converted) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(converted))
	}
	if converted[1].Content[0].Type != "tool_use" {
		t.Fatalf("expected tool_use block, got %q", converted[1].Content[0].Type)
	}
	if converted[2].Content[0].Type != "tool_result" || converted[2].Role != "user" {
		t.Fatalf("expected tool_result on user turn, got %+v", converted[2])
	}
}
