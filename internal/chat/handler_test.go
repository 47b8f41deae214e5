package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/IDLEcreative/Omniops-sub014/internal/orchestrator"
	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
)

type answerStream struct {
	content string
	sent    bool
}

func (s *answerStream) Recv() (llm.Chunk, error) {
	if s.sent {
		return llm.Chunk{}, io.EOF
	}
	s.sent = true
	return llm.Chunk{Content: s.content}, nil
}

func (s *answerStream) Close() error { return nil }

type answerProvider struct {
	content  string
	messages []llm.Message
}

func (p *answerProvider) Complete(_ context.Context, messages []llm.Message, _ []llm.Tool) (llm.Stream, error) {
	p.messages = messages
	return &answerStream{content: p.content}, nil
}

func newTestRouter(provider llm.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	o := orchestrator.New(provider, nil, nil, nil, nil, logger, orchestrator.Config{})
	router := gin.New()
	RegisterRoutes(router, NewHandler(o, logger))
	return router
}

func postChat(router *gin.Engine, tenantID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestChatStreamsAnswer(t *testing.T) {
	provider := &answerProvider{content: "Our returns window is 30 days."}
	router := newTestRouter(provider)

	resp := postChat(router, "t1", `{"message": "What is the returns policy?"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if !strings.Contains(body, "Our returns window is 30 days.") {
		t.Fatalf("answer not streamed: %s", body)
	}
	if !strings.Contains(body, "[DONE]") {
		t.Fatal("missing stream terminator")
	}
	if !strings.Contains(body, `"state":"terminated"`) {
		t.Fatalf("missing meta event: %s", body)
	}
}

func TestChatRequiresTenant(t *testing.T) {
	router := newTestRouter(&answerProvider{content: "hi"})

	resp := postChat(router, "", `{"message": "hello"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	router := newTestRouter(&answerProvider{content: "hi"})

	resp := postChat(router, "t1", `{"message": "   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHistoryIncludedInPrompt(t *testing.T) {
	provider := &answerProvider{content: "ok"}
	router := newTestRouter(provider)

	resp := postChat(router, "t1", `{
		"message": "And in red?",
		"history": [
			{"role": "user", "content": "Do you sell widgets?"},
			{"role": "assistant", "content": "Yes, several models."},
			{"role": "tool", "content": "must be dropped"}
		]
	}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	if len(provider.messages) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(provider.messages))
	}
	if provider.messages[0].Role != "system" {
		t.Fatal("first message must be the system prompt")
	}
	if provider.messages[3].Content != "And in red?" {
		t.Fatalf("last message must be the new user turn: %+v", provider.messages[3])
	}
	for _, msg := range provider.messages {
		if msg.Content == "must be dropped" {
			t.Fatal("non user/assistant history roles must be dropped")
		}
	}
}

func TestHistoryClampedToConfiguredLimit(t *testing.T) {
	req := ChatRequest{Message: "latest question"}
	for i := 0; i < 10; i++ {
		req.History = append(req.History, HistoryEntry{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	messages := buildMessages(req, 3)

	// system + 3 most recent history turns + the new user message.
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	if messages[1].Content != "turn 7" {
		t.Fatalf("expected oldest kept turn to be turn 7, got %q", messages[1].Content)
	}

	handler := &Handler{}
	if got := handler.historyLimit(); got != defaultMaxHistoryEntries {
		t.Fatalf("expected default limit %d when unset, got %d", defaultMaxHistoryEntries, got)
	}
	handler.MaxHistory = 3
	if got := handler.historyLimit(); got != 3 {
		t.Fatalf("expected configured limit 3, got %d", got)
	}
}
