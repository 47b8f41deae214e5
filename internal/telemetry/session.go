package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session accumulates token usage across the iterations of one chat turn.
// RecordIteration is safe for concurrent use; the orchestrator's tool
// goroutines may report into the same session.
type Session struct {
	ID        string
	TenantID  string
	Model     string
	StartedAt time.Time

	mu           sync.Mutex
	iterations   int
	inputTokens  int
	outputTokens int
	toolCalls    int

	finalizeOnce sync.Once
}

func newSession(tenantID, model string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Model:     model,
		StartedAt: now,
	}
}

// RecordIteration adds one LLM round trip's token counts.
func (s *Session) RecordIteration(inputTokens, outputTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations++
	s.inputTokens += inputTokens
	s.outputTokens += outputTokens
}

// RecordToolCall counts one dispatched tool invocation.
func (s *Session) RecordToolCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls++
}

func (s *Session) snapshot() (iterations, inputTokens, outputTokens, toolCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterations, s.inputTokens, s.outputTokens, s.toolCalls
}

// Summary is the finalized accounting record for one chat turn.
type Summary struct {
	SessionID    string        `json:"session_id"`
	TenantID     string        `json:"tenant_id"`
	Model        string        `json:"model"`
	Iterations   int           `json:"iterations"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	ToolCalls    int           `json:"tool_calls"`
	CostUSD      float64       `json:"cost_usd"`
	Elapsed      time.Duration `json:"elapsed"`
	FinishedAt   time.Time     `json:"finished_at"`
}
