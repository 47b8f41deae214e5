// Package chat exposes the HTTP surface of the support assistant: one SSE
// endpoint that runs a turn through the orchestrator.
package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/IDLEcreative/Omniops-sub014/internal/omniops"
	"github.com/IDLEcreative/Omniops-sub014/internal/orchestrator"
	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

const (
	maxMessageRunes          = 10000
	defaultMaxHistoryEntries = 40
)

const systemPrompt = `You are a helpful customer support assistant for an online store.
Answer from the store's knowledge base and live commerce data when tools are available.
If you cannot verify something, say so instead of guessing. Keep answers concise and polite.`

type Handler struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       logging.Logger

	// MaxHistory caps how many prior turns a request may replay. Zero
	// means the default of 40.
	MaxHistory int
}

func NewHandler(o *orchestrator.Orchestrator, logger logging.Logger) *Handler {
	return &Handler{Orchestrator: o, Logger: logger}
}

func (h *Handler) historyLimit() int {
	if h.MaxHistory > 0 {
		return h.MaxHistory
	}
	return defaultMaxHistoryEntries
}

func RegisterRoutes(router gin.IRoutes, handler *Handler) {
	router.POST("/chat", handler.HandleChat)
}

// HistoryEntry is one prior turn supplied by the widget. The service is
// stateless about conversations; the client carries its own history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Message   string         `json:"message"`
	History   []HistoryEntry `json:"history,omitempty"`
}

func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}

	tenantID := strings.TrimSpace(c.GetHeader("X-Tenant-ID"))
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant id missing"})
		return
	}
	// The request logging middleware reads this gin key after the handler
	// returns.
	c.Set("tenant_id", tenantID)
	ctx := omniops.WithTenantID(c.Request.Context(), tenantID)
	if req.SessionID != "" {
		ctx = omniops.WithSessionID(ctx, req.SessionID)
	}

	messages := buildMessages(req, h.historyLimit())

	streamer, err := newSSEStreamer(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unavailable"})
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	result, err := h.Orchestrator.Run(ctx, tenantID, messages, streamer)
	if err != nil {
		h.Logger.WithError(err).WithFields(logging.Fields{
			"tenant_id": tenantID,
		}).Warn("Chat turn aborted")
		_ = streamer.SendError("The request was interrupted.")
		_ = streamer.SendDone()
		return
	}

	_ = streamer.SendMeta(metaEvent{
		Type:       "meta",
		State:      string(result.State),
		IncidentID: result.IncidentID,
		ToolCalls:  result.ToolCalls,
	})
	_ = streamer.SendDone()
}

func buildMessages(req ChatRequest, maxHistory int) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, entry := range history {
		role := entry.Role
		if role != "user" && role != "assistant" {
			continue
		}
		if strings.TrimSpace(entry.Content) == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: entry.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: req.Message})
}

type metaEvent struct {
	Type       string                        `json:"type"`
	State      string                        `json:"state"`
	IncidentID string                        `json:"incident_id,omitempty"`
	ToolCalls  []orchestrator.ToolCallRecord `json:"tool_calls,omitempty"`
}

type tokenEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type sseStreamer struct {
	writer  gin.ResponseWriter
	flusher http.Flusher
}

func newSSEStreamer(writer gin.ResponseWriter) (*sseStreamer, error) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseStreamer{writer: writer, flusher: flusher}, nil
}

func (s *sseStreamer) send(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Write implements orchestrator.TokenStreamer.
func (s *sseStreamer) Write(chunk string) error {
	return s.send(tokenEvent{Type: "token", Content: chunk})
}

func (s *sseStreamer) SendMeta(meta metaEvent) error {
	return s.send(meta)
}

func (s *sseStreamer) SendError(message string) error {
	return s.send(gin.H{"type": "error", "error": message})
}

func (s *sseStreamer) SendDone() error {
	if _, err := fmt.Fprint(s.writer, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
