// Package orchestrator runs the tool-calling loop for one chat turn: model
// call, tool fan-out, evidence fold-back, repeat, under hard iteration and
// token guards. The loop is an explicit state machine so every exit path is
// enumerable.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IDLEcreative/Omniops-sub014/internal/commerce"
	"github.com/IDLEcreative/Omniops-sub014/internal/omniops"
	"github.com/IDLEcreative/Omniops-sub014/internal/retrieval"
	"github.com/IDLEcreative/Omniops-sub014/internal/telemetry"
	"github.com/IDLEcreative/Omniops-sub014/internal/tenants"
	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

const (
	defaultMaxIterations    = 3
	defaultMaxParallelTools = 3
	defaultTokenBudget      = 24000

	providerRetryBackoff = 2 * time.Second

	apologyAnswer = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."
)

// KnowledgeSearcher is the retrieval surface the search_knowledge tool uses.
type KnowledgeSearcher interface {
	Search(ctx context.Context, tenantID, query string, limit int) retrieval.ResultSet
}

// CommerceResolver resolves the tenant's commerce provider.
type CommerceResolver interface {
	GetProvider(ctx context.Context, tenantID string) (commerce.Provider, commerce.Kind, error)
}

// TenantSettings supplies per-tenant orchestration budgets.
type TenantSettings interface {
	Get(ctx context.Context, tenantID string) (tenants.Config, error)
}

// TokenStreamer receives answer tokens as they arrive. Streaming is best
// effort; a nil streamer is fine.
type TokenStreamer interface {
	Write(chunk string) error
}

// ToolCallRecord is one executed tool call for the turn's audit trail.
type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Result is the outcome of one orchestrated chat turn.
type Result struct {
	Content      string           `json:"content"`
	State        State            `json:"state"`
	ToolCalls    []ToolCallRecord `json:"tool_calls,omitempty"`
	IncidentID   string           `json:"incident_id,omitempty"`
	InputTokens  int              `json:"input_tokens"`
	OutputTokens int              `json:"output_tokens"`
}

// Config tunes an Orchestrator beyond its defaults.
type Config struct {
	Model            string
	MaxIterations    int
	MaxParallelTools int
	TokenBudget      int
}

type Orchestrator struct {
	provider   llm.Provider
	knowledge  KnowledgeSearcher
	commerce   CommerceResolver
	settings   TenantSettings
	accountant *telemetry.Accountant
	logger     logging.Logger
	cfg        Config
}

func New(provider llm.Provider, knowledge KnowledgeSearcher, commerceResolver CommerceResolver, settings TenantSettings, accountant *telemetry.Accountant, logger logging.Logger, cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = defaultMaxParallelTools
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaultTokenBudget
	}
	return &Orchestrator{
		provider:   provider,
		knowledge:  knowledge,
		commerce:   commerceResolver,
		settings:   settings,
		accountant: accountant,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run drives one chat turn to completion. Tool results accumulate in the
// message list for the duration of the turn only; the caller owns history.
/// Backend trouble never surfaces as an error: the worst outcome is an
// apology answer with a logged incident id. The only error returns are
// context cancellation and an empty message list.
func (o *Orchestrator) Run(ctx context.Context, tenantID string, messages []llm.Message, streamer TokenStreamer) (Result, error) {
	if len(messages) == 0 {
		return Result{}, errors.New("at least one message is required")
	}

	maxIterations := o.cfg.MaxIterations
	budget := o.cfg.TokenBudget
	if o.settings != nil {
		if tcfg, err := o.settings.Get(ctx, tenantID); err == nil {
			if tcfg.MaxIterations > 0 {
				maxIterations = tcfg.MaxIterations
			}
			if tcfg.TokenBudget > 0 {
				budget = tcfg.TokenBudget
			}
		}
	}

	var session *telemetry.Session
	if o.accountant != nil {
		session = o.accountant.StartSession(tenantID, o.cfg.Model)
		defer o.accountant.Finalize(session)
	}

	fsm := newMachine()
	result := Result{}
	tools := toolDefinitions()

	for iteration := 0; iteration < maxIterations; iteration++ {
		// Cancellation is honored between iterations; in-flight work of a
		// previous iteration has already settled.
		if err := ctx.Err(); err != nil {
			fsm.mustTransition(StateTerminated)
			result.State = fsm.current()
			return result, err
		}

		forced := iteration == maxIterations-1 || countMessageTokens(messages) >= budget
		if forced {
			messages = append(messages, llm.Message{
				Role:    "user",
				Content: "[System note: resources for this turn are exhausted. Answer now with the information already gathered. Do not request tools.]",
			})
		}
		messages = fitToBudget(messages, budget)

		fsm.mustTransition(StateReasoning)
		iterStart := time.Now()
		callTools := tools
		if forced {
			callTools = nil
		}

		content, toolCalls, err := o.complete(ctx, messages, callTools, streamer)
		inputTokens := countMessageTokens(messages)
		outputTokens := estimateTokens(content)
		result.InputTokens += inputTokens
		result.OutputTokens += outputTokens
		if session != nil {
			session.RecordIteration(inputTokens, outputTokens)
		}
		recordIteration(time.Since(iterStart), err == nil)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				fsm.mustTransition(StateTerminated)
				result.State = fsm.current()
				return result, err
			}
			incident := uuid.NewString()
			o.logger.WithError(err).WithFields(logging.Fields{
				"tenant_id":   tenantID,
				"session_id":  omniops.GetSessionID(ctx),
				"incident_id": incident,
			}).Error("LLM provider failed after retry, returning apology")
			fsm.mustTransition(StateAnswered)
			fsm.mustTransition(StateTerminated)
			result.Content = apologyAnswer
			result.IncidentID = incident
			result.State = fsm.current()
			return result, nil
		}

		if len(toolCalls) == 0 || forced {
			fsm.mustTransition(StateAnswered)
			fsm.mustTransition(StateTerminated)
			result.Content = content
			result.State = fsm.current()
			return result, nil
		}

		fsm.mustTransition(StateAwaitingTools)
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   content,
			ToolCalls: toolCalls,
		})
		records, toolMessages := o.dispatchTools(ctx, tenantID, toolCalls, session)
		result.ToolCalls = append(result.ToolCalls, records...)
		messages = append(messages, toolMessages...)
	}

	// The guard inside the loop forces a final answer on the last
	// iteration, so falling out of the loop means the transition table was
	// violated upstream. Terminate defensively with what we have.
	fsm.mustTransition(StateTerminated)
	result.Content = apologyAnswer
	result.State = fsm.current()
	return result, nil
}

// complete performs one model call with a single retry on provider failure.
func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message, tools []llm.Tool, streamer TokenStreamer) (string, []llm.ToolCall, error) {
	content, toolCalls, err := o.streamOnce(ctx, messages, tools, streamer)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return content, toolCalls, err
	}

	o.logger.WithError(err).Warn("LLM call failed, retrying once")
	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case <-time.After(providerRetryBackoff):
	}
	return o.streamOnce(ctx, messages, tools, streamer)
}

func (o *Orchestrator) streamOnce(ctx context.Context, messages []llm.Message, tools []llm.Tool, streamer TokenStreamer) (string, []llm.ToolCall, error) {
	stream, err := o.provider.Complete(ctx, messages, tools)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var toolCalls []llm.ToolCall
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", nil, err
		}
		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			if streamer != nil {
				if werr := streamer.Write(chunk.Content); werr != nil {
					return "", nil, werr
				}
			}
		}
		if len(chunk.ToolCalls) > 0 {
			toolCalls = mergeToolCalls(toolCalls, chunk.ToolCalls)
		}
	}
	return content.String(), toolCalls, nil
}

// dispatchTools executes one round's tool calls concurrently with a bounded
// fan-out and folds the results back in the model's request order. Tool
// failures become structured tool results; they never abort the round.
func (o *Orchestrator) dispatchTools(ctx context.Context, tenantID string, calls []llm.ToolCall, session *telemetry.Session) ([]ToolCallRecord, []llm.Message) {
	type toolResult struct {
		record  ToolCallRecord
		content string
	}
	results := make([]toolResult, len(calls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.cfg.MaxParallelTools)
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c llm.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if session != nil {
				session.RecordToolCall()
			}
			toolStart := time.Now()
			content, err := o.executeTool(ctx, tenantID, c)
			recordToolCall(c.Name, time.Since(toolStart), err == nil)

			record := ToolCallRecord{Name: c.Name}
			if c.Arguments != "" && json.Valid([]byte(c.Arguments)) {
				record.Arguments = json.RawMessage(c.Arguments)
			}
			if err != nil {
				o.logger.WithError(err).WithFields(logging.Fields{
					"tenant_id": tenantID,
					"tool":      c.Name,
				}).Warn("Tool execution failed")
				record.Error = err.Error()
				content = fmt.Sprintf("Tool %s failed: %v", c.Name, err)
			}
			results[idx] = toolResult{record: record, content: content}
		}(i, call)
	}
	wg.Wait()

	records := make([]ToolCallRecord, 0, len(calls))
	messages := make([]llm.Message, 0, len(calls))
	for i, r := range results {
		records = append(records, r.record)
		messages = append(messages, llm.Message{
			Role:       "tool",
			Name:       r.record.Name,
			Content:    r.content,
			ToolCallID: calls[i].ID,
		})
	}
	return records, messages
}

func (o *Orchestrator) executeTool(ctx context.Context, tenantID string, call llm.ToolCall) (string, error) {
	switch call.Name {
	case toolSearchKnowledge:
		return o.runSearchKnowledge(ctx, tenantID, call.Arguments)
	case toolSearchProducts, toolLookupOrder, toolCheckStock, toolGetProductDetails:
		return o.runCommerceTool(ctx, tenantID, call)
	default:
		return "", &argError{tool: call.Name, reason: "unknown tool"}
	}
}

func (o *Orchestrator) runSearchKnowledge(ctx context.Context, tenantID, arguments string) (string, error) {
	var args searchKnowledgeArgs
	if err := decodeArgs(toolSearchKnowledge, arguments, &args); err != nil {
		return "", err
	}
	if err := validateRequired(toolSearchKnowledge, "query", args.Query); err != nil {
		return "", err
	}
	if o.knowledge == nil {
		return "Knowledge search is not available for this store.", nil
	}

	set := o.knowledge.Search(ctx, tenantID, args.Query, args.Limit)
	if len(set.Chunks) == 0 {
		if set.Degraded {
			return "Knowledge search is temporarily degraded; no results could be retrieved.", nil
		}
		return "No knowledge base entries matched the query.", nil
	}

	var out strings.Builder
	if set.Degraded {
		out.WriteString("(Partial results; knowledge search is degraded.)\n")
	}
	for i, chunk := range set.Chunks {
		fmt.Fprintf(&out, "[%d] %s\n%s\n", i+1, chunk.SourceTitle, chunk.Text)
		if chunk.SourceURL != "" {
			fmt.Fprintf(&out, "Source: %s\n", chunk.SourceURL)
		}
	}
	return out.String(), nil
}

func (o *Orchestrator) runCommerceTool(ctx context.Context, tenantID string, call llm.ToolCall) (string, error) {
	if o.commerce == nil {
		return "This store does not have a commerce backend connected.", nil
	}
	provider, kind, err := o.commerce.GetProvider(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("resolve commerce provider: %w", err)
	}
	if kind == commerce.KindNone || provider == nil {
		// A missing backend is an answerable fact, not a failure.
		return "This store does not have a commerce backend connected, so live product and order data is unavailable.", nil
	}

	var result commerce.OpResult
	switch call.Name {
	case toolSearchProducts:
		var args searchProductsArgs
		if err := decodeArgs(call.Name, call.Arguments, &args); err != nil {
			return "", err
		}
		if err := validateRequired(call.Name, "query", args.Query); err != nil {
			return "", err
		}
		result = provider.SearchProducts(ctx, args.Query, args.Limit)
	case toolLookupOrder:
		var args lookupOrderArgs
		if err := decodeArgs(call.Name, call.Arguments, &args); err != nil {
			return "", err
		}
		if err := validateRequired(call.Name, "order_number", args.OrderNumber); err != nil {
			return "", err
		}
		if err := validateRequired(call.Name, "email", args.Email); err != nil {
			return "", err
		}
		result = provider.LookupOrder(ctx, args.OrderNumber, args.Email)
	case toolCheckStock:
		var args checkStockArgs
		if err := decodeArgs(call.Name, call.Arguments, &args); err != nil {
			return "", err
		}
		if err := validateRequired(call.Name, "sku", args.SKU); err != nil {
			return "", err
		}
		result = provider.CheckStock(ctx, args.SKU)
	case toolGetProductDetails:
		var args productDetailsArgs
		if err := decodeArgs(call.Name, call.Arguments, &args); err != nil {
			return "", err
		}
		if err := validateRequired(call.Name, "product_id", args.ProductID); err != nil {
			return "", err
		}
		result = provider.GetProductDetails(ctx, args.ProductID)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(payload), nil
}

// mergeToolCalls folds streaming tool-call fragments into complete calls.
// Fragments without an id continue the most recent call's arguments.
func mergeToolCalls(existing, incoming []llm.ToolCall) []llm.ToolCall {
	for _, call := range incoming {
		if call.ID == "" && call.Name == "" && len(existing) > 0 {
			existing[len(existing)-1].Arguments += call.Arguments
			continue
		}
		existing = append(existing, call)
	}
	return existing
}
