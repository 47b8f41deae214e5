// Package telemetry turns per-iteration token counts into priced usage
// records and ships them to the configured sinks without ever blocking the
// chat response path.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

// Sink persists finalized summaries. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, summary Summary) error
}

const (
	defaultRetryInterval = 30 * time.Second
	maxPendingSummaries  = 1024
	sinkWriteTimeout     = 5 * time.Second
)

// Accountant owns session lifecycle and sink delivery. Failed writes go to a
// bounded retry queue drained on a ticker; when the queue is full the oldest
// record is dropped and counted.
type Accountant struct {
	prices *PriceTable
	sinks  []Sink
	logger logging.Logger

	pendingMu sync.Mutex
	pending   []Summary

	stopOnce sync.Once
	stopCh   chan struct{}

	now func() time.Time
}

func NewAccountant(prices *PriceTable, logger logging.Logger, sinks ...Sink) *Accountant {
	return &Accountant{
		prices: prices,
		sinks:  sinks,
		logger: logger,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// StartSession opens a session for one chat turn.
func (a *Accountant) StartSession(tenantID, model string) *Session {
	return newSession(tenantID, model, a.now())
}

// Finalize closes the session and dispatches its summary. Safe to call more
// than once; only the first call prices and ships the record. Designed to sit
// in a defer so every exit path of the orchestrator settles the session.
func (a *Accountant) Finalize(session *Session) Summary {
	var summary Summary
	session.finalizeOnce.Do(func() {
		iterations, inputTokens, outputTokens, toolCalls := session.snapshot()
		finishedAt := a.now()
		summary = Summary{
			SessionID:    session.ID,
			TenantID:     session.TenantID,
			Model:        session.Model,
			Iterations:   iterations,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			ToolCalls:    toolCalls,
			CostUSD:      a.prices.Cost(session.Model, inputTokens, outputTokens),
			Elapsed:      finishedAt.Sub(session.StartedAt),
			FinishedAt:   finishedAt,
		}
		if _, known := a.prices.RateFor(session.Model); !known {
			a.logger.WithFields(logging.Fields{
				"model":     session.Model,
				"tenant_id": session.TenantID,
			}).Warn("No price configured for model, using default rate")
		}
		recordSessionFinalized(summary)
		go a.dispatch(summary)
	})
	return summary
}

// Start launches the retry loop. Stop flushes once more and shuts it down.
func (a *Accountant) Start() {
	go a.retryLoop()
}

func (a *Accountant) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

func (a *Accountant) dispatch(summary Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()
	for _, sink := range a.sinks {
		if err := sink.Write(ctx, summary); err != nil {
			a.logger.WithError(err).WithFields(logging.Fields{
				"tenant_id":  summary.TenantID,
				"session_id": summary.SessionID,
			}).Warn("Usage sink write failed, queueing for retry")
			a.enqueue(summary)
			return
		}
	}
}

func (a *Accountant) enqueue(summary Summary) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	if len(a.pending) >= maxPendingSummaries {
		a.pending = a.pending[1:]
		recordSummaryDropped()
	}
	a.pending = append(a.pending, summary)
}

func (a *Accountant) retryLoop() {
	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			a.retryPending()
			return
		case <-ticker.C:
			a.retryPending()
		}
	}
}

func (a *Accountant) retryPending() {
	a.pendingMu.Lock()
	pending := a.pending
	a.pending = nil
	a.pendingMu.Unlock()
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()

	var remaining []Summary
	for _, summary := range pending {
		failed := false
		for _, sink := range a.sinks {
			if err := sink.Write(ctx, summary); err != nil {
				failed = true
				break
			}
		}
		if failed {
			remaining = append(remaining, summary)
		}
	}
	if len(remaining) > 0 {
		a.pendingMu.Lock()
		a.pending = append(remaining, a.pending...)
		a.pendingMu.Unlock()
	}
}

// PendingCount reports queued summaries awaiting retry.
func (a *Accountant) PendingCount() int {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	return len(a.pending)
}
