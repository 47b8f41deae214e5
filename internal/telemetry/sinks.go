package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/IDLEcreative/Omniops-sub014/pkg/kafka"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
)

// PostgresSink inserts one usage row per finalized session.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, summary Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO omniops.usage_sessions (
			session_id,
			tenant_id,
			model,
			iterations,
			tokens_input,
			tokens_output,
			tool_calls,
			cost_usd,
			elapsed_ms,
			finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING
	`, summary.SessionID, summary.TenantID, summary.Model, summary.Iterations,
		summary.InputTokens, summary.OutputTokens, summary.ToolCalls,
		summary.CostUSD, summary.Elapsed.Milliseconds(), summary.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert usage session: %w", err)
	}
	return nil
}

// KafkaSink publishes summaries for downstream billing consumers. Keys are
// tenant ids so one tenant's records stay ordered within a partition.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
	logger   logging.Logger
}

func NewKafkaSink(producer *kafka.Producer, topic string, logger logging.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaSink) Write(_ context.Context, summary Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode usage summary: %w", err)
	}
	return s.producer.Produce(s.topic, []byte(summary.TenantID), payload, nil)
}
