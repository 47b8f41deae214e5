package config

import (
	"strings"
	"time"

	"github.com/IDLEcreative/Omniops-sub014/pkg/config"
)

// Config stores environment configuration for Omniops.
type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	LLMProvider       string
	LLMModel          string
	LLMAPIKey         string
	LLMAPIURL         string
	LLMMaxTokens      int
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingAPIURL   string

	KafkaBrokers     []string
	KafkaClientID    string
	UsageKafkaTopic  string
	CredentialSecret string

	SearchLimit         int
	SimilarityThreshold float64
	KeywordMaxWords     int

	CacheTTL       time.Duration
	CacheSweepTick time.Duration
	ProviderIdle   time.Duration

	MaxToolRounds      int
	MaxParallelTools   int
	TokenBudget        int
	MaxHistoryMessages int
}

// LoadConfig loads the Omniops configuration from environment variables.
func LoadConfig() Config {
	brokersEnv := strings.TrimSpace(config.GetEnv("KAFKA_BROKERS", ""))
	var brokers []string
	if brokersEnv != "" {
		for _, broker := range strings.Split(brokersEnv, ",") {
			broker = strings.TrimSpace(broker)
			if broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}
	return Config{
		Port:              config.GetEnv("PORT", "18080"),
		DatabaseURL:       config.RequireEnv("DATABASE_URL"),
		RedisURL:          config.GetEnv("REDIS_URL", ""),
		LLMProvider:       config.GetEnv("LLM_PROVIDER", ""),
		LLMModel:          config.GetEnv("LLM_MODEL", ""),
		LLMAPIKey:         config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:         config.GetEnv("LLM_API_URL", ""),
		LLMMaxTokens:      config.GetEnvInt("LLM_MAX_TOKENS", 4096),
		EmbeddingProvider: config.GetEnv("EMBEDDING_PROVIDER", config.GetEnv("LLM_PROVIDER", "")),
		EmbeddingModel:    config.GetEnv("EMBEDDING_MODEL", config.GetEnv("LLM_MODEL", "")),
		EmbeddingAPIKey:   config.GetEnv("EMBEDDING_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		EmbeddingAPIURL:   config.GetEnv("EMBEDDING_API_URL", config.GetEnv("LLM_API_URL", "")),

		KafkaBrokers:     brokers,
		KafkaClientID:    config.GetEnv("KAFKA_CLIENT_ID", "omniops"),
		UsageKafkaTopic:  config.GetEnv("USAGE_KAFKA_TOPIC", "omniops.usage_reports"),
		CredentialSecret: config.GetEnv("CREDENTIAL_MASTER_SECRET", ""),

		SearchLimit:         config.GetEnvInt("OMNIOPS_SEARCH_LIMIT", 10),
		SimilarityThreshold: config.GetEnvFloat("OMNIOPS_SIMILARITY_THRESHOLD", 0.15),
		KeywordMaxWords:     config.GetEnvInt("OMNIOPS_KEYWORD_MAX_WORDS", 3),

		CacheTTL:       config.GetEnvDuration("OMNIOPS_CACHE_TTL", 15*time.Minute),
		CacheSweepTick: config.GetEnvDuration("OMNIOPS_CACHE_SWEEP_TICK", time.Minute),
		ProviderIdle:   config.GetEnvDuration("OMNIOPS_PROVIDER_IDLE_TTL", 30*time.Minute),

		MaxToolRounds:      config.GetEnvInt("OMNIOPS_MAX_TOOL_ROUNDS", 5),
		MaxParallelTools:   config.GetEnvInt("OMNIOPS_MAX_PARALLEL_TOOLS", 3),
		TokenBudget:        config.GetEnvInt("OMNIOPS_TOKEN_BUDGET", 24000),
		MaxHistoryMessages: config.GetEnvInt("OMNIOPS_MAX_HISTORY_MESSAGES", 20),
	}
}
