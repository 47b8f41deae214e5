package main

import (
	"context"

	svcconfig "github.com/IDLEcreative/Omniops-sub014/internal/config"

	"github.com/IDLEcreative/Omniops-sub014/internal/cache"
	"github.com/IDLEcreative/Omniops-sub014/internal/chat"
	"github.com/IDLEcreative/Omniops-sub014/internal/commerce"
	"github.com/IDLEcreative/Omniops-sub014/internal/orchestrator"
	"github.com/IDLEcreative/Omniops-sub014/internal/retrieval"
	"github.com/IDLEcreative/Omniops-sub014/internal/telemetry"
	"github.com/IDLEcreative/Omniops-sub014/internal/tenants"
	"github.com/IDLEcreative/Omniops-sub014/pkg/config"
	"github.com/IDLEcreative/Omniops-sub014/pkg/crypto"
	"github.com/IDLEcreative/Omniops-sub014/pkg/database"
	"github.com/IDLEcreative/Omniops-sub014/pkg/kafka"
	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
	"github.com/IDLEcreative/Omniops-sub014/pkg/logging"
	"github.com/IDLEcreative/Omniops-sub014/pkg/monitoring"
	"github.com/IDLEcreative/Omniops-sub014/pkg/redis"
	"github.com/IDLEcreative/Omniops-sub014/pkg/server"
)

func main() {
	logger := logging.NewLoggerWithService("omniops")
	config.LoadEnv(logger)
	cfg := svcconfig.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	cacheOpts := []cache.Option{}
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running with in-memory cache only")
		} else {
			defer redisClient.Close()
			cacheOpts = append(cacheOpts, cache.WithRedis(redisClient))
		}
	}
	cacheManager := cache.NewManager(logger, cacheOpts...)
	cacheManager.StartSweep(ctx, cfg.CacheSweepTick)

	tenantStore := tenants.NewStore(db, cacheManager, logger)

	llmProvider, err := llm.NewProvider(llm.LoadConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize LLM provider")
	}
	var embedder llm.EmbeddingClient
	if embeddingClient, err := llm.NewEmbeddingClient(llm.LoadEmbeddingConfig()); err != nil {
		logger.WithError(err).Warn("Embedding client unavailable, retrieval will use keyword search only")
	} else {
		embedder = embeddingClient
	}

	engine := retrieval.NewEngine(
		retrieval.NewStore(db),
		embedder,
		cacheManager,
		tenantStore,
		logger,
		retrieval.Options{
			KeywordMaxWords: cfg.KeywordMaxWords,
			DefaultLimit:    cfg.SearchLimit,
			Threshold:       cfg.SimilarityThreshold,
			CacheTTL:        cfg.CacheTTL,
		},
	)

	var encryptor *crypto.FieldEncryptor
	if cfg.CredentialSecret != "" {
		encryptor, err = crypto.DeriveFieldEncryptor([]byte(cfg.CredentialSecret), "commerce-credentials")
		if err != nil {
			logger.WithError(err).Fatal("Failed to derive credential encryptor")
		}
	} else {
		logger.Warn("CREDENTIAL_MASTER_SECRET not set, commerce credentials are read unencrypted")
	}
	registry := commerce.NewRegistry(commerce.NewCredentialStore(db, encryptor), logger, cfg.ProviderIdle)
	registry.StartSweep(ctx, cfg.CacheSweepTick)

	sinks := []telemetry.Sink{telemetry.NewPostgresSink(db)}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
		if err != nil {
			logger.WithError(err).Warn("Kafka unavailable, usage summaries go to Postgres only")
		} else {
			defer producer.Close()
			sinks = append(sinks, telemetry.NewKafkaSink(producer, cfg.UsageKafkaTopic, logger))
		}
	}
	accountant := telemetry.NewAccountant(defaultPrices(), logger, sinks...)
	accountant.Start()
	defer accountant.Stop()

	chatOrchestrator := orchestrator.New(
		llmProvider,
		engine,
		registry,
		tenantStore,
		accountant,
		logger,
		orchestrator.Config{
			Model:            cfg.LLMModel,
			MaxIterations:    cfg.MaxToolRounds,
			MaxParallelTools: cfg.MaxParallelTools,
			TokenBudget:      cfg.TokenBudget,
		},
	)

	health := monitoring.NewHealthChecker("omniops", "1.0.0")
	health.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	health.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"LLM_PROVIDER": cfg.LLMProvider,
	}))

	router := server.SetupRouter(logger, health)
	chatHandler := chat.NewHandler(chatOrchestrator, logger)
	chatHandler.MaxHistory = cfg.MaxHistoryMessages
	chat.RegisterRoutes(router, chatHandler)

	serverConfig := server.DefaultConfig("omniops", cfg.Port)
	if err := server.Run(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server exited with error")
	}
}

// defaultPrices is the built-in price table, USD per million tokens. The
// default rate errs on the expensive side so unknown models are never
// under-billed.
func defaultPrices() *telemetry.PriceTable {
	return telemetry.NewPriceTable(map[string]telemetry.Rate{
		"gpt-4o":                   {InputPerMillion: 2.50, OutputPerMillion: 10.00},
		"gpt-4o-mini":              {InputPerMillion: 0.15, OutputPerMillion: 0.60},
		"claude-sonnet-4-20250514": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
		"claude-3-5-haiku-latest":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	}, telemetry.Rate{InputPerMillion: 5.00, OutputPerMillion: 20.00})
}
