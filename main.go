package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rightsflow/supervisor-gateway/internal/agentruntime"
	"github.com/rightsflow/supervisor-gateway/internal/clarify"
	"github.com/rightsflow/supervisor-gateway/internal/config"
	"github.com/rightsflow/supervisor-gateway/internal/gateway"
	"github.com/rightsflow/supervisor-gateway/internal/httpapi"
	"github.com/rightsflow/supervisor-gateway/internal/intent"
	"github.com/rightsflow/supervisor-gateway/internal/llm"
	"github.com/rightsflow/supervisor-gateway/internal/memory"
	"github.com/rightsflow/supervisor-gateway/internal/rerank"
	"github.com/rightsflow/supervisor-gateway/internal/rewrite"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	prompts, err := config.LoadPromptTable(cfg.PromptsPath, logger)
	if err != nil {
		logger.Fatal("Failed to load prompt table", zap.Error(err))
	}
	if err := prompts.Watch(); err != nil {
		logger.Warn("Prompt hot-reload disabled", zap.Error(err))
	}
	defer prompts.Close()

	// One Redis client per process, shared through the memory store.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.Timeout, logger)

	var classifier gateway.Classifier
	if cfg.Gateway.UseLLMClassifier {
		classifier = intent.NewLLMClassifier(llmClient, prompts, logger)
	} else {
		classifier = intent.NewRuleClassifier()
	}

	memoryMgr := memory.NewManager(
		memory.NewRedisStore(redisClient, logger),
		memory.NewLLMSummarizer(llmClient, prompts),
		cfg.Memory.Window,
		cfg.Memory.TTL,
		cfg.Memory.RetainOnSummaryFailure,
		logger,
	)

	orch := gateway.NewOrchestrator(
		classifier,
		rewrite.NewRewriter(llmClient, prompts, logger),
		clarify.NewClarifier(llmClient, prompts, logger),
		agentruntime.NewInvoker(cfg.Agent.BaseURL, cfg.Agent.Timeout, logger),
		rerank.NewClient(cfg.Rerank.BaseURL, cfg.Rerank.Timeout, logger),
		memoryMgr,
		gateway.Options{
			AgentID:          cfg.Agent.AgentID,
			AliasID:          cfg.Agent.AliasID,
			DefaultTopK:      cfg.Rerank.TopK,
			TraceEnabled:     cfg.Agent.TraceEnabled,
			ClarifyAmbiguous: cfg.Gateway.ClarifyAmbiguous,
		},
		logger,
	)

	mux := http.NewServeMux()
	httpapi.NewHandler(orch, cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("Supervisor gateway starting", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Supervisor gateway shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Supervisor gateway stopped")
}
