// Command cortex runs one task through the agent pipeline.
//
// Usage:
//
//	cortex run "summarize the report"           # process a task
//	cortex run --config config.yaml "..."       # with a config file
//	cortex version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cortexstack/cortex/agent"
	"github.com/cortexstack/cortex/config"
	"github.com/cortexstack/cortex/hitl"
	"github.com/cortexstack/cortex/internal/database"
	"github.com/cortexstack/cortex/llm"
	"github.com/cortexstack/cortex/memory"
	"github.com/cortexstack/cortex/rag"
	"github.com/cortexstack/cortex/reasoning"
	"github.com/cortexstack/cortex/sandbox"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runTask(os.Args[2:])
	case "version":
		fmt.Printf("cortex %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runTask(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cortex run [--config path] <task>")
		os.Exit(1)
	}
	task := fs.Arg(0)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	a := buildAgent(cfg, logger)
	out := a.Process(context.Background(), agent.Input{Content: task})

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.Fatal("failed to encode output", zap.Error(err))
	}
	fmt.Println(string(encoded))

	if out.Status == agent.StatusError {
		os.Exit(1)
	}
}

// buildAgent wires the collaborators the configuration enables.
// Unreachable backends disable their stage with a warning instead of
// aborting the run.
func buildAgent(cfg *config.Config, logger *zap.Logger) *agent.Agent {
	agentCfg := agent.Config{
		Name:            cfg.Agent.Name,
		Model:           cfg.Agent.Model,
		Temperature:     cfg.Agent.Temperature,
		MaxTokens:       cfg.Agent.MaxTokens,
		EnableMemory:    cfg.Agent.EnableMemory,
		EnableReasoning: cfg.Agent.EnableReasoning,
		EnableRAG:       cfg.Agent.EnableRAG,
		EnableSandbox:   cfg.Agent.EnableSandbox,
		EnableHITL:      cfg.Agent.EnableHITL,
	}

	var opts []agent.Option

	if cfg.Agent.EnableMemory {
		if mem := buildMemory(cfg, logger); mem != nil {
			opts = append(opts, agent.WithMemory(mem))
		}
	}

	var completion reasoning.CompletionFunc
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			Provider:    llm.Provider(cfg.LLM.Provider),
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("llm client unavailable, using heuristic reasoning", zap.Error(err))
		} else {
			completion = client.AsReasonerFunc()
			opts = append(opts, agent.WithGenerator(completion))
		}
	}

	if cfg.Agent.EnableReasoning {
		opts = append(opts, agent.WithReasoner(reasoning.NewChainOfThought(reasoning.Config{
			Completion: completion,
			Logger:     logger,
		})))
	}

	if cfg.Agent.EnableRAG {
		if retriever := buildRetriever(cfg, logger); retriever != nil {
			opts = append(opts, agent.WithRetriever(retriever))
		}
	}

	if cfg.Agent.EnableSandbox {
		opts = append(opts, agent.WithSandbox(sandbox.NewSafeSandbox(sandbox.DefaultConfig(), logger)))
	}

	if cfg.Agent.EnableHITL {
		manager := hitl.NewManager(hitl.Config{
			AutoApproveLowRisk:      cfg.Approvals.AutoApproveLowRisk,
			AutoApproveMediumRisk:   cfg.Approvals.AutoApproveMediumRisk,
			RequireApprovalHighRisk: cfg.Approvals.RequireApprovalHighRisk,
			Timeout:                 cfg.Approvals.Timeout,
			PollInterval:            cfg.Approvals.PollInterval,
			NotificationChannels:    cfg.Approvals.NotificationChannels,
		}, logger)
		manager.SetNotificationCallback(consoleNotification)
		opts = append(opts, agent.WithApprovalGate(manager))
	}

	return agent.New(agentCfg, logger, opts...)
}

func buildMemory(cfg *config.Config, logger *zap.Logger) agent.MemorySystem {
	pool, err := database.Connect(cfg.Postgres.DSN(), database.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnLifetime,
	}, logger)
	if err != nil {
		logger.Warn("postgres unavailable, memory disabled", zap.Error(err))
		return nil
	}

	longTerm, err := memory.NewLongTermStore(pool.DB(), logger)
	if err != nil {
		logger.Warn("memory migration failed, memory disabled", zap.Error(err))
		return nil
	}

	shortTerm, err := memory.NewShortTermStore(memory.ShortTermConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, memory disabled", zap.Error(err))
		return nil
	}

	return memory.NewManager(longTerm, shortTerm, logger)
}

func buildRetriever(cfg *config.Config, logger *zap.Logger) agent.Retriever {
	if cfg.LLM.EmbeddingAPIKey == "" {
		logger.Warn("no embedding api key, retrieval disabled")
		return nil
	}

	embedder, err := rag.NewOpenAIEmbeddings(rag.OpenAIEmbeddingConfig{
		APIKey: cfg.LLM.EmbeddingAPIKey,
	}, logger)
	if err != nil {
		logger.Warn("embeddings client unavailable, retrieval disabled", zap.Error(err))
		return nil
	}

	store, err := rag.NewWeaviateStore(rag.WeaviateConfig{
		BaseURL: cfg.Weaviate.BaseURL,
		APIKey:  cfg.Weaviate.APIKey,
		Class:   cfg.Weaviate.Class,
	}, logger)
	if err != nil {
		logger.Warn("weaviate unavailable, retrieval disabled", zap.Error(err))
		return nil
	}

	return rag.NewHybridPipeline(embedder, store, true, logger)
}

func consoleNotification(_ context.Context, req *hitl.Request) error {
	fmt.Fprintf(os.Stderr, "[approval needed] %s: %s (risk: %s)\n  approve/reject via the API using request id %s\n",
		req.Action.Type, req.Rationale, req.Action.Risk, req.ID)
	return nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printUsage() {
	fmt.Println(`cortex - agent orchestration toolkit

Usage:
  cortex run [--config path] <task>   Process one task through the pipeline
  cortex version                      Show version
  cortex help                         Show this help`)
}
