package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/config"
	"github.com/crosschema/reconcile-engine/pkg/handlers"
	"github.com/crosschema/reconcile-engine/pkg/llm"
	"github.com/crosschema/reconcile-engine/pkg/services"
	"github.com/crosschema/reconcile-engine/pkg/sqlgen"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("schema_dir", cfg.SchemaDir),
		zap.String("oracle_provider", cfg.Oracle.Provider),
		zap.String("oracle_model", cfg.Oracle.Model))

	opts := services.DefaultPipelineOptions().WithMasterEntities(cfg.Pipeline.MasterEntities)
	opts.StoragePrefix = cfg.Pipeline.StoragePrefix
	opts.AmbiguousThreshold = cfg.Pipeline.AmbiguousThreshold
	opts.DefaultMinConfidence = cfg.Pipeline.DefaultMinConfidence
	opts.OracleBatchSize = cfg.Oracle.BatchSize
	opts.OracleBatchTimeout = cfg.Oracle.Timeout()

	// The oracle is optional: without an API key the pipeline runs on
	// heuristic scores only.
	var enhancer services.OracleEnhancer
	if cfg.Oracle.APIKey != "" {
		client, err := llm.NewFromConfig(&cfg.Oracle, logger)
		if err != nil {
			log.Fatalf("Failed to create oracle client: %v", err)
		}
		pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.Oracle.MaxConcurrent}, logger)
		scorer := services.NewLLMCandidateScorer(client, logger)
		enhancer = services.NewOracleEnhancer(scorer, pool, opts, logger)
	} else {
		logger.Warn("No oracle API key configured, rule generation will use heuristic scores only")
	}

	catalog := services.NewFileCatalogLoader(cfg.SchemaDir, logger)
	generator := services.NewCandidateGenerator(opts, logger)
	normalizer := services.NewNormalizer(opts, logger)
	dedup := services.NewDeduplicator(logger)
	compiler := services.NewRuleCompiler(logger)

	service := services.NewRuleGenerationService(
		catalog, generator, enhancer, normalizer, dedup, compiler, opts, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	reconciliationHandler := handlers.NewReconciliationHandler(service, sqlgen.NewRenderer(), logger)
	reconciliationHandler.RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting reconcile-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
