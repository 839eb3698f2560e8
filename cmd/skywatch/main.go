package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/action"
	"github.com/helios-eo/skywatch/internal/api"
	"github.com/helios-eo/skywatch/internal/config"
	"github.com/helios-eo/skywatch/internal/engine"
	"github.com/helios-eo/skywatch/internal/memory"
	"github.com/helios-eo/skywatch/internal/provider"
	"github.com/helios-eo/skywatch/internal/storage"
	"github.com/helios-eo/skywatch/internal/tools"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Skywatch...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/skywatch.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Memory snapshot backends
	ctx := context.Background()
	var pgPool *storage.PostgresPool
	backendFor := func(memoryType string) storage.Backend {
		switch cfg.Storage.Type {
		case "file":
			return storage.NewFileBackend(cfg.Storage.Dir, memoryType, logger)
		case "redis":
			backend, rerr := storage.NewRedisBackend(cfg.Storage.RedisURL, memoryType, logger)
			if rerr != nil {
				logger.Warn("Redis unavailable, memory will not persist",
					zap.String("memory", memoryType), zap.Error(rerr))
				return nil
			}
			return backend
		case "postgres":
			if pgPool == nil {
				pool, perr := storage.NewPostgresPool(ctx, cfg.Storage.PostgresDSN, logger)
				if perr != nil {
					logger.Warn("PostgreSQL unavailable, memory will not persist", zap.Error(perr))
					return nil
				}
				pgPool = pool
			}
			return pgPool.Backend(memoryType)
		default:
			return nil
		}
	}

	working := memory.NewWorkingMemory(backendFor("working"), logger)
	episodic := memory.NewEpisodicMemory(backendFor("episodic"), logger)
	semantic := memory.NewSemanticMemory(backendFor("semantic"), logger)
	procedural := memory.NewProceduralMemory(backendFor("procedural"), logger)

	// LLM providers and role clients
	providers := make(map[string]provider.Provider)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			providers[pc.ID] = provider.NewOpenAIProvider(provCfg, logger)
		case "ollama":
			providers[pc.ID] = provider.NewOllamaProvider(provCfg, logger)
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	clientFor := func(role provider.Role, binding config.RoleBinding) *provider.Client {
		primary, ok := providers[binding.Primary]
		if !ok {
			logger.Fatal("role bound to unknown provider",
				zap.String("role", string(role)), zap.String("provider", binding.Primary))
		}
		return provider.NewClient(role, primary, providers[binding.Fallback], logger)
	}
	reasoningClient := clientFor(provider.RoleReasoning, cfg.Roles.Reasoning)
	generalClient := clientFor(provider.RoleGeneral, cfg.Roles.General)

	// Tool catalog and action space
	catalog := tools.NewCatalog()
	tools.RegisterDefaults(catalog, tools.NewRegionMapper(os.Getenv("NOMINATIM_URL"), logger))
	for _, tc := range cfg.Tools {
		catalog.Register(tools.Definition{
			Name: tc.Name, Description: tc.Description, Parameters: tc.Parameters,
		}, tools.NotImplemented(tc.Name))
	}
	registry := action.NewRegistry(catalog, episodic, semantic, procedural, logger)

	eng := engine.NewEngine(engine.Deps{
		Reasoning:    reasoningClient,
		General:      generalClient,
		Catalog:      catalog,
		Registry:     registry,
		Working:      working,
		Episodic:     episodic,
		Semantic:     semantic,
		Procedural:   procedural,
		MaxCycles:    cfg.Agent.MaxCycles,
		ParseRetries: cfg.Agent.ParseRetries,
		Logger:       logger,
	})

	handler := api.NewHandler(eng, registry, catalog, working, episodic, semantic, procedural, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Skywatch listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Skywatch...")
	srv.Shutdown(context.Background())
	if pgPool != nil {
		pgPool.Close()
	}
}
