package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/answergen"
	answerclaude "github.com/coragem/retrieval/answergen/claude"
	answergemini "github.com/coragem/retrieval/answergen/gemini"
	"github.com/coragem/retrieval/chunker"
	"github.com/coragem/retrieval/config"
	"github.com/coragem/retrieval/docstore"
	docmem "github.com/coragem/retrieval/docstore/memory"
	docsupabase "github.com/coragem/retrieval/docstore/supabase"
	"github.com/coragem/retrieval/embedding"
	embgemini "github.com/coragem/retrieval/embedding/gemini"
	"github.com/coragem/retrieval/identity"
	"github.com/coragem/retrieval/ingestion"
	"github.com/coragem/retrieval/rag"
	"github.com/coragem/retrieval/resultcache"
	cachemem "github.com/coragem/retrieval/resultcache/memory"
	cacheredis "github.com/coragem/retrieval/resultcache/redis"
	"github.com/coragem/retrieval/vectorstore"
	vecmem "github.com/coragem/retrieval/vectorstore/memory"
	vecqdrant "github.com/coragem/retrieval/vectorstore/qdrant"
)

// app holds the wired components behind the CLI commands.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	verifier  *identity.Verifier
	ingestion *ingestion.Coordinator
	rag       *rag.Coordinator

	index vectorstore.Index
	store docstore.Store
	cache resultcache.Cache
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return logger
}

// buildApp assembles drivers and coordinators from the configuration.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg.LogLevel)

	index, err := buildIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	generator, err := buildGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(chunker.Config{
		Size:    cfg.Chunker.Size,
		Overlap: cfg.Chunker.Overlap,
	})
	if err != nil {
		return nil, err
	}

	verifier, err := identity.New(identity.Config{
		Secret: config.Secret(cfg.Auth.SecretEnv),
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, err
	}

	ingestor, err := ingestion.New(ingestion.Config{
		Store:       store,
		Index:       index,
		Embedder:    embedder,
		Chunker:     ch,
		Cache:       cache,
		Departments: cfg.Departments,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	retriever, err := rag.New(rag.Config{
		Index:               index,
		Embedder:            embedder,
		Generator:           generator,
		Cache:               cache,
		Store:               store,
		Departments:         cfg.Departments,
		Logger:              logger,
		ConfidenceThreshold: cfg.Retrieval.ConfidenceThreshold,
		SearchLimit:         cfg.Retrieval.SearchLimit,
		ContextLimit:        cfg.Retrieval.ContextLimit,
		CacheTTL:            time.Duration(cfg.Retrieval.CacheTTLSecs) * time.Second,
		NoAnswerTTL:         time.Duration(cfg.Retrieval.NoAnswerTTLSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		verifier:  verifier,
		ingestion: ingestor,
		rag:       retriever,
		index:     index,
		store:     store,
		cache:     cache,
	}, nil
}

func buildIndex(ctx context.Context, cfg *config.Config) (vectorstore.Index, error) {
	switch cfg.Index.Type {
	case "memory":
		return vecmem.New(), nil
	case "qdrant":
		client, err := vecqdrant.New(vecqdrant.Config{
			URL:            cfg.Index.Qdrant.URL,
			APIKey:         config.Secret(cfg.Index.Qdrant.APIKeyEnv),
			CollectionName: cfg.Index.Qdrant.Collection,
			VectorSize:     cfg.Index.Qdrant.VectorSize,
		})
		if err != nil {
			return nil, err
		}
		if err := client.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown index type %q", retrieval.ErrInvalidConfig, cfg.Index.Type)
	}
}

func buildStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return docmem.New(), nil
	case "supabase":
		return docsupabase.New(docsupabase.Config{
			URL:    cfg.Store.Supabase.URL,
			APIKey: config.Secret(cfg.Store.Supabase.APIKeyEnv),
		})
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", retrieval.ErrInvalidConfig, cfg.Store.Type)
	}
}

func buildCache(cfg *config.Config) (resultcache.Cache, error) {
	switch cfg.Cache.Type {
	case "none":
		return nil, nil
	case "memory":
		return cachemem.New(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: config.Secret(cfg.Cache.Redis.PasswordEnv),
			DB:       cfg.Cache.Redis.DB,
		})
		return cacheredis.New(client), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", retrieval.ErrInvalidConfig, cfg.Cache.Type)
	}
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	provider, err := embgemini.New(ctx, embgemini.Config{
		APIKey:    config.Secret(cfg.Embedding.APIKeyEnv),
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, err
	}
	return embedding.NewGateway(embedding.Config{
		Provider:       provider,
		BatchSize:      cfg.Embedding.BatchSize,
		MaxConcurrency: cfg.Embedding.MaxConcurrency,
	})
}

func buildGenerator(ctx context.Context, cfg *config.Config) (answergen.Generator, error) {
	switch cfg.Answer.Provider {
	case "claude":
		return answerclaude.New(answerclaude.Config{
			APIKey:      config.Secret(cfg.Answer.APIKeyEnv),
			Model:       cfg.Answer.Model,
			MaxTokens:   cfg.Answer.MaxTokens,
			Temperature: cfg.Answer.Temperature,
		})
	case "gemini":
		return answergemini.New(ctx, answergemini.Config{
			APIKey:      config.Secret(cfg.Answer.APIKeyEnv),
			Model:       cfg.Answer.Model,
			Temperature: float32(cfg.Answer.Temperature),
		})
	default:
		return nil, fmt.Errorf("%w: unknown answer provider %q", retrieval.ErrInvalidConfig, cfg.Answer.Provider)
	}
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close cache")
		}
	}
	if err := a.index.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close index")
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close store")
	}
}
