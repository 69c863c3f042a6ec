package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"veritas.app/backend/internal/cache"
	"veritas.app/backend/internal/config"
	"veritas.app/backend/internal/core"
	"veritas.app/backend/internal/search"
	"veritas.app/backend/internal/store"
)

// app holds the process-wide clients. Each is created once and shared by
// every request.
type app struct {
	dbStore   store.DocumentStore
	llm       *core.LLMService
	cache     *cache.RedisSourceCache
	retriever *core.EvidenceRetriever

	analysis *core.AnalysisService
	chats    *core.ChatService
}

func newApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close(context.Background(), log)
		}
	}()

	a.dbStore, err = openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.WithField("driver", cfg.StoreDriver).Info("document store ready")

	a.llm, err = core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		return nil, err
	}

	var primary, fallback search.Provider
	if cfg.SerpAPIKey != "" {
		primary = search.NewSerpAPI(cfg.SerpAPIKey, cfg.SearchTimeout)
	}
	if cfg.SearXNGURL != "" {
		fallback = search.NewSearXNG(cfg.SearXNGURL, cfg.SearchTimeout)
	}
	if primary == nil && fallback == nil {
		log.Warn("no search provider configured, flagged statements will have no sources")
	}

	opts := core.RetrieverOptions{
		MaxAttempts: cfg.SearchMaxAttempts,
		Timeout:     cfg.SearchTimeout,
		URLLog:      a.dbStore,
		Logger:      log,
	}
	if cfg.RedisAddr != "" {
		a.cache, err = cache.NewRedisSourceCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SearchCacheTTL)
		if err != nil {
			// The cache is an optimisation only.
			log.WithError(err).Warn("source cache unavailable, continuing without it")
			a.cache, err = nil, nil
		} else {
			opts.Cache = a.cache
		}
	}
	a.retriever = core.NewEvidenceRetriever(primary, fallback, opts)

	a.analysis = core.NewAnalysisService(a.llm, a.retriever, a.dbStore, cfg.LLMTimeout, log)
	a.chats = core.NewChatService(a.dbStore, log)
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.DocumentStore, error) {
	// Concrete results are checked before conversion so a failed open never
	// yields a non-nil interface holding a nil pointer.
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		s, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreDriverSQLite:
		s, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// Close waits for background writes and then releases every client.
func (a *app) Close(ctx context.Context, log *logrus.Logger) {
	if a.retriever != nil {
		a.retriever.Wait()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.WithError(err).Warn("failed to close source cache")
		}
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if a.dbStore != nil {
		if err := a.dbStore.Close(ctx); err != nil {
			log.WithError(err).Warn("failed to close document store")
		}
	}
}
