package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/idol"
	"docqa/internal/adapter/llm"
	retrieval "docqa/internal/adapter/retriever"
	"docqa/internal/adapter/splitter"
	"docqa/internal/adapter/store"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// storeMode selects which IDOL endpoint a command talks to.
type storeMode int

const (
	modeIndex storeMode = iota
	modeSearch
)

// components holds everything opened for one command and how to release it.
type components struct {
	embedder port.Embedder
	store    port.VectorStore
	closers  []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newEmbedder creates the configured embedder, wrapped in the embedding cache
// when one is configured.
func newEmbedder(cfg *config.Config, log *zap.Logger) (port.Embedder, func(), error) {
	var base port.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		base = embedding.NewOpenAIEmbedder(embedding.Config{
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
			Device:    cfg.Embedding.Device,
			Timeout:   secs(cfg.Embedding.TimeoutSecs),
			Logger:    log,
		})
	case "mock":
		base = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	ttl := secs(cfg.Cache.TTLSecs)
	switch cfg.Cache.Backend {
	case "", "none":
		return base, func() {}, nil
	case "memory":
		return embedding.NewCached(base, cache.NewMemoryStore(cfg.Cache.MaxEntries, ttl), log), func() {}, nil
	case "bolt":
		s, err := cache.NewBoltStore(resolvePath(cfg.Cache.Path), ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
		return embedding.NewCached(base, s, log), func() { _ = s.Close() }, nil
	case "valkey":
		s, err := cache.NewValkeyStore(cache.ValkeyConfig{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			TTL:      ttl,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create valkey cache: %w", err)
		}
		return embedding.NewCached(base, s, log), s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// openComponents opens the embedder and the configured vector store.
func openComponents(cfg *config.Config, mode storeMode, rebuild bool, log *zap.Logger) (*components, error) {
	emb, closeEmb, err := newEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}
	c := &components{embedder: emb, closers: []func(){closeEmb}}

	switch cfg.VectorDB {
	case config.VectorDBIDOL:
		url := cfg.IDOL.SearchURL
		if mode == modeIndex {
			url = cfg.IDOL.IndexURL
		}
		c.store = idol.New(emb, idol.Config{
			URL:            url,
			VectorField:    cfg.IDOL.VectorField,
			Database:       cfg.IDOL.Database,
			IndexBatchSize: cfg.IDOL.IndexBatchSize,
			VectorSearch:   cfg.IDOL.VectorSearch,
			Timeout:        secs(cfg.IDOL.TimeoutSecs),
		}, idol.WithLogger(log))
		log.Debug("using idol store", zap.String("url", url), zap.String("database", cfg.IDOL.Database))
	default:
		opts := []store.Option{store.WithLogger(log)}
		if rebuild {
			opts = append(opts, store.WithRebuild())
		}
		path := resolvePath(cfg.LocalIndexPath())
		s, err := store.Open(path, emb, opts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open local index %s: %w", path, err)
		}
		c.store = s
		c.closers = append(c.closers, func() { _ = s.Close() })
		log.Debug("using local store", zap.String("path", path), zap.Int("vectors", s.Count()))
	}
	return c, nil
}

func newSplitter(cfg *config.Config) (port.Splitter, error) {
	if cfg.Split.SeparatorRegex != "" {
		s, err := splitter.NewRegexSplitter(cfg.Split.SeparatorRegex, cfg.Split.ChunkSize, cfg.Split.ChunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("invalid split.separator_regex: %w", err)
		}
		return s, nil
	}
	return splitter.NewRecursiveSplitter(cfg.Split.ChunkSize, cfg.Split.ChunkOverlap), nil
}

func newLLM(cfg *config.Config, log *zap.Logger) (port.LLM, error) {
	switch cfg.LLM.Backend {
	case "search-only":
		return llm.SearchOnly{}, nil
	case "ollama":
		return llm.NewOllama(llm.OllamaConfig{
			BaseURL:      cfg.LLM.BaseURL,
			Model:        cfg.LLM.Model,
			MaxNewTokens: cfg.LLM.MaxNewTokens,
			Temperature:  cfg.LLM.Temperature,
			Options:      cfg.LLM.Options,
			Timeout:      secs(cfg.LLM.TimeoutSecs),
			Logger:       log,
		}), nil
	case "openai":
		return llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:      cfg.LLM.BaseURL,
			APIKeyEnv:    cfg.LLM.APIKeyEnv,
			Model:        cfg.LLM.Model,
			MaxNewTokens: cfg.LLM.MaxNewTokens,
			Temperature:  cfg.LLM.Temperature,
			Timeout:      secs(cfg.LLM.TimeoutSecs),
			Logger:       log,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", cfg.LLM.Backend)
	}
}

// newQA assembles the retrieval QA chain over the search-side store.
func newQA(cfg *config.Config, log *zap.Logger) (*usecase.QAUseCase, *components, error) {
	c, err := openComponents(cfg, modeSearch, false, log)
	if err != nil {
		return nil, nil, err
	}

	model, err := newLLM(cfg, log)
	if err != nil {
		c.Close()
		return nil, nil, err
	}

	prompt, err := usecase.LoadPrompt(resolvePath(cfg.LLM.PromptFile))
	if err != nil {
		c.Close()
		return nil, nil, err
	}

	var retriever port.Retriever = usecase.NewVectorStoreRetriever(c.store, cfg.VectorCount)
	if cfg.Retrieval.SearchType == config.SearchMMR {
		retriever = retrieval.NewMMRRetriever(c.store, cfg.VectorCount, cfg.Retrieval.FetchK, cfg.Retrieval.Lambda, log)
	}
	log.Info("qa ready",
		zap.String("vector_db", cfg.VectorDB),
		zap.String("llm", model.ModelName()),
		zap.Int("k", cfg.VectorCount),
		zap.String("search_type", cfg.Retrieval.SearchType),
	)
	return usecase.NewQAUseCase(retriever, model, prompt, cfg.ReturnSourceDocuments, log), c, nil
}
