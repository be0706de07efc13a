package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Vector store selections.
const (
	VectorDBLocal = "local"
	VectorDBIDOL  = "idol"
)

// Retrieval search types.
const (
	SearchSimilarity = "similarity"
	SearchMMR        = "mmr"
)

// DefaultIndexBatchSize is the IDOL ingestion flush threshold in bytes.
const DefaultIndexBatchSize = 5 * 1204 * 1024

// Config holds all configuration for docqa.
type Config struct {
	VectorDB              string          `yaml:"vector_db"`    // "local" or "idol"
	VectorCount           int             `yaml:"vector_count"` // documents retrieved per question
	ReturnSourceDocuments bool            `yaml:"return_source_documents"`
	Retrieval             RetrievalConfig `yaml:"retrieval"`
	Data                  DataConfig      `yaml:"data"`
	Split                 SplitConfig     `yaml:"split"`
	Local                 LocalConfig     `yaml:"local"`
	IDOL                  IDOLConfig      `yaml:"idol"`
	Embedding             EmbeddingConfig `yaml:"embedding"`
	Cache                 CacheConfig     `yaml:"cache"`
	LLM                   LLMConfig       `yaml:"llm"`
	Logging               LoggingConfig   `yaml:"logging"`
	Server                ServerConfig    `yaml:"server"`
}

// RetrievalConfig selects how the vector_count documents are picked.
type RetrievalConfig struct {
	SearchType string  `yaml:"search_type"` // "similarity" or "mmr"
	FetchK     int     `yaml:"fetch_k"`     // mmr candidates, 0 means 4*vector_count
	Lambda     float64 `yaml:"lambda"`      // mmr relevance weight in (0, 1]
}

// DataConfig holds document loading configuration.
type DataConfig struct {
	Path     string   `yaml:"path"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// SplitConfig holds text splitting configuration.
type SplitConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	SeparatorRegex string `yaml:"separator_regex"` // when set, split on this regex instead of the recursive splitter
}

// LocalConfig holds the local vector index configuration.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// IDOLConfig holds IDOL content engine configuration.
type IDOLConfig struct {
	IndexURL       string `yaml:"index_url"`
	SearchURL      string `yaml:"search_url"`
	VectorField    string `yaml:"vector_field"`
	Database       string `yaml:"database"`
	IndexBatchSize int    `yaml:"index_batch_size"`
	VectorSearch   bool   `yaml:"vector_search"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`    // "openai", "mock"
	Model       string `yaml:"model"`       // e.g. "sentence-transformers/all-MiniLM-L6-v2"
	BaseURL     string `yaml:"base_url"`    // OpenAI-compatible embeddings server
	APIKeyEnv   string `yaml:"api_key_env"` // Environment variable for API key
	Device      string `yaml:"device"`      // reported to logs; placement is up to the embedding server
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"` // texts per HTTP request
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CacheConfig holds embedding cache configuration.
type CacheConfig struct {
	Backend    string   `yaml:"backend"` // "none", "memory", "bolt", "valkey"
	Path       string   `yaml:"path"`
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	TTLSecs    int      `yaml:"ttl_secs"`
	MaxEntries int      `yaml:"max_entries"`
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Backend      string         `yaml:"backend"` // "search-only", "ollama", "openai"
	Model        string         `yaml:"model"`
	BaseURL      string         `yaml:"base_url"`
	APIKeyEnv    string         `yaml:"api_key_env"`
	MaxNewTokens int            `yaml:"max_new_tokens"`
	Temperature  float64        `yaml:"temperature"`
	TimeoutSecs  int            `yaml:"timeout_secs"`
	Options      map[string]any `yaml:"options"` // passed through to backends that accept raw options
	PromptFile   string         `yaml:"prompt_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_secs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		VectorDB:              VectorDBLocal,
		VectorCount:           2,
		ReturnSourceDocuments: true,
		Retrieval: RetrievalConfig{
			SearchType: SearchSimilarity,
			Lambda:     0.7,
		},
		Data: DataConfig{
			Path:     "data",
			Includes: []string{"**/*.pdf", "**/*.docx", "**/*.txt", "**/*.md"},
			Excludes: []string{"**/.git/**", "**/~$*"},
		},
		Split: SplitConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Local: LocalConfig{
			Path: filepath.Join("vectorstore", "db_local"),
		},
		IDOL: IDOLConfig{
			IndexURL:       "http://localhost:9101",
			SearchURL:      "http://localhost:9100",
			VectorField:    "VECTOR",
			Database:       "DOCQA",
			IndexBatchSize: DefaultIndexBatchSize,
			VectorSearch:   true,
			TimeoutSecs:    60,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "sentence-transformers/all-MiniLM-L6-v2",
			BaseURL:     "http://localhost:8080/v1",
			APIKeyEnv:   "EMBEDDINGS_API_KEY",
			Device:      "cpu",
			Dimension:   384,
			BatchSize:   64,
			TimeoutSecs: 120,
		},
		Cache: CacheConfig{
			Backend:    "none",
			Path:       filepath.Join("vectorstore", "embcache.db"),
			TTLSecs:    0,
			MaxEntries: 10000,
		},
		LLM: LLMConfig{
			Backend:      "search-only",
			Model:        "llama2",
			BaseURL:      "http://localhost:11434",
			APIKeyEnv:    "LLM_API_KEY",
			MaxNewTokens: 256,
			Temperature:  0.01,
			TimeoutSecs:  300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docqa.yaml,
// then config/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"docqa.yaml", filepath.Join("config", "config.yaml")} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// Return defaults
	return DefaultConfig(), nil
}

// LoadEnv loads .env from dir if present. Variables already set in the
// process environment win.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for values the program cannot run with.
func (c *Config) Validate() error {
	switch c.VectorDB {
	case VectorDBLocal, VectorDBIDOL:
	default:
		return fmt.Errorf("vector_db must be %q or %q, got %q", VectorDBLocal, VectorDBIDOL, c.VectorDB)
	}
	if c.VectorCount <= 0 {
		return fmt.Errorf("vector_count must be positive, got %d", c.VectorCount)
	}
	switch c.Retrieval.SearchType {
	case "", SearchSimilarity:
	case SearchMMR:
		if c.Retrieval.Lambda <= 0 || c.Retrieval.Lambda > 1 {
			return fmt.Errorf("retrieval.lambda must be in (0, 1], got %v", c.Retrieval.Lambda)
		}
	default:
		return fmt.Errorf("unsupported retrieval.search_type: %s", c.Retrieval.SearchType)
	}
	if c.Split.ChunkSize <= 0 {
		return fmt.Errorf("split.chunk_size must be positive, got %d", c.Split.ChunkSize)
	}
	if c.Split.ChunkOverlap < 0 || c.Split.ChunkOverlap >= c.Split.ChunkSize {
		return fmt.Errorf("split.chunk_overlap must be in [0, chunk_size), got %d", c.Split.ChunkOverlap)
	}
	if c.Split.SeparatorRegex != "" {
		if _, err := regexp.Compile(c.Split.SeparatorRegex); err != nil {
			return fmt.Errorf("split.separator_regex: %w", err)
		}
	}
	if c.VectorDB == VectorDBIDOL {
		if c.IDOL.IndexURL == "" || c.IDOL.SearchURL == "" {
			return errors.New("idol.index_url and idol.search_url are required")
		}
		if c.IDOL.IndexBatchSize <= 0 {
			return fmt.Errorf("idol.index_batch_size must be positive, got %d", c.IDOL.IndexBatchSize)
		}
	}
	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	switch c.Cache.Backend {
	case "", "none", "memory", "bolt":
	case "valkey":
		if len(c.Cache.Addrs) == 0 {
			return errors.New("cache.addrs is required for the valkey backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	switch c.LLM.Backend {
	case "search-only", "ollama", "openai":
	default:
		return fmt.Errorf("unsupported llm backend: %s", c.LLM.Backend)
	}
	return nil
}

// normalize lower-cases selector fields so "IDOL" and "FAISS" style values work.
func (c *Config) normalize() {
	c.VectorDB = strings.ToLower(strings.TrimSpace(c.VectorDB))
	if c.VectorDB == "faiss" {
		c.VectorDB = VectorDBLocal
	}
	c.Retrieval.SearchType = strings.ToLower(c.Retrieval.SearchType)
	c.Embedding.Provider = strings.ToLower(c.Embedding.Provider)
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	c.LLM.Backend = strings.ToLower(c.LLM.Backend)
}

// LocalIndexPath returns the path to the local index database.
func (c *Config) LocalIndexPath() string {
	return filepath.Join(c.Local.Path, "index.db")
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${VAR} with the value of the environment variable.
func expandEnvVars(data []byte) []byte {
	return envVarRe.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarRe.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
