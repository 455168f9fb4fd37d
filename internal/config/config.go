package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "./configs/config.yaml"

	ProfileStandard = "standard"
	ProfileQuick    = "quick"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"
)

type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	LLM       LLMConfig       `yaml:"llm"`
	RAG       RAGConfig       `yaml:"rag"`
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DatasetConfig struct {
	Path string `yaml:"path"`
}

// ChunkProfile is one chunking policy. MaxPagesPerDoc of 0 means no cap.
type ChunkProfile struct {
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	MaxPagesPerDoc int `yaml:"max_pages_per_doc"`
}

type ChunkingConfig struct {
	Standard ChunkProfile `yaml:"standard"`
	Quick    ChunkProfile `yaml:"quick"`
}

// Profile returns the named chunking profile.
func (c ChunkingConfig) Profile(name string) (ChunkProfile, error) {
	switch name {
	case ProfileStandard, "":
		return c.Standard, nil
	case ProfileQuick:
		return c.Quick, nil
	default:
		return ChunkProfile{}, fmt.Errorf("unknown chunking profile %q", name)
	}
}

type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // ollama, openai
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"` // openai only, 0 = model default
	BatchSize  int    `yaml:"batch_size"`
}

// Identity names the embedding space; indexes record it and queries must match it.
func (c EmbeddingConfig) Identity() string {
	return c.Provider + "/" + c.Model
}

type IndexConfig struct {
	Backend       string `yaml:"backend"` // chromem, pgvector
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	Debug         bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // googleai, openai, ollama
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type RAGConfig struct {
	TopK int `yaml:"top_k"`
}

type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	ServiceName     string `yaml:"service_name"`
	StaticDir       string `yaml:"static_dir"`
	StrictStatus    bool   `yaml:"strict_status"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"` // 0 disables; generation calls can be slow
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// CacheConfig enables the Redis embedding cache when Addrs is non-empty.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Dataset.Path == "" {
		c.Dataset.Path = "dataset"
	}
	if c.Chunking.Standard.ChunkSize <= 0 {
		c.Chunking.Standard = ChunkProfile{ChunkSize: 800, ChunkOverlap: 200}
	}
	if c.Chunking.Quick.ChunkSize <= 0 {
		c.Chunking.Quick = ChunkProfile{ChunkSize: 500, ChunkOverlap: 50, MaxPagesPerDoc: 20}
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "all-minilm"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Index.Backend == "" {
		c.Index.Backend = BackendChromem
	}
	if c.Index.Path == "" {
		c.Index.Path = "vectorstore"
	}
	c.Index.Path = filepath.Clean(c.Index.Path)
	if c.Index.Collection == "" {
		c.Index.Collection = "legal_documents"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "googleai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-1.5-flash"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 3
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.HTTP.ServiceName == "" {
		c.HTTP.ServiceName = "Law-GPT API"
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 7
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	for name, p := range map[string]ChunkProfile{ProfileStandard: c.Chunking.Standard, ProfileQuick: c.Chunking.Quick} {
		if p.ChunkSize <= 0 {
			return fmt.Errorf("chunking.%s.chunk_size must be positive, got %d", name, p.ChunkSize)
		}
		if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
			return fmt.Errorf("chunking.%s.chunk_overlap must be in [0, chunk_size), got %d", name, p.ChunkOverlap)
		}
		if p.MaxPagesPerDoc < 0 {
			return fmt.Errorf("chunking.%s.max_pages_per_doc must not be negative", name)
		}
	}
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embedding.provider must be \"ollama\" or \"openai\", got %q", c.Embedding.Provider)
	}
	switch c.Index.Backend {
	case BackendChromem:
	case BackendPgvector:
		if c.Index.PostgresDSN == "" {
			return fmt.Errorf("index.postgres_dsn is required for the %s backend", BackendPgvector)
		}
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", BackendChromem, BackendPgvector, c.Index.Backend)
	}
	if k := c.Index.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("index.encryption_key must be 32 bytes, got %d", len(k))
	}
	switch c.LLM.Provider {
	case "googleai", "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider must be \"googleai\", \"openai\" or \"ollama\", got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
