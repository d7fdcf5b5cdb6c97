// Package config loads application settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/bridge"
	"github.com/poiesic/seeq/chunker"
	"github.com/poiesic/seeq/search/qdrant"
)

// Index types.
const (
	IndexLinear = "linear"
	IndexQdrant = "qdrant"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// AIConfig selects the OpenAI-compatible services.
type AIConfig struct {
	EmbeddingHost   string `yaml:"embedding_host"`
	GenerationHost  string `yaml:"generation_host"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
	// APIKey is usually left empty in the file and supplied through OPENAI_API_KEY.
	APIKey string `yaml:"api_key,omitempty"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type EmbeddingConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxAttempts int `yaml:"max_attempts"`
}

type SearchConfig struct {
	TopK             int `yaml:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// QdrantConfig contains connection details for a Qdrant index.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
}

type IndexConfig struct {
	Type   string       `yaml:"type"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// BridgeConfig locates the foreign OCR collection and how often it is reconciled.
type BridgeConfig struct {
	Mongo    bridge.MongoConfig `yaml:"mongo"`
	Schedule string             `yaml:"schedule"`
}

// Config is the root application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	AI        AIConfig        `yaml:"ai"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
	Bridge    BridgeConfig    `yaml:"bridge"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	q := qdrant.DefaultConfig()
	return &Config{
		DataDir: defaultDataDir(),
		AI: AIConfig{
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			GenerationHost:  aiDefaults.GenerationHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			GenerationModel: aiDefaults.GenerationModel,
		},
		Chunking: ChunkingConfig{
			Size:    chunker.DefaultSize,
			Overlap: chunker.DefaultOverlap,
		},
		Embedding: EmbeddingConfig{BatchSize: 20, MaxAttempts: 5},
		Search:    SearchConfig{TopK: 5, MaxContextTokens: 4000},
		Index: IndexConfig{
			Type: IndexLinear,
			Qdrant: QdrantConfig{
				Host:       q.Host,
				Port:       q.Port,
				Collection: q.Collection,
				Dimension:  q.Dimension,
			},
		},
		Bridge: BridgeConfig{
			Mongo:    bridge.DefaultMongoConfig(),
			Schedule: bridge.DefaultSchedule,
		},
	}
}

// Load reads a config from path. An empty path or a missing file yields the
// defaults. Environment overrides are applied in every case.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// LoadDefault loads .env if present, then tries ./seeq.yaml and
// ~/.config/seeq/config.yaml in that order.
// The returned path is the file that was read, or "" when only defaults apply.
func LoadDefault() (*Config, string, error) {
	// godotenv.Load does not overwrite variables already set.
	_ = godotenv.Load()

	candidates := []string{"seeq.yaml"}
	if userPath, err := defaultUserConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	cfg, err := Load("")
	return cfg, "", err
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive", ErrInvalidConfig)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in [0, size)", ErrInvalidConfig)
	}
	switch c.Index.Type {
	case IndexLinear, IndexQdrant:
	default:
		return fmt.Errorf("%w: unknown index type %q", ErrInvalidConfig, c.Index.Type)
	}
	return c.AIConfig().Validate()
}

// AIConfig converts the AI section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithAPIKey(c.AI.APIKey),
	)
}

// QdrantConfig converts the index section to a qdrant.Config.
func (c *Config) QdrantConfig() qdrant.Config {
	q := c.Index.Qdrant
	return qdrant.Config{
		Host:       q.Host,
		Port:       q.Port,
		APIKey:     q.APIKey,
		UseTLS:     q.UseTLS,
		Collection: q.Collection,
		Dimension:  q.Dimension,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seeq"
	}
	return filepath.Join(home, ".local", "share", "seeq")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "seeq", "config.yaml"), nil
}

// applyDefaults fills fields a partial file left empty.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = d.DataDir
	}
	if cfg.AI.EmbeddingHost == "" {
		cfg.AI.EmbeddingHost = d.AI.EmbeddingHost
	}
	if cfg.AI.GenerationHost == "" {
		cfg.AI.GenerationHost = cfg.AI.EmbeddingHost
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = d.AI.EmbeddingModel
	}
	if cfg.AI.GenerationModel == "" {
		cfg.AI.GenerationModel = d.AI.GenerationModel
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = d.Chunking.Size
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = d.Embedding.BatchSize
	}
	if cfg.Embedding.MaxAttempts <= 0 {
		cfg.Embedding.MaxAttempts = d.Embedding.MaxAttempts
	}
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = d.Search.TopK
	}
	if cfg.Search.MaxContextTokens <= 0 {
		cfg.Search.MaxContextTokens = d.Search.MaxContextTokens
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = d.Index.Type
	}
	cfg.Index.Type = strings.ToLower(cfg.Index.Type)
	q, dq := &cfg.Index.Qdrant, d.Index.Qdrant
	if q.Host == "" {
		q.Host = dq.Host
	}
	if q.Port == 0 {
		q.Port = dq.Port
	}
	if q.Collection == "" {
		q.Collection = dq.Collection
	}
	if q.Dimension == 0 {
		q.Dimension = dq.Dimension
	}
	m, dm := &cfg.Bridge.Mongo, d.Bridge.Mongo
	if m.URI == "" {
		m.URI = dm.URI
	}
	if m.Database == "" {
		m.Database = dm.Database
	}
	if m.Collection == "" {
		m.Collection = dm.Collection
	}
	if cfg.Bridge.Schedule == "" {
		cfg.Bridge.Schedule = d.Bridge.Schedule
	}
}

// applyEnv overrides settings from SEEQ_* variables. OPENAI_API_KEY fills the
// key when SEEQ_API_KEY is not set. Unparseable numbers are ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("SEEQ_DATA_DIR", &cfg.DataDir)
	str("OPENAI_API_KEY", &cfg.AI.APIKey)
	str("SEEQ_API_KEY", &cfg.AI.APIKey)
	if v, ok := lookup("SEEQ_AI_HOST"); ok && v != "" {
		cfg.AI.EmbeddingHost = v
		cfg.AI.GenerationHost = v
	}
	str("SEEQ_EMBEDDING_HOST", &cfg.AI.EmbeddingHost)
	str("SEEQ_GENERATION_HOST", &cfg.AI.GenerationHost)
	str("SEEQ_EMBEDDING_MODEL", &cfg.AI.EmbeddingModel)
	str("SEEQ_GENERATION_MODEL", &cfg.AI.GenerationModel)
	num("SEEQ_CHUNK_SIZE", &cfg.Chunking.Size)
	num("SEEQ_CHUNK_OVERLAP", &cfg.Chunking.Overlap)
	num("SEEQ_EMBED_BATCH_SIZE", &cfg.Embedding.BatchSize)
	num("SEEQ_TOP_K", &cfg.Search.TopK)
	num("SEEQ_MAX_CONTEXT_TOKENS", &cfg.Search.MaxContextTokens)
	str("SEEQ_INDEX", &cfg.Index.Type)
	str("SEEQ_QDRANT_HOST", &cfg.Index.Qdrant.Host)
	num("SEEQ_QDRANT_PORT", &cfg.Index.Qdrant.Port)
	str("SEEQ_QDRANT_API_KEY", &cfg.Index.Qdrant.APIKey)
	str("SEEQ_QDRANT_COLLECTION", &cfg.Index.Qdrant.Collection)
	str("SEEQ_MONGO_URI", &cfg.Bridge.Mongo.URI)
	str("SEEQ_MONGO_DATABASE", &cfg.Bridge.Mongo.Database)
	str("SEEQ_MONGO_COLLECTION", &cfg.Bridge.Mongo.Collection)
	str("SEEQ_SYNC_SCHEDULE", &cfg.Bridge.Schedule)
	cfg.Index.Type = strings.ToLower(cfg.Index.Type)
}
