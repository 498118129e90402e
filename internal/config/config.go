package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Vector store backends
const (
	VectorStoreQdrant = "qdrant"
	VectorStoreMemory = "memory"
)

// Config holds all configuration for askpaper
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Database    DatabaseConfig    `mapstructure:"database"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Grounding   GroundingConfig   `mapstructure:"grounding"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// VectorStoreConfig selects and configures the vector index
type VectorStoreConfig struct {
	Type      string       `mapstructure:"type"`
	Dimension int          `mapstructure:"dimension"`
	Qdrant    QdrantConfig `mapstructure:"qdrant"`
}

// QdrantConfig holds Qdrant gRPC connection settings
type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

// LLMConfig holds OpenAI-compatible provider configuration
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	ChatModel         string        `mapstructure:"chat_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	ClassifierTimeout time.Duration `mapstructure:"classifier_timeout"`
	AnswerTimeout     time.Duration `mapstructure:"answer_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

// RetrievalConfig holds retrieval limits
type RetrievalConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	GlobalCap    int `mapstructure:"global_cap"`
}

// GroundingConfig holds answer grounding settings
type GroundingConfig struct {
	FoundInfoThreshold float64 `mapstructure:"found_info_threshold"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables, e.g. ASKPAPER_LLM_BASE_URL
	v.SetEnvPrefix("ASKPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/askpaper.db")

	v.SetDefault("vector_store.type", VectorStoreQdrant)
	v.SetDefault("vector_store.dimension", 768)
	v.SetDefault("vector_store.qdrant.host", "localhost")
	v.SetDefault("vector_store.qdrant.port", 6334)
	v.SetDefault("vector_store.qdrant.api_key", "")
	v.SetDefault("vector_store.qdrant.use_tls", false)
	v.SetDefault("vector_store.qdrant.collection", "research_papers")

	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.chat_model", "qwen2.5:7b")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.classifier_timeout", "10s")
	v.SetDefault("llm.answer_timeout", "60s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "1s")

	v.SetDefault("retrieval.default_limit", 10)
	v.SetDefault("retrieval.global_cap", 20)

	v.SetDefault("grounding.found_info_threshold", 0.4)

	v.SetDefault("log.development", false)
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	switch c.VectorStore.Type {
	case VectorStoreQdrant, VectorStoreMemory:
	default:
		return fmt.Errorf("unknown vector_store.type %q", c.VectorStore.Type)
	}
	if c.VectorStore.Dimension <= 0 {
		return fmt.Errorf("vector_store.dimension must be positive, got %d", c.VectorStore.Dimension)
	}
	if c.Grounding.FoundInfoThreshold < 0 || c.Grounding.FoundInfoThreshold > 1 {
		return fmt.Errorf("grounding.found_info_threshold must be within [0, 1], got %v", c.Grounding.FoundInfoThreshold)
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
