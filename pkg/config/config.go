package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Neo4j       Neo4jConfig
	DomainGraph DomainGraphConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	LLM         LLMConfig
	Ingest      IngestConfig
	Chunking    ChunkingConfig
	Agent       AgentConfig
	Resolver    ResolverConfig
	Logging     LoggingConfig
}

// ServerConfig covers the ops endpoint only; work items arrive out of band.
type ServerConfig struct {
	Host string
	Port int
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// DomainGraphConfig points at the canonical business-entity graph, which is a
// separate deployment from the document graph.
type DomainGraphConfig struct {
	URI       string
	Username  string
	Password  string
	Database  string
	Workspace string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type IngestConfig struct {
	Concurrency int
	UseChunks   bool
}

type ChunkingConfig struct {
	MaxChars int
	Overlap  int
}

type AgentConfig struct {
	MaxToolCalls int
	NoteMaxBytes int
}

type ResolverConfig struct {
	Enabled bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/docgraph")

	viper.SetEnvPrefix("PIPELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 9090)

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("domaingraph.uri", "")
	viper.SetDefault("domaingraph.username", "neo4j")
	viper.SetDefault("domaingraph.password", "password")
	viper.SetDefault("domaingraph.database", "neo4j")
	viper.SetDefault("domaingraph.workspace", "")

	viper.SetDefault("sqlite.path", "./data/pipeline.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 4096)
	viper.SetDefault("llm.timeoutSec", 120)

	viper.SetDefault("ingest.concurrency", 16)
	viper.SetDefault("ingest.useChunks", true)

	viper.SetDefault("chunking.maxChars", 6000)
	viper.SetDefault("chunking.overlap", 0)

	viper.SetDefault("agent.maxToolCalls", 25)
	viper.SetDefault("agent.noteMaxBytes", 256*1024)

	viper.SetDefault("resolver.enabled", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
