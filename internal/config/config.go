// Package config handles configuration loading and validation for CodeWeaver.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the default configuration file name (without extension).
	DefaultConfigFile = ".codeweaver"
	// DefaultConfigType is the default configuration file type.
	DefaultConfigType = "yaml"
)

// Config holds all configuration for CodeWeaver. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	// Analysis configures the source analysis.
	Analysis AnalysisConfig `mapstructure:"analysis"`
	// Stage configures the intermediate record store.
	Stage StageConfig `mapstructure:"stage"`
	// Graph configures graph storage.
	Graph GraphConfig `mapstructure:"graph"`
}

// AnalysisConfig configures the source analysis.
type AnalysisConfig struct {
	// Root is the directory whose Python sources are analyzed.
	Root string `mapstructure:"root"`
	// ChunkSize bounds mutations per graph transaction.
	ChunkSize int `mapstructure:"chunk_size"`
}

// StageConfig configures the intermediate record store.
type StageConfig struct {
	// Path is the SQLite database file used for staging.
	Path string `mapstructure:"path"`
}

// GraphConfig holds graph storage configuration.
type GraphConfig struct {
	// Storage is the storage backend (embedded or neo4j).
	Storage string `mapstructure:"storage"`
	// Path is the embedded database directory (used when Storage is "embedded").
	Path string `mapstructure:"path"`
	// Neo4jURI is the Neo4j connection URI (used when Storage is "neo4j").
	Neo4jURI string `mapstructure:"neo4j_uri"`
	// Neo4jUser is the Neo4j username.
	Neo4jUser string `mapstructure:"neo4j_user"`
	// Neo4jPassword is the Neo4j password; prefer the
	// CODEWEAVER_GRAPH_NEO4J_PASSWORD environment variable over the file.
	Neo4jPassword string `mapstructure:"neo4j_password"`
}

// Load loads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Check if a specific config file was set via CLI flag (stored in global viper)
	globalViper := viper.GetViper()
	if configFile := globalViper.GetString("config_file"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigFile)
		v.SetConfigType(DefaultConfigType)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CODEWEAVER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Analysis.Root == "" {
		return fmt.Errorf("analysis root is required")
	}
	if c.Analysis.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must not be negative, got %d", c.Analysis.ChunkSize)
	}
	if c.Stage.Path == "" {
		return fmt.Errorf("stage path is required")
	}

	switch c.Graph.Storage {
	case "embedded":
		if c.Graph.Path == "" {
			return fmt.Errorf("graph path is required when storage is 'embedded'")
		}
	case "neo4j":
		if c.Graph.Neo4jURI == "" {
			return fmt.Errorf("neo4j_uri is required when graph storage is 'neo4j'")
		}
	default:
		return fmt.Errorf("graph storage must be 'embedded' or 'neo4j', got %q", c.Graph.Storage)
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.root", "")
	v.SetDefault("analysis.chunk_size", 1000)

	v.SetDefault("stage.path", ".codeweaver.stage.db")

	v.SetDefault("graph.storage", "embedded")
	v.SetDefault("graph.path", ".codeweaver.graph.db")
	v.SetDefault("graph.neo4j_user", "neo4j")
}
