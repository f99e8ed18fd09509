package config

import (
	"os"

	"go.yaml.in/yaml/v3"
)

// fileConfig mirrors Config with yaml tags for serialization.
type fileConfig struct {
	Analysis struct {
		Root      string `yaml:"root"`
		ChunkSize int    `yaml:"chunk_size"`
	} `yaml:"analysis"`
	Stage struct {
		Path string `yaml:"path"`
	} `yaml:"stage"`
	Graph struct {
		Storage  string `yaml:"storage"`
		Path     string `yaml:"path"`
		Neo4jURI string `yaml:"neo4j_uri,omitempty"`
	} `yaml:"graph"`
}

// WriteConfig serializes the given Config to YAML and writes it to path.
func WriteConfig(cfg *Config, path string) error {
	var fc fileConfig
	fc.Analysis.Root = cfg.Analysis.Root
	fc.Analysis.ChunkSize = cfg.Analysis.ChunkSize
	fc.Stage.Path = cfg.Stage.Path
	fc.Graph.Storage = cfg.Graph.Storage
	fc.Graph.Path = cfg.Graph.Path
	fc.Graph.Neo4jURI = cfg.Graph.Neo4jURI

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	content := "# CodeWeaver configuration\n" + string(data)
	return os.WriteFile(path, []byte(content), 0644)
}
