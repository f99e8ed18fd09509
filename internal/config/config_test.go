package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	})
	return tmpDir
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := chdirTemp(t)

	configContent := `analysis:
  root: /tmp/project
  chunk_size: 250

stage:
  path: /tmp/stage.db

graph:
  storage: neo4j
  neo4j_uri: bolt://localhost:7687
  neo4j_user: graph
`
	configPath := filepath.Join(tmpDir, DefaultConfigFile+"."+DefaultConfigType)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.Root != "/tmp/project" {
		t.Errorf("Analysis.Root = %q, want %q", cfg.Analysis.Root, "/tmp/project")
	}
	if cfg.Analysis.ChunkSize != 250 {
		t.Errorf("Analysis.ChunkSize = %d, want 250", cfg.Analysis.ChunkSize)
	}
	if cfg.Stage.Path != "/tmp/stage.db" {
		t.Errorf("Stage.Path = %q, want %q", cfg.Stage.Path, "/tmp/stage.db")
	}
	if cfg.Graph.Storage != "neo4j" {
		t.Errorf("Graph.Storage = %q, want %q", cfg.Graph.Storage, "neo4j")
	}
	if cfg.Graph.Neo4jURI != "bolt://localhost:7687" {
		t.Errorf("Graph.Neo4jURI = %q, want %q", cfg.Graph.Neo4jURI, "bolt://localhost:7687")
	}
	if cfg.Graph.Neo4jUser != "graph" {
		t.Errorf("Graph.Neo4jUser = %q, want %q", cfg.Graph.Neo4jUser, "graph")
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.ChunkSize != 1000 {
		t.Errorf("Analysis.ChunkSize = %d, want 1000 (default)", cfg.Analysis.ChunkSize)
	}
	if cfg.Stage.Path != ".codeweaver.stage.db" {
		t.Errorf("Stage.Path = %q, want %q", cfg.Stage.Path, ".codeweaver.stage.db")
	}
	if cfg.Graph.Storage != "embedded" {
		t.Errorf("Graph.Storage = %q, want %q", cfg.Graph.Storage, "embedded")
	}
	if cfg.Graph.Path != ".codeweaver.graph.db" {
		t.Errorf("Graph.Path = %q, want %q", cfg.Graph.Path, ".codeweaver.graph.db")
	}
	if cfg.Graph.Neo4jUser != "neo4j" {
		t.Errorf("Graph.Neo4jUser = %q, want %q", cfg.Graph.Neo4jUser, "neo4j")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Analysis: AnalysisConfig{Root: "/tmp/project", ChunkSize: 1000},
		Stage:    StageConfig{Path: "/tmp/stage.db"},
		Graph:    GraphConfig{Storage: "embedded", Path: "/tmp/graph.db"},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid embedded config",
			mutate: func(*Config) {},
		},
		{
			name: "valid neo4j config",
			mutate: func(c *Config) {
				c.Graph = GraphConfig{Storage: "neo4j", Neo4jURI: "bolt://localhost:7687"}
			},
		},
		{
			name:    "missing analysis root",
			mutate:  func(c *Config) { c.Analysis.Root = "" },
			wantErr: true,
			errMsg:  "analysis root is required",
		},
		{
			name:    "negative chunk size",
			mutate:  func(c *Config) { c.Analysis.ChunkSize = -1 },
			wantErr: true,
			errMsg:  "chunk_size must not be negative",
		},
		{
			name:    "missing stage path",
			mutate:  func(c *Config) { c.Stage.Path = "" },
			wantErr: true,
			errMsg:  "stage path is required",
		},
		{
			name:    "invalid graph storage",
			mutate:  func(c *Config) { c.Graph.Storage = "invalid" },
			wantErr: true,
			errMsg:  "graph storage must be",
		},
		{
			name: "embedded without path",
			mutate: func(c *Config) {
				c.Graph = GraphConfig{Storage: "embedded"}
			},
			wantErr: true,
			errMsg:  "graph path is required",
		},
		{
			name: "neo4j without uri",
			mutate: func(c *Config) {
				c.Graph = GraphConfig{Storage: "neo4j"}
			},
			wantErr: true,
			errMsg:  "neo4j_uri is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want it to contain %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error: %v", err)
			}
		})
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	tmpDir := chdirTemp(t)

	cfg := &Config{
		Analysis: AnalysisConfig{Root: "/tmp/project", ChunkSize: 500},
		Stage:    StageConfig{Path: "stage.db"},
		Graph:    GraphConfig{Storage: "embedded", Path: "graph.db"},
	}
	path := filepath.Join(tmpDir, DefaultConfigFile+"."+DefaultConfigType)
	if err := WriteConfig(cfg, path); err != nil {
		t.Fatalf("WriteConfig returned error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Analysis.Root != cfg.Analysis.Root {
		t.Errorf("Analysis.Root = %q, want %q", loaded.Analysis.Root, cfg.Analysis.Root)
	}
	if loaded.Analysis.ChunkSize != cfg.Analysis.ChunkSize {
		t.Errorf("Analysis.ChunkSize = %d, want %d", loaded.Analysis.ChunkSize, cfg.Analysis.ChunkSize)
	}
	if loaded.Stage.Path != cfg.Stage.Path {
		t.Errorf("Stage.Path = %q, want %q", loaded.Stage.Path, cfg.Stage.Path)
	}
	if loaded.Graph.Storage != cfg.Graph.Storage {
		t.Errorf("Graph.Storage = %q, want %q", loaded.Graph.Storage, cfg.Graph.Storage)
	}
}
