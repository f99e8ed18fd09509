package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/imyousuf/CodeWeaver/internal/config"
	"github.com/imyousuf/CodeWeaver/internal/graph"
	"github.com/imyousuf/CodeWeaver/internal/graph/cypher"
	"github.com/imyousuf/CodeWeaver/internal/graph/embedded"
)

// openGraphStore opens the graph store selected by the configuration.
func openGraphStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	switch cfg.Graph.Storage {
	case "embedded":
		store, err := embedded.NewStore(cfg.Graph.Path)
		if err != nil {
			return nil, fmt.Errorf("open embedded graph store: %w", err)
		}
		return store, nil
	case "neo4j":
		password := cfg.Graph.Neo4jPassword
		if env := os.Getenv("CODEWEAVER_GRAPH_NEO4J_PASSWORD"); env != "" {
			password = env
		}
		store, err := cypher.NewStore(ctx, cfg.Graph.Neo4jURI, cfg.Graph.Neo4jUser, password)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown graph storage %q", cfg.Graph.Storage)
}
