// Package cypher implements graph.Store against a Neo4j server. Statements
// are parameterized throughout: labels and edge types come only from the
// closed kind enumerations, and every property value travels as a query
// parameter, never interpolated into statement text.
package cypher

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// Store implements graph.Store over the Neo4j bolt driver.
type Store struct {
	driver neo4j.DriverWithContext
}

// NewStore connects to the Neo4j server at uri and verifies connectivity.
func NewStore(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}
	return &Store{driver: driver}, nil
}

// Close shuts the driver down.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

// ApplyBatch executes all mutations inside one explicit write transaction.
// Missing edge endpoints are collected in the result; any other failure
// rolls the transaction back.
func (s *Store) ApplyBatch(ctx context.Context, batch []graph.Mutation) (*graph.BatchResult, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result := &graph.BatchResult{}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, m := range batch {
			switch mut := m.(type) {
			case graph.MergeNode:
				if err := mergeNode(ctx, tx, mut); err != nil {
					return nil, err
				}
				result.Applied++
			case graph.MergeEdge:
				merged, err := mergeEdge(ctx, tx, mut)
				if err != nil {
					return nil, err
				}
				if !merged {
					result.Skipped = append(result.Skipped, &graph.MissingEndpointError{
						Type: mut.Type, FromQN: mut.FromQN, ToQN: mut.ToQN,
					})
					continue
				}
				result.Applied++
			default:
				return nil, fmt.Errorf("unknown mutation type %T", m)
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	return result, nil
}

func mergeNode(ctx context.Context, tx neo4j.ManagedTransaction, mut graph.MergeNode) error {
	labels, err := labelExpr(mut.Labels)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		"MERGE (n%s {qualified_name: $qualified_name}) SET n += $props",
		labels,
	)
	_, err = tx.Run(ctx, stmt, map[string]any{
		"qualified_name": mut.QualifiedName,
		"props":          mut.Props,
	})
	if err != nil {
		return fmt.Errorf("merge node %s: %w", mut.QualifiedName, err)
	}
	return nil
}

// mergeEdge matches both endpoints and merges the edge between them. It
// returns false when the endpoint match produced no rows.
func mergeEdge(ctx context.Context, tx neo4j.ManagedTransaction, mut graph.MergeEdge) (bool, error) {
	for _, ident := range []string{mut.Type, mut.FromLabel, mut.ToLabel} {
		if err := checkIdentifier(ident); err != nil {
			return false, err
		}
	}
	stmt := fmt.Sprintf(
		"MATCH (a:`%s` {qualified_name: $from}), (b:`%s` {qualified_name: $to}) "+
			"MERGE (a)-[r:`%s`]->(b) SET r += $props RETURN 1",
		mut.FromLabel, mut.ToLabel, mut.Type,
	)
	res, err := tx.Run(ctx, stmt, map[string]any{
		"from":  mut.FromQN,
		"to":    mut.ToQN,
		"props": mut.Props,
	})
	if err != nil {
		return false, fmt.Errorf("merge edge %s: %w", mut.Type, err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return false, fmt.Errorf("merge edge %s: %w", mut.Type, err)
	}
	return len(records) > 0, nil
}

// Stats returns node and edge counts.
func (s *Store) Stats(ctx context.Context) (*graph.Stats, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stats := &graph.Stats{}
		res, err := tx.Run(ctx, "MATCH (n) RETURN count(n) AS c", nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if v, ok := rec.Get("c"); ok {
			stats.Nodes, _ = v.(int64)
		}

		res, err = tx.Run(ctx, "MATCH ()-[r]->() RETURN count(r) AS c", nil)
		if err != nil {
			return nil, err
		}
		rec, err = res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if v, ok := rec.Get("c"); ok {
			stats.Edges, _ = v.(int64)
		}
		return stats, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	return out.(*graph.Stats), nil
}

// labelExpr renders a validated label set as `:`A`:`B``.
func labelExpr(labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("node mutation has no labels")
	}
	var b strings.Builder
	for _, l := range labels {
		if err := checkIdentifier(l); err != nil {
			return "", err
		}
		b.WriteString(":`")
		b.WriteString(l)
		b.WriteString("`")
	}
	return b.String(), nil
}

// checkIdentifier rejects anything outside the closed enums' alphabet.
// Labels and edge types are never user data, but the statement text is the
// one place interpolation happens, so the alphabet is enforced anyway.
func checkIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("empty graph identifier")
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return fmt.Errorf("invalid graph identifier %q", s)
		}
	}
	return nil
}
