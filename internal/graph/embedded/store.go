// Package embedded implements graph.Store on BadgerDB. Nodes are keyed by
// primary label and qualified name, which gives merge semantics for free:
// re-applying a mutation writes the same key.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// Key prefixes for the BadgerDB key scheme.
const (
	prefixNode = "n:"
	prefixEdge = "e:"
)

// Store implements graph.Store using BadgerDB.
type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) a BadgerDB-backed graph store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // suppress badger logs
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// nodeKey returns the primary key for a node.
func nodeKey(label, qualifiedName string) []byte {
	return []byte(prefixNode + label + ":" + qualifiedName)
}

// edgeKey returns the primary key for an edge, derived from its type and
// both endpoints so that merging the same edge is idempotent.
func edgeKey(edgeType, fromLabel, fromQN, toLabel, toQN string) []byte {
	return []byte(strings.Join([]string{
		prefixEdge + edgeType, fromLabel, fromQN, toLabel, toQN,
	}, "|"))
}

// storedNode is the persisted node payload.
type storedNode struct {
	Labels        []string       `json:"labels"`
	QualifiedName string         `json:"qualified_name"`
	Props         map[string]any `json:"props,omitempty"`
}

// storedEdge is the persisted edge payload.
type storedEdge struct {
	Type   string         `json:"type"`
	FromQN string         `json:"from_qualified_name"`
	ToQN   string         `json:"to_qualified_name"`
	Props  map[string]any `json:"props,omitempty"`
}

// ApplyBatch applies all mutations inside one badger transaction. An edge
// whose endpoints are absent is reported in the result's Skipped list and
// does not abort the batch; any other failure rolls the whole batch back.
func (s *Store) ApplyBatch(ctx context.Context, batch []graph.Mutation) (*graph.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &graph.BatchResult{}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, m := range batch {
			switch mut := m.(type) {
			case graph.MergeNode:
				if err := mergeNode(txn, mut); err != nil {
					return err
				}
				result.Applied++
			case graph.MergeEdge:
				err := mergeEdge(txn, mut)
				var missing *graph.MissingEndpointError
				if errors.As(err, &missing) {
					result.Skipped = append(result.Skipped, err)
					continue
				}
				if err != nil {
					return err
				}
				result.Applied++
			default:
				return fmt.Errorf("unknown mutation type %T", m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	return result, nil
}

func mergeNode(txn *badger.Txn, mut graph.MergeNode) error {
	if len(mut.Labels) == 0 {
		return fmt.Errorf("node %s has no labels", mut.QualifiedName)
	}
	data, err := json.Marshal(storedNode{
		Labels:        mut.Labels,
		QualifiedName: mut.QualifiedName,
		Props:         mut.Props,
	})
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", mut.QualifiedName, err)
	}
	return txn.Set(nodeKey(mut.Labels[0], mut.QualifiedName), data)
}

func mergeEdge(txn *badger.Txn, mut graph.MergeEdge) error {
	if _, err := txn.Get(nodeKey(mut.FromLabel, mut.FromQN)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &graph.MissingEndpointError{Type: mut.Type, FromQN: mut.FromQN, ToQN: mut.ToQN}
		}
		return err
	}
	if _, err := txn.Get(nodeKey(mut.ToLabel, mut.ToQN)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &graph.MissingEndpointError{Type: mut.Type, FromQN: mut.FromQN, ToQN: mut.ToQN}
		}
		return err
	}
	data, err := json.Marshal(storedEdge{
		Type:   mut.Type,
		FromQN: mut.FromQN,
		ToQN:   mut.ToQN,
		Props:  mut.Props,
	})
	if err != nil {
		return fmt.Errorf("marshal edge %s: %w", mut.Type, err)
	}
	return txn.Set(edgeKey(mut.Type, mut.FromLabel, mut.FromQN, mut.ToLabel, mut.ToQN), data)
}

// Stats counts nodes and edges by scanning key prefixes.
func (s *Store) Stats(ctx context.Context) (*graph.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats := &graph.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		stats.Nodes = countPrefix(txn, []byte(prefixNode))
		stats.Edges = countPrefix(txn, []byte(prefixEdge))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	return stats, nil
}

func countPrefix(txn *badger.Txn, prefix []byte) int64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// GetNode retrieves a node by primary label and qualified name. Used by
// tests and the status command.
func (s *Store) GetNode(ctx context.Context, label, qualifiedName string) (map[string]any, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var node storedNode
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(label, qualifiedName))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get node %s:%s: %w", label, qualifiedName, err)
	}
	return node.Props, node.Labels, nil
}

// HasEdge reports whether an edge of the given type exists between the two
// endpoints.
func (s *Store) HasEdge(ctx context.Context, edgeType, fromLabel, fromQN, toLabel, toQN string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(edgeKey(edgeType, fromLabel, fromQN, toLabel, toQN))
		if err == nil {
			found = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("check edge %s: %w", edgeType, err)
	}
	return found, nil
}
