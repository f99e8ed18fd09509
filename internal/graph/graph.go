package graph

import (
	"context"
	"fmt"
)

// Mutation is a single parameterized graph write. Implementations are
// MergeNode and MergeEdge; property values travel only as parameters, never
// interpolated into statement text.
type Mutation interface {
	mutation()
}

// MergeNode creates a node with the given labels and properties, or matches
// an existing node with the same primary label and qualified name. The
// primary label is Labels[0]; extra labels (such as the External marker)
// follow.
type MergeNode struct {
	Labels        []string
	QualifiedName string
	Props         map[string]any
}

func (MergeNode) mutation() {}

// MergeEdge looks up both endpoint nodes by primary label and qualified name
// and creates a directed edge between them, or matches an existing edge of
// the same type between the same endpoints.
type MergeEdge struct {
	Type      string
	FromLabel string
	FromQN    string
	ToLabel   string
	ToQN      string
	Props     map[string]any
}

func (MergeEdge) mutation() {}

// MissingEndpointError reports that an edge mutation could not resolve one
// or both of its endpoint nodes.
type MissingEndpointError struct {
	Type   string
	FromQN string
	ToQN   string
}

func (e *MissingEndpointError) Error() string {
	return fmt.Sprintf("edge %s: endpoint not found (from %q, to %q)", e.Type, e.FromQN, e.ToQN)
}

// BatchResult reports the outcome of one applied batch.
type BatchResult struct {
	Applied int
	// Skipped holds per-mutation failures that did not abort the batch,
	// currently only missing endpoints.
	Skipped []error
}

// Stats holds aggregate counts for the composed graph.
type Stats struct {
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// Store is the interface for graph persistence. A batch is applied inside a
// single store transaction: it either commits as a whole or fails as a
// whole. Per-mutation missing endpoints are reported in the result rather
// than failing the batch.
type Store interface {
	// ApplyBatch executes all mutations in one transaction.
	ApplyBatch(ctx context.Context, batch []Mutation) (*BatchResult, error)

	// Stats returns aggregate node and edge counts.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources held by the store.
	Close() error
}
