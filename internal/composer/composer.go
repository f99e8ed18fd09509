// Package composer turns staged record collections into chunked,
// transactional graph mutations. Entities are always composed before
// relationships, across every registered collection, so that relationship
// endpoints are guaranteed present no matter which collection produced them.
package composer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// DefaultChunkSize bounds the number of mutations per graph transaction.
const DefaultChunkSize = 1000

// EntitySource streams entity records to yield. Sources are consumed
// exactly once, during Compose.
type EntitySource func(ctx context.Context, yield func(*graph.EntityRecord) error) error

// RelationshipSource streams relationship records to yield.
type RelationshipSource func(ctx context.Context, yield func(*graph.RelationshipRecord) error) error

// Summary reports what a composition run wrote.
type Summary struct {
	Entities      int
	Relationships int
	// Skipped counts relationships whose endpoints could not be found.
	Skipped int
}

// Composer accumulates record collections and writes them to a graph store
// in fixed-size batches, one store transaction per batch.
type Composer struct {
	store     graph.Store
	chunkSize int
	log       *slog.Logger

	entities      []EntitySource
	relationships []RelationshipSource
}

// Option configures a Composer.
type Option func(*Composer)

// WithChunkSize overrides the default batch size. Values below one keep the
// default.
func WithChunkSize(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithLogger sets the composer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.log = logger
		}
	}
}

// New creates a Composer writing to store.
func New(store graph.Store, opts ...Option) *Composer {
	c := &Composer{
		store:     store,
		chunkSize: DefaultChunkSize,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddEntities registers an entity collection. Collections may be added in
// any order, from any number of sources.
func (c *Composer) AddEntities(src EntitySource) {
	c.entities = append(c.entities, src)
}

// AddRelationships registers a relationship collection.
func (c *Composer) AddRelationships(src RelationshipSource) {
	c.relationships = append(c.relationships, src)
}

// Compose writes all registered entity collections, then all registered
// relationship collections, to the graph store. Mutations use merge
// (match-or-create) semantics, so re-running composition against a
// non-empty graph does not duplicate nodes or edges. A relationship whose
// endpoints cannot be found is skipped and logged; any other store failure
// aborts composition.
func (c *Composer) Compose(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	batch := newBatcher(c, summary)

	// Each collection is partitioned independently: a collection's trailing
	// partial chunk never shares a transaction with the next collection.
	for _, src := range c.entities {
		err := src(ctx, func(rec *graph.EntityRecord) error {
			summary.Entities++
			return batch.add(ctx, entityMutation(rec))
		})
		if err != nil {
			return summary, err
		}
		if err := batch.flush(ctx); err != nil {
			return summary, err
		}
	}
	for _, src := range c.relationships {
		err := src(ctx, func(rec *graph.RelationshipRecord) error {
			summary.Relationships++
			return batch.add(ctx, relationshipMutation(rec))
		})
		if err != nil {
			return summary, err
		}
		if err := batch.flush(ctx); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// batcher accumulates mutations and applies them one transaction per chunk.
type batcher struct {
	c       *Composer
	summary *Summary
	pending []graph.Mutation
}

func newBatcher(c *Composer, summary *Summary) *batcher {
	return &batcher{c: c, summary: summary, pending: make([]graph.Mutation, 0, c.chunkSize)}
}

func (b *batcher) add(ctx context.Context, m graph.Mutation) error {
	b.pending = append(b.pending, m)
	if len(b.pending) >= b.c.chunkSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	result, err := b.c.store.ApplyBatch(ctx, b.pending)
	if err != nil {
		return err
	}
	for _, skipErr := range result.Skipped {
		var missing *graph.MissingEndpointError
		if errors.As(skipErr, &missing) {
			b.c.log.Warn("skipped relationship: endpoint not found",
				"edge", missing.Type, "from", missing.FromQN, "to", missing.ToQN)
		} else {
			b.c.log.Warn("skipped mutation", "error", skipErr)
		}
		b.summary.Skipped++
	}
	b.c.log.Debug("applied batch", "mutations", len(b.pending), "skipped", len(result.Skipped))
	b.pending = b.pending[:0]
	return nil
}

// entityMutation renders an entity record as a parameterized node merge. The
// node carries the kind's full label set and every non-structural field as a
// property.
func entityMutation(rec *graph.EntityRecord) graph.Mutation {
	props := map[string]any{
		"name":      rec.Name,
		"file_path": rec.FilePath,
	}
	if rec.Access != "" {
		props["access"] = string(rec.Access)
	}
	return graph.MergeNode{
		Labels:        rec.Kind.Labels(),
		QualifiedName: rec.QualifiedName,
		Props:         props,
	}
}

// relationshipMutation renders a relationship record as an endpoint lookup
// plus a directed edge merge carrying the record's extra properties.
func relationshipMutation(rec *graph.RelationshipRecord) graph.Mutation {
	props := make(map[string]any, len(rec.Props))
	for k, v := range rec.Props {
		props[k] = v
	}
	return graph.MergeEdge{
		Type:      rec.Kind.EdgeType(),
		FromLabel: rec.FromType.Label(),
		FromQN:    rec.FromQualifiedName,
		ToLabel:   rec.ToType.Label(),
		ToQN:      rec.ToQualifiedName,
		Props:     props,
	}
}
