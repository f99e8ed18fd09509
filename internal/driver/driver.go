// Package driver wires the full analysis pipeline: extract records from the
// source forest, stage them, synthesize external placeholder entities, and
// compose everything into the graph store.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imyousuf/CodeWeaver/internal/composer"
	"github.com/imyousuf/CodeWeaver/internal/extractor"
	"github.com/imyousuf/CodeWeaver/internal/graph"
	"github.com/imyousuf/CodeWeaver/internal/stage"
	"github.com/imyousuf/CodeWeaver/internal/synth"
)

// Config holds the collaborators and knobs for one analysis run.
type Config struct {
	// Root is the analysis root directory.
	Root string
	// Stage is the intermediate record store.
	Stage *stage.Store
	// Graph is the destination graph store.
	Graph graph.Store
	// ChunkSize bounds mutations per graph transaction; zero keeps the
	// composer default.
	ChunkSize int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Summary reports what a run produced.
type Summary struct {
	Files             int
	Entities          int64
	Relationships     int64
	ExternalEntities  int
	Duplicates        int
	ComposedEntities  int
	ComposedRelations int
	SkippedRelations  int
}

// Run executes one full analysis. The staging store is reset first: it
// holds exactly one analysis at a time. Per-record problems (duplicate
// keys, unresolvable files) are logged and skipped; store connectivity
// failures abort the run.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	if err := cfg.Stage.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset staging store: %w", err)
	}

	forest, err := extractor.LoadForest(ctx, cfg.Root, log)
	if err != nil {
		return nil, fmt.Errorf("load source forest: %w", err)
	}
	log.Info("loaded source forest", "root", cfg.Root, "files", len(forest.Modules))

	summary := &Summary{Files: len(forest.Modules)}

	ext := extractor.New(forest, log)
	err = ext.Extract(ctx, func(rec graph.Record) error {
		err := cfg.Stage.InsertRecord(ctx, rec)
		if errors.Is(err, stage.ErrDuplicateKey) {
			log.Warn("duplicate record skipped", "collection", rec.Collection(), "error", err)
			summary.Duplicates++
			return nil
		}
		return err
	})
	if err != nil {
		return summary, fmt.Errorf("extract records: %w", err)
	}

	summary.Entities, summary.Relationships, err = cfg.Stage.Counts(ctx)
	if err != nil {
		return summary, err
	}
	log.Info("extraction complete",
		"entities", summary.Entities, "relationships", summary.Relationships,
		"duplicates", summary.Duplicates)

	external, err := synth.New(cfg.Stage, log).Run(ctx, forest.ModulePrefixes())
	if err != nil {
		return summary, fmt.Errorf("synthesize external entities: %w", err)
	}
	summary.ExternalEntities = external
	summary.Entities += int64(external)
	log.Info("external entity synthesis complete", "synthesized", external)

	comp := composer.New(cfg.Graph,
		composer.WithChunkSize(cfg.ChunkSize),
		composer.WithLogger(log))
	for _, kind := range graph.EntityKinds {
		comp.AddEntities(entitySource(cfg.Stage, kind))
	}
	for _, kind := range graph.RelationKinds {
		comp.AddRelationships(relationshipSource(cfg.Stage, kind))
	}

	composed, err := comp.Compose(ctx)
	if err != nil {
		return summary, fmt.Errorf("compose graph: %w", err)
	}
	summary.ComposedEntities = composed.Entities
	summary.ComposedRelations = composed.Relationships
	summary.SkippedRelations = composed.Skipped
	log.Info("composition complete",
		"entities", composed.Entities,
		"relationships", composed.Relationships,
		"skipped", composed.Skipped)

	return summary, nil
}

func entitySource(s *stage.Store, kind graph.EntityKind) composer.EntitySource {
	return func(ctx context.Context, yield func(*graph.EntityRecord) error) error {
		return s.Entities(ctx, kind, yield)
	}
}

func relationshipSource(s *stage.Store, kind graph.RelationKind) composer.RelationshipSource {
	return func(ctx context.Context, yield func(*graph.RelationshipRecord) error) error {
		return s.Relationships(ctx, kind, yield)
	}
}
